package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/taskdeck/taskdeck/internal/jobs"
	"github.com/taskdeck/taskdeck/internal/mail"
	"github.com/taskdeck/taskdeck/internal/queue"
	"github.com/taskdeck/taskdeck/internal/repository/postgres"
	"github.com/taskdeck/taskdeck/pkg/config"
	"github.com/taskdeck/taskdeck/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New("worker", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	mailClient := mail.NewClient(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, cfg.MailSendRetry, log)

	var (
		outbox     mail.Outbox = mail.DirectOutbox{Sender: mailClient}
		amqpClient *queue.Client
	)
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		amqpClient, err = queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
		if err != nil {
			log.Error("failed to connect to mail queue", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		outbox = amqpClient
	}

	scheduler := jobs.NewScheduler(time.UTC, log)
	schedule := []struct {
		spec string
		job  jobs.Job
	}{
		{cfg.BackupCron, jobs.NewBackup(cfg.DatabaseURL, cfg.BackupDir, cfg.BackupKeep, log)},
		{cfg.RetentionCron, jobs.NewRetention(repo, repo, cfg.ActivityKeepDays, cfg.DeletedTaskKeepDays, log)},
		{cfg.DigestCron, jobs.NewDigest(repo, repo, outbox, log)},
	}
	for _, entry := range schedule {
		if _, err := scheduler.Add(entry.spec, entry.job); err != nil {
			log.Error("invalid cron spec", "job", entry.job.Name(), "spec", entry.spec, "error", err)
			os.Exit(1)
		}
		log.Info("job scheduled", "job", entry.job.Name(), "spec", entry.spec)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		scheduler.Start()
		<-groupCtx.Done()
		scheduler.Stop()
		return groupCtx.Err()
	})

	if amqpClient != nil {
		group.Go(func() error {
			return amqpClient.Consume(groupCtx, mailClient)
		})
	}

	log.Info("worker started")
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}
