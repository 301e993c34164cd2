package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskdeck/taskdeck/internal/app/migrate"
	httpx "github.com/taskdeck/taskdeck/internal/http"
	"github.com/taskdeck/taskdeck/internal/mail"
	"github.com/taskdeck/taskdeck/internal/queue"
	"github.com/taskdeck/taskdeck/internal/repository/postgres"
	"github.com/taskdeck/taskdeck/internal/service/activity"
	"github.com/taskdeck/taskdeck/internal/service/auth"
	"github.com/taskdeck/taskdeck/internal/service/billing"
	"github.com/taskdeck/taskdeck/internal/service/category"
	"github.com/taskdeck/taskdeck/internal/service/stats"
	"github.com/taskdeck/taskdeck/internal/service/task"
	"github.com/taskdeck/taskdeck/internal/service/workspace"
	"github.com/taskdeck/taskdeck/internal/ws"
	"github.com/taskdeck/taskdeck/pkg/config"
	"github.com/taskdeck/taskdeck/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	activityHub := ws.NewHub()

	mailClient := mail.NewClient(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, cfg.MailSendRetry, log)
	var outbox mail.Outbox = mail.DirectOutbox{Sender: mailClient}
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		amqpClient, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
		if err != nil {
			log.Warn("mail queue unavailable, sending inline", "error", err)
		} else {
			defer amqpClient.Close()
			outbox = amqpClient
		}
	}

	authSvc := auth.New(repo, log, cfg)
	activitySvc := activity.New(repo, activityHub, log)
	billingSvc := billing.New(repo, repo, repo, log, cfg)
	workspaceSvc := workspace.New(repo, repo, billingSvc, outbox, activitySvc, log, cfg)
	categorySvc := category.New(repo, activitySvc, log)
	taskSvc := task.New(repo, repo, billingSvc, activitySvc, log)
	statsSvc := stats.New(repo, repo, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, workspaceSvc, categorySvc, taskSvc, activitySvc, billingSvc, statsSvc, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
