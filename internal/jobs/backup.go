package jobs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"log/slog"
)

// Backup dumps the database with pg_dump and prunes old dump files.
type Backup struct {
	databaseURL string
	dir         string
	keep        int
	logger      *slog.Logger
}

// NewBackup constructs the backup job. keep bounds how many dumps are retained.
func NewBackup(databaseURL, dir string, keep int, logger *slog.Logger) *Backup {
	if keep <= 0 {
		keep = 7
	}
	return &Backup{databaseURL: databaseURL, dir: dir, keep: keep, logger: logger}
}

// Name implements Job.
func (b *Backup) Name() string { return "backup" }

// Run shells out to pg_dump, writing a timestamped custom-format dump.
func (b *Backup) Run(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, 0o750); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	name := fmt.Sprintf("taskdeck-%s.dump", time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(b.dir, name)

	cmd := exec.CommandContext(ctx, "pg_dump", "--format=custom", "--file", path, b.databaseURL)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(string(output)))
	}
	b.logger.Info("backup written", "path", path)
	return b.prune()
}

// prune removes the oldest dumps beyond the retention count.
func (b *Backup) prune() error {
	entries, err := filepath.Glob(filepath.Join(b.dir, "taskdeck-*.dump"))
	if err != nil {
		return err
	}
	if len(entries) <= b.keep {
		return nil
	}
	sort.Strings(entries)
	for _, stale := range entries[:len(entries)-b.keep] {
		if err := os.Remove(stale); err != nil {
			b.logger.Warn("failed to prune backup", "path", stale, "error", err)
			continue
		}
		b.logger.Info("backup pruned", "path", stale)
	}
	return nil
}
