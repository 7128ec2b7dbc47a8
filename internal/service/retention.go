package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"simflow/internal/logger"

	"github.com/robfig/cron/v3"
)

// sweptDirs are the output subdirectories whose entries expire.
var sweptDirs = []string{"simulations", "models", "weather_files"}

// RetentionSweeper periodically deletes old engine outputs.
type RetentionSweeper interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Sweep removes every expired entry once and returns how many it removed.
	Sweep(ctx context.Context) (int, error)
}

type retentionSweeper struct {
	outputDir string
	schedule  string
	maxAge    time.Duration
	cron      *cron.Cron
	logger    logger.Logger
	now       func() time.Time
}

func NewRetentionSweeper(outputDir, schedule string, maxAge time.Duration, log logger.Logger) RetentionSweeper {
	return &retentionSweeper{
		outputDir: outputDir,
		schedule:  schedule,
		maxAge:    maxAge,
		cron:      cron.New(cron.WithSeconds()),
		logger:    log.With(logger.String("component", "retention_sweeper")),
		now:       time.Now,
	}
}

func (s *retentionSweeper) Start(ctx context.Context) error {
	if s.schedule == "" || s.maxAge <= 0 {
		s.logger.Info("retention sweep disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("retention sweep failed", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add retention cron: %w", err)
	}

	s.cron.Start()
	s.logger.Info("retention sweeper started",
		logger.String("schedule", s.schedule),
		logger.Duration("max_age", s.maxAge))
	return nil
}

func (s *retentionSweeper) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("retention sweeper stopped")
	return nil
}

func (s *retentionSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	removed := 0

	for _, dir := range sweptDirs {
		root := filepath.Join(s.outputDir, dir)
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to list %s: %w", root, err)
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}

			path := filepath.Join(root, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.logger.Warn("failed to remove expired output", logger.String("path", path), logger.Error(err))
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("expired outputs removed", logger.Int("count", removed))
	}
	return removed, nil
}
