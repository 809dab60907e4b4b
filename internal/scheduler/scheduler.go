// Package scheduler triggers full collection runs on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

const defaultInterval = time.Hour

// Runner starts a collection over every keyword.
type Runner interface {
	CollectAll(ctx context.Context) <-chan news.Summary
}

// Config controls the trigger cadence.
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
	Logger       *zap.Logger
}

// Scheduler calls Runner.CollectAll after InitialDelay and then every
// Interval. Runs never overlap; ticks that fire during a run are skipped.
type Scheduler struct {
	runner Runner
	cfg    Config
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler.
func New(runner Runner, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{runner: runner, cfg: cfg, logger: logger.Named("scheduler")}
}

// Start launches the trigger loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("initial_delay", s.cfg.InitialDelay),
	)
}

// Stop cancels the loop and waits for an in-progress trigger to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	delay := time.NewTimer(s.cfg.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	s.trigger(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

// trigger runs one collection and logs its summary. Failures never escape.
func (s *Scheduler) trigger(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("scheduled collection panicked", zap.Error(fmt.Errorf("panic: %v", rec)))
		}
	}()
	select {
	case summary, ok := <-s.runner.CollectAll(ctx):
		if !ok {
			s.logger.Warn("scheduled collection returned no summary")
			return
		}
		s.logger.Info("scheduled collection finished",
			zap.Int("collected", summary.Count(news.StatusCollected)),
			zap.Int("skipped", summary.Count(news.StatusSkipped)),
			zap.Int("failed", summary.Count(news.StatusFailed)),
			zap.Int("items", summary.Items()),
			zap.Duration("duration", summary.Duration()),
		)
	case <-ctx.Done():
		s.logger.Info("scheduled collection interrupted", zap.Error(ctx.Err()))
	}
}
