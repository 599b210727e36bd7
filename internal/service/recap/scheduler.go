package recap

import (
	"context"
	"log/slog"
	"time"

	"github.com/splax/izzocam/internal/service/monitoring"
)

const jobTimeout = 2 * time.Minute

// CostChecker evaluates spend thresholds.
type CostChecker interface {
	CheckCostAlerts(ctx context.Context) (monitoring.CostCheck, error)
}

// Scheduler triggers recaps and cost checks on fixed intervals inside the
// API process.
type Scheduler struct {
	recap         *Service
	costs         CostChecker
	recapInterval time.Duration
	costInterval  time.Duration
	logger        *slog.Logger
}

// NewScheduler returns nil when both intervals are disabled.
func NewScheduler(recap *Service, costs CostChecker, recapInterval, costInterval time.Duration, logger *slog.Logger) *Scheduler {
	if recap == nil {
		recapInterval = 0
	}
	if costs == nil {
		costInterval = 0
	}
	if recapInterval <= 0 && costInterval <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		recap:         recap,
		costs:         costs,
		recapInterval: recapInterval,
		costInterval:  costInterval,
		logger:        logger.With("component", "scheduler"),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s == nil {
		return
	}
	recapC := tickerChan(s.recapInterval)
	costC := tickerChan(s.costInterval)
	defer recapC.stop()
	defer costC.stop()

	s.logger.Info("scheduler started", "recap_interval", s.recapInterval, "cost_interval", s.costInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-recapC.c:
			s.runRecap(ctx)
		case <-costC.c:
			s.runCostCheck(ctx)
		}
	}
}

func (s *Scheduler) runRecap(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	if _, err := s.recap.Run(jobCtx); err != nil {
		s.logger.Error("scheduled recap failed", "error", err)
	}
}

func (s *Scheduler) runCostCheck(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	if _, err := s.costs.CheckCostAlerts(jobCtx); err != nil {
		s.logger.Error("scheduled cost check failed", "error", err)
	}
}

type ticker struct {
	c <-chan time.Time
	t *time.Ticker
}

// tickerChan returns a nil channel for disabled intervals so select ignores it.
func tickerChan(interval time.Duration) ticker {
	if interval <= 0 {
		return ticker{}
	}
	t := time.NewTicker(interval)
	return ticker{c: t.C, t: t}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
