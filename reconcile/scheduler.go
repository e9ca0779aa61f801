package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSpec runs reconciliation every fifteen minutes.
const DefaultSpec = "@every 15m"

// Scheduler runs a Reconciler for a fixed set of networks on a cron spec.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *Reconciler
	networks   []string
	spec       string
	timeout    time.Duration
	logger     *slog.Logger

	mu   sync.RWMutex
	last map[string]*Report
}

// NewScheduler creates a Scheduler. An empty spec uses DefaultSpec.
func NewScheduler(r *Reconciler, networks []string, spec string, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger))),
		reconciler: r,
		networks:   networks,
		spec:       spec,
		timeout:    time.Minute,
		logger:     logger,
		last:       make(map[string]*Report),
	}
}

// Start registers the reconciliation job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		s.logger.Error("failed to schedule reconciliation job", "error", err)
		return err
	}
	s.logger.Info("scheduled reconciliation job", "schedule", s.spec, "networks", s.networks)
	s.cron.Start()
	return nil
}

// Stop stops the cron runner. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce reconciles every network immediately.
func (s *Scheduler) RunOnce() {
	for _, network := range s.networks {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		report, err := s.reconciler.Run(ctx, network)
		cancel()
		if err != nil {
			s.logger.Error("reconciliation failed", "network", network, "error", err)
		}
		if report == nil {
			continue
		}
		if report.Problems.HasErrors() {
			s.logger.Warn("reconciliation found inconsistent records",
				"network", network, "count", len(report.Problems.Errors), "error", report.Problems)
		}

		s.mu.Lock()
		s.last[network] = report
		s.mu.Unlock()
	}
}

// Last returns the most recent report for network.
func (s *Scheduler) Last(network string) (*Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.last[network]
	return r, ok
}
