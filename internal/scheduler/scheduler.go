// Package scheduler runs periodic conformance sweeps over every known graph.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"evalgo.org/mycelium/internal/conformance"
)

// Checker is the part of the engine a sweep needs.
type Checker interface {
	ListGraphs(ctx context.Context) ([]string, error)
	CheckConformance(ctx context.Context, target string) ([]conformance.Finding, []string, error)
}

// Scheduler checks every graph for conformance on a fixed interval. New
// findings are recorded as violations by the checker.
type Scheduler struct {
	checker  Checker
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a scheduler. A nil logger logs to slog.Default.
func New(checker Checker, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		checker:  checker,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start begins the sweep loop. The first sweep runs immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("scheduler already running")
		return
	}
	if s.interval <= 0 {
		s.logger.Debug("conformance sweeps disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info("scheduler started", "interval", s.interval)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Sweep(ctx)
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Sweep checks every graph once and returns the number of newly recorded
// violations per graph. A failing graph is logged and skipped.
func (s *Scheduler) Sweep(ctx context.Context) map[string]int {
	targets, err := s.checker.ListGraphs(ctx)
	if err != nil {
		s.logger.Error("listing graphs failed", "error", err)
		return nil
	}

	recorded := make(map[string]int, len(targets))
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		findings, ids, err := s.checker.CheckConformance(ctx, target)
		if err != nil {
			s.logger.Error("conformance check failed", "target", target, "error", err)
			continue
		}
		recorded[target] = len(ids)
		if len(ids) > 0 {
			s.logger.Info("conformance sweep recorded violations",
				"target", target, "findings", len(findings), "recorded", len(ids))
		}
	}
	return recorded
}
