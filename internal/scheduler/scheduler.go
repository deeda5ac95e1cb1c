package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Recomputer triggers one batch SLA pass.
type Recomputer interface {
	Trigger(ctx context.Context, kind string) error
}

// Status is a point-in-time view of the scheduler for the admin surface.
type Status struct {
	Running     bool          `json:"running"`
	Interval    time.Duration `json:"interval"`
	LastRunAt   time.Time     `json:"last_run_at"`
	LastRunErr  string        `json:"last_run_error,omitempty"`
	RunsStarted int           `json:"runs_started"`
}

// Scheduler drives the batch pass on a fixed interval. One pass runs at a
// time; the recompute service coalesces any overlap with manual triggers.
type Scheduler struct {
	recomputer Recomputer
	interval   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	status  Status
}

// New builds a scheduler. A non-positive interval disables it.
func New(recomputer Recomputer, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		recomputer: recomputer,
		interval:   interval,
		logger:     logger,
		status:     Status{Interval: interval},
	}
}

// Start launches the ticker loop. The first pass runs immediately so the
// cache is warm before the first tick elapses.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("scheduler disabled, batch passes run on demand only")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.status.Running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the ticker and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.status.Running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Status reports the scheduler's current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	s.status.RunsStarted++
	s.status.LastRunAt = time.Now()
	s.mu.Unlock()

	err := s.recomputer.Trigger(ctx, "scheduled")

	s.mu.Lock()
	if err != nil {
		s.status.LastRunErr = err.Error()
	} else {
		s.status.LastRunErr = ""
	}
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled recompute failed", zap.Error(err))
	}
}
