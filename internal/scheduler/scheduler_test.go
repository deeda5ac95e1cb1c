package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingRecomputer struct {
	calls int32
	err   error
}

func (c *countingRecomputer) Trigger(ctx context.Context, kind string) error {
	atomic.AddInt32(&c.calls, 1)
	return c.err
}

func TestSchedulerRunsOnStartAndOnTick(t *testing.T) {
	rec := &countingRecomputer{}
	s := New(rec, 10*time.Millisecond, zap.NewNop())

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&rec.calls) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 2 passes, got %d", atomic.LoadInt32(&rec.calls))
		}
		time.Sleep(time.Millisecond)
	}

	status := s.Status()
	if !status.Running {
		t.Error("expected running status")
	}
	if status.Interval != 10*time.Millisecond {
		t.Errorf("unexpected interval %v", status.Interval)
	}
}

func TestSchedulerStopHaltsTicker(t *testing.T) {
	rec := &countingRecomputer{}
	s := New(rec, 5*time.Millisecond, zap.NewNop())

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if s.Status().Running {
		t.Error("expected stopped status")
	}
	after := atomic.LoadInt32(&rec.calls)
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&rec.calls); got != after {
		t.Errorf("scheduler kept running after Stop: %d -> %d", after, got)
	}

	// Stop is idempotent
	s.Stop()
}

func TestSchedulerDisabledInterval(t *testing.T) {
	rec := &countingRecomputer{}
	s := New(rec, 0, zap.NewNop())

	s.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt32(&rec.calls) != 0 {
		t.Error("disabled scheduler must not trigger passes")
	}
	if s.Status().Running {
		t.Error("disabled scheduler must not report running")
	}
	s.Stop()
}

func TestSchedulerRecordsLastError(t *testing.T) {
	rec := &countingRecomputer{err: errors.New("pass failed")}
	s := New(rec, 5*time.Millisecond, zap.NewNop())

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for s.Status().LastRunErr == "" {
		if time.Now().After(deadline) {
			t.Fatal("expected last run error to be recorded")
		}
		time.Sleep(time.Millisecond)
	}
}
