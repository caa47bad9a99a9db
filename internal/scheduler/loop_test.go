package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestSchedulerRunsAtLeastTargetTicks(t *testing.T) {
	var ticks int32
	s := New(60, func(time.Duration) error {
		atomic.AddInt32(&ticks, 1)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(55 * time.Millisecond)
	cancel()
	s.Stop()
	if atomic.LoadInt32(&ticks) == 0 {
		t.Fatalf("expected scheduler to tick at least once")
	}
}

func TestSchedulerStepDuration(t *testing.T) {
	s := New(120, func(time.Duration) error { return nil })
	step := s.StepDuration()
	expected := time.Second / 120
	if step != expected {
		t.Fatalf("unexpected step duration %v", step)
	}
}

func TestSchedulerStopsOnStepError(t *testing.T) {
	boom := errBoom
	s := New(200, func(time.Duration) error { return boom })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	if err := s.Err(); err != boom {
		t.Fatalf("Err() = %v, want %v", err, boom)
	}
}

func TestTickMonitorAggregatesSamples(t *testing.T) {
	m := NewTickMonitor()
	m.Observe(10 * time.Millisecond)
	m.Observe(30 * time.Millisecond)
	snap := m.Snapshot()
	if snap.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", snap.Samples)
	}
	if snap.Average != 20*time.Millisecond {
		t.Fatalf("Average = %v, want 20ms", snap.Average)
	}
	if snap.Max != 30*time.Millisecond {
		t.Fatalf("Max = %v, want 30ms", snap.Max)
	}
	m.Reset()
	if snap := m.Snapshot(); snap.Samples != 0 {
		t.Fatalf("Samples after reset = %d, want 0", snap.Samples)
	}
}
