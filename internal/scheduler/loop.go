// Package scheduler drives the fixed-timestep simulation loop: a ticking
// accumulator that calls the engine forward by whole frames regardless of
// how unevenly the OS wakes the goroutine up, and a monitor that tracks how
// long each step actually took.
package scheduler

import (
	"context"
	"time"

	"github.com/bloopgames/rollback/internal/logging"
)

// StepFunc advances the simulation by exactly one fixed frame. A non-nil
// error stops the scheduler; callers that want to keep running through
// transient errors should swallow them inside the closure instead.
type StepFunc func(frame time.Duration) error

// Scheduler drives a fixed timestep simulation at the configured target
// frequency, accumulating real elapsed time and running as many whole
// frames as have become due on each tick.
type Scheduler struct {
	step     time.Duration
	stepFunc StepFunc
	monitor  *TickMonitor
	log      *logging.Logger

	ticker *time.Ticker
	done   chan struct{}
	errc   chan error
}

// Option configures optional Scheduler behaviour at construction time.
type Option func(*Scheduler)

// WithMonitor attaches a TickMonitor that observes every completed frame.
func WithMonitor(monitor *TickMonitor) Option {
	return func(s *Scheduler) {
		if monitor != nil {
			s.monitor = monitor
		}
	}
}

// WithLogger overrides the logger used to report a fatal step error.
func WithLogger(log *logging.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// New configures a scheduler that targets the provided frames per second.
func New(targetHz float64, step StepFunc, opts ...Option) *Scheduler {
	if targetHz <= 0 {
		targetHz = 62.5
	}
	if step == nil {
		step = func(time.Duration) error { return nil }
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 60
	}
	s := &Scheduler{
		step:     interval,
		stepFunc: step,
		log:      logging.L(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start begins ticking until the context is cancelled, Stop is invoked, or
// the step function returns an error.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.stepFunc == nil {
		return
	}

	s.ticker = time.NewTicker(s.step)
	s.done = make(chan struct{})
	s.errc = make(chan error, 1)
	go func() {
		defer close(s.done)
		defer s.ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-s.ticker.C:
				//1.- Accumulate elapsed time and run fixed steps while catching up.
				accumulator += now.Sub(last)
				last = now
				for accumulator >= s.step {
					frameStart := time.Now()
					if err := s.stepFunc(s.step); err != nil {
						s.log.Error("scheduler step failed, stopping loop", logging.Error(err))
						s.errc <- err
						return
					}
					if s.monitor != nil {
						s.monitor.Observe(time.Since(frameStart))
					}
					accumulator -= s.step
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for the goroutine to exit.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.done != nil {
		<-s.done
		s.done = nil
	}
}

// Err returns the error that stopped the loop, if any, without blocking.
func (s *Scheduler) Err() error {
	if s == nil || s.errc == nil {
		return nil
	}
	select {
	case err := <-s.errc:
		return err
	default:
		return nil
	}
}

// StepDuration exposes the configured timestep for testing and diagnostics.
func (s *Scheduler) StepDuration() time.Duration {
	if s == nil {
		return 0
	}
	return s.step
}
