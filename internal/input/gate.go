package input

import (
	"sync"
	"time"

	"github.com/bloopgames/rollback/internal/logging"
)

// Clock exposes the current time for freshness checks.
type Clock interface {
	Now() time.Time
}

type clockFunc func() time.Time

// Now implements Clock for functional adapters.
func (c clockFunc) Now() time.Time { return c() }

type systemClock struct{}

// Now implements Clock by delegating to time.Now.
func (systemClock) Now() time.Time { return time.Now() }

// Config controls the freshness and window gates applied to inbound events.
type Config struct {
	// MaxAge bounds how stale a remote event's wall-clock arrival may be.
	MaxAge time.Duration
	// RingCapacity bounds how far ahead of the confirmed frame an event may
	// land before it is rejected as unrepresentable in the input ring.
	RingCapacity uint32
}

// DropReason enumerates why the gate rejected an incoming frame of events.
type DropReason string

const (
	DropReasonNone                     DropReason = ""
	DropReasonConfirmedFrameRegression DropReason = "confirmed_frame_regression"
	DropReasonRingOverflow             DropReason = "ring_overflow"
	DropReasonStale                    DropReason = "stale"
)

// String returns the textual representation of the drop reason.
func (r DropReason) String() string { return string(r) }

// Decision summarises whether a frame of events passed the gate.
type Decision struct {
	Accepted bool
	Reason   DropReason
	Delay    time.Duration
}

// Frame describes one peer's claim to contribute events for a simulation
// frame.
type Frame struct {
	PeerID         uint8
	SimFrame       uint32
	ConfirmedFrame uint32
	SentAt         time.Time
}

type peerState struct {
	lastConfirmed uint32
	seen          bool
}

// DropCounters aggregates per-reason drop counts for one peer.
type DropCounters struct {
	ConfirmedFrameRegression uint64 `json:"confirmed_frame_regression"`
	RingOverflow             uint64 `json:"ring_overflow"`
	Stale                    uint64 `json:"stale"`
}

// Metrics stores per-peer drop counters for diagnostics.
type Metrics struct {
	mu    sync.RWMutex
	drops map[uint8]DropCounters
}

func newMetrics() *Metrics {
	return &Metrics{drops: make(map[uint8]DropCounters)}
}

func (m *Metrics) observe(peerID uint8, reason DropReason) {
	if m == nil || reason == DropReasonNone {
		return
	}
	m.mu.Lock()
	current := m.drops[peerID]
	switch reason {
	case DropReasonConfirmedFrameRegression:
		current.ConfirmedFrameRegression++
	case DropReasonRingOverflow:
		current.RingOverflow++
	case DropReasonStale:
		current.Stale++
	}
	m.drops[peerID] = current
	m.mu.Unlock()
}

func (m *Metrics) snapshot() map[uint8]DropCounters {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.drops) == 0 {
		return nil
	}
	clone := make(map[uint8]DropCounters, len(m.drops))
	for peerID, counters := range m.drops {
		clone[peerID] = counters
	}
	return clone
}

func (m *Metrics) forget(peerID uint8) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.drops, peerID)
	m.mu.Unlock()
}

// Gate validates freshness and ring-window bounds for inbound peer event
// batches before they reach the rollback controller.
type Gate struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	logger  *logging.Logger
	metrics *Metrics
	peers   map[uint8]*peerState
}

// Option customises gate construction.
type Option func(*Gate)

// WithClock overrides the clock used for latency calculations.
func WithClock(clock Clock) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithMetrics injects a pre-built metrics container, enabling shared
// aggregation across gates.
func WithMetrics(metrics *Metrics) Option {
	return func(g *Gate) {
		if metrics != nil {
			g.metrics = metrics
		}
	}
}

// NewGate constructs a gate with the supplied configuration and logger.
func NewGate(cfg Config, logger *logging.Logger, opts ...Option) *Gate {
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	gate := &Gate{
		cfg:     cfg,
		clock:   systemClock{},
		logger:  logger,
		metrics: newMetrics(),
		peers:   make(map[uint8]*peerState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	if gate.clock == nil {
		gate.clock = systemClock{}
	}
	if gate.metrics == nil {
		gate.metrics = newMetrics()
	}
	return gate
}

// Evaluate applies freshness and ring-window guards to an incoming frame of
// events from a peer.
func (g *Gate) Evaluate(frame Frame) Decision {
	decision := Decision{Accepted: true}
	if g == nil {
		return decision
	}

	now := g.clock.Now()
	if !frame.SentAt.IsZero() {
		delay := now.Sub(frame.SentAt)
		if delay < 0 {
			delay = 0
		}
		decision.Delay = delay
		if g.cfg.MaxAge > 0 && delay > g.cfg.MaxAge {
			decision = Decision{Accepted: false, Reason: DropReasonStale, Delay: delay}
			g.metrics.observe(frame.PeerID, decision.Reason)
			return decision
		}
	}

	g.mu.Lock()
	state := g.peers[frame.PeerID]
	if state == nil {
		state = &peerState{}
		g.peers[frame.PeerID] = state
	}
	switch {
	case state.seen && frame.ConfirmedFrame < state.lastConfirmed:
		//1.- A peer's confirmed frame must never regress; it would unwind history already agreed upon.
		decision = Decision{Accepted: false, Reason: DropReasonConfirmedFrameRegression, Delay: decision.Delay}
	case g.cfg.RingCapacity > 0 && frame.SimFrame > frame.ConfirmedFrame+g.cfg.RingCapacity:
		//2.- Events further ahead than the ring can buffer cannot be stored for later resimulation.
		decision = Decision{Accepted: false, Reason: DropReasonRingOverflow, Delay: decision.Delay}
	default:
		state.seen = true
		state.lastConfirmed = frame.ConfirmedFrame
	}
	g.mu.Unlock()

	if !decision.Accepted {
		g.metrics.observe(frame.PeerID, decision.Reason)
	}
	return decision
}

// Forget clears cached sequencing and metrics for a disconnected peer.
func (g *Gate) Forget(peerID uint8) {
	if g == nil {
		return
	}
	g.mu.Lock()
	delete(g.peers, peerID)
	g.mu.Unlock()
	g.metrics.forget(peerID)
}

// Metrics returns a snapshot of the latest drop counters.
func (g *Gate) Metrics() map[uint8]DropCounters {
	if g == nil {
		return nil
	}
	return g.metrics.snapshot()
}
