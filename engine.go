package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/bloopgames/rollback/internal/archive"
	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
	"github.com/bloopgames/rollback/internal/logging"
	"github.com/bloopgames/rollback/internal/rollback"
	"github.com/bloopgames/rollback/internal/snapshot"
	"github.com/bloopgames/rollback/internal/tape"
)

// System is a user simulation system invoked once per fixed step. ctx is
// the region backing the six context blocks; frame is the frame the step
// just advanced to. resimulating is true during rollback replay passes
// (resimulation, confirmed-frame advance, or Seek), letting rendering and
// audio systems skip user-visible side effects they've already produced.
type System func(region *corestate.Region, frame uint32, resimulating bool) error

// outboxRecord is one frame's worth of local input, kept until every
// connected peer has acknowledged it so BuildOutboundPacket can resend the
// unacked window.
type outboxRecord struct {
	frame  uint32
	events []input.Event
}

// EngineOption configures optional Engine behaviour at construction time.
type EngineOption func(*Engine)

// WithUserDataLen reserves tailBytes of opaque user-owned storage in the
// context region's tail area, snapshotted and restored verbatim alongside
// the fixed context blocks.
func WithUserDataLen(tailBytes int) EngineOption {
	return func(e *Engine) { e.userDataLen = tailBytes }
}

// WithFrameHz overrides the fixed simulation step rate.
func WithFrameHz(hz float64) EngineOption {
	return func(e *Engine) {
		if hz > 0 {
			e.dtMs = uint32(1000.0/hz + 0.5)
			if e.dtMs == 0 {
				e.dtMs = 1
			}
		}
	}
}

// WithHistoryCapacity sets the rollback controller's history capacity, which
// sizes the window for accepted remote input; the history itself can grow
// past it.
func WithHistoryCapacity(capacity int) EngineOption {
	return func(e *Engine) { e.historyCapacity = capacity }
}

// WithEngineLogger overrides the logger used for engine diagnostics.
func WithEngineLogger(log *logging.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithArchiveWriter attaches a durable archive sink: every locally emitted
// event and every sealed tape dump is mirrored to it alongside the
// in-memory tape machinery.
func WithArchiveWriter(w *archive.Writer) EngineOption {
	return func(e *Engine) { e.archiveWriter = w }
}

// Engine is the rollback simulation facade: it owns the context region, the
// rollback controller, the per-peer outbound packet history, and the
// tape/VCR state machine, and exposes the boundary operations a host (the
// WebSocket bridge, the admin HTTP surface, or a test) drives the
// simulation through.
type Engine struct {
	mu sync.Mutex

	region     *corestate.Region
	controller *rollback.Controller
	session    *rollback.Session
	log        *logging.Logger

	localPeerID     uint8
	userDataLen     int
	dtMs            uint32
	historyCapacity int
	accumulatorMs   uint32

	systems []System

	pendingLocal []input.Event
	outbox       map[uint8][]outboxRecord
	remoteAck    map[uint8]uint16

	sessionStartFrame uint32
	inSession         bool

	recording     *tape.Builder
	archiveWriter *archive.Writer

	replayTape   *tape.Tape
	replayEvents []input.Event
	replaying    bool

	startedAt  time.Time
	startupErr error
	stepsTaken uint64
}

// NewEngine allocates the context region, seeds the deterministic RNG, and
// constructs a rollback controller rooted at frame zero.
func NewEngine(localPeerID uint8, seed uint32, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		log:             logging.L(),
		localPeerID:     localPeerID,
		dtMs:            16,
		historyCapacity: 256,
		outbox:          make(map[uint8][]outboxRecord),
		remoteAck:       make(map[uint8]uint16),
		startedAt:       time.Now(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	e.region = corestate.NewRegion(e.userDataLen)
	if err := corestate.NewRandView(e.region).SetSeed(seed); err != nil {
		e.startupErr = err
		return nil, fmt.Errorf("engine: seed rng: %w", err)
	}
	if err := corestate.NewNetView(e.region).SetLocalPeerID(localPeerID); err != nil {
		e.startupErr = err
		return nil, fmt.Errorf("engine: set local peer id: %w", err)
	}

	controller, err := rollback.NewController(e.region, localPeerID, e.runSystems,
		rollback.WithHistoryCapacity(e.historyCapacity),
		rollback.WithControllerLogger(e.log),
	)
	if err != nil {
		e.startupErr = err
		return nil, fmt.Errorf("engine: construct rollback controller: %w", err)
	}
	e.controller = controller

	session, err := rollback.NewSession()
	if err != nil {
		e.startupErr = err
		return nil, fmt.Errorf("engine: construct session: %w", err)
	}
	e.session = session
	return e, nil
}

// RegisterSystem appends a user simulation system invoked, in registration
// order, once per fixed step after input has been folded into the context.
func (e *Engine) RegisterSystem(sys System) {
	if e == nil || sys == nil {
		return
	}
	e.mu.Lock()
	e.systems = append(e.systems, sys)
	e.mu.Unlock()
}

// AcceptHMR swaps the registered system table between frames. The context
// region, including the opaque user blob, is left untouched.
func (e *Engine) AcceptHMR(systems []System) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.systems = append([]System(nil), systems...)
	e.mu.Unlock()
}

func (e *Engine) runSystems(frame uint32, resimulating bool) error {
	if err := corestate.NewVcrView(e.region).SetResimulating(resimulating); err != nil {
		return err
	}
	for _, sys := range e.systems {
		if err := sys(e.region, frame, resimulating); err != nil {
			return err
		}
	}
	return nil
}

// Region exposes the backing context region for read access by the host
// (e.g. the admin status endpoint). Mutation outside the documented
// wants_* fields and the user blob is unsupported.
func (e *Engine) Region() *corestate.Region { return e.region }

// Frame returns the most recently simulated frame.
func (e *Engine) Frame() uint32 {
	if e == nil {
		return 0
	}
	return e.controller.Frame()
}

// Step accumulates elapsedMs into the engine's millisecond accumulator and
// runs as many fixed-duration ticks as have become due, per §4.G of the
// rollback specification. It is the single entry point that advances
// simulated time; every other mutation (Emit*, ReceivePacket,
// SessionEmitInputs) only prepares state for the next tick.
func (e *Engine) Step(elapsedMs uint32) error {
	if e == nil {
		return fmt.Errorf("engine: nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.accumulatorMs += elapsedMs
	for e.accumulatorMs >= e.dtMs {
		if err := e.tickLocked(); err != nil {
			return err
		}
		e.accumulatorMs -= e.dtMs
	}
	return nil
}

// tickLocked advances the simulation by exactly one fixed step. Callers
// must hold e.mu.
func (e *Engine) tickLocked() error {
	var local []input.Event
	if e.replaying {
		local = e.drainReplayEventsLocked()
	} else {
		local = e.pendingLocal
		e.pendingLocal = nil
	}

	if err := e.controller.Advance(local); err != nil {
		return err
	}
	frame := e.controller.Frame()
	e.stepsTaken++

	timeView := corestate.NewTimeView(e.region)
	if err := timeView.SetFrame(frame); err != nil {
		return err
	}
	if err := timeView.SetDtMs(e.dtMs); err != nil {
		return err
	}
	total, err := timeView.TotalMs()
	if err != nil {
		return err
	}
	if err := timeView.SetTotalMs(total + uint64(e.dtMs)); err != nil {
		return err
	}

	if e.inSession {
		netView := corestate.NewNetView(e.region)
		if err := netView.SetMatchFrame(frame - e.sessionStartFrame); err != nil {
			return err
		}
	}
	if e.recording != nil && !e.replaying {
		for _, ev := range local {
			if err := e.recording.AppendEvent(ev); err != nil {
				return fmt.Errorf("engine: append event to recording: %w", err)
			}
		}
		e.recording.AdvanceFrame(frame)
	}
	if !e.replaying {
		records := append(e.outbox[e.localPeerID], outboxRecord{frame: frame, events: local})
		if over := len(records) - e.historyCapacity; over > 0 {
			records = records[over:]
		}
		e.outbox[e.localPeerID] = records
	}
	return nil
}

func (e *Engine) drainReplayEventsLocked() []input.Event {
	if len(e.replayEvents) == 0 {
		e.replaying = false
		_ = corestate.NewVcrView(e.region).SetReplaying(false)
		return nil
	}
	next := e.controller.Frame() + 1
	var batch []input.Event
	i := 0
	for ; i < len(e.replayEvents); i++ {
		if e.replayEvents[i].Frame != next {
			break
		}
		batch = append(batch, e.replayEvents[i])
	}
	e.replayEvents = e.replayEvents[i:]
	return batch
}

// Seek restores the engine to target, either by replaying a loaded tape's
// event log from its base snapshot or, for a live session, by rewinding
// the rollback controller's own replay window. Seeking a live controller
// repositions it at target and is intended for debug inspection, not for
// resuming normal play from a frame other than the controller's tip.
func (e *Engine) Seek(target uint32) error {
	if e == nil {
		return fmt.Errorf("engine: nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.replayTape != nil {
		return e.seekReplayLocked(target)
	}
	return e.controller.Seek(target)
}

func (e *Engine) seekReplayLocked(target uint32) error {
	if _, err := snapshot.Restore(e.replayTape.Snapshot(), e.region); err != nil {
		return fmt.Errorf("engine: restore tape base snapshot: %w", err)
	}
	events, err := decodeTapeEvents(e.replayTape)
	if err != nil {
		return err
	}
	e.replayEvents = events
	e.replaying = true
	for e.controller.Frame() < target {
		if err := e.tickLocked(); err != nil {
			return err
		}
	}
	return nil
}
