package rollback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
	"github.com/bloopgames/rollback/internal/logging"
	"github.com/bloopgames/rollback/internal/snapshot"
)

// ErrUnknownPeer is returned when remote input arrives for a peer slot the
// controller was never told to track.
var ErrUnknownPeer = errors.New("rollback: unknown peer")

// defaultHistoryCapacity is the history ring's initial capacity and the
// freshness gate's window: remote input more than this many frames past the
// confirmed frame is dropped. Advance never waits for a lagging peer; the
// history grows past this capacity instead.
const defaultHistoryCapacity = 256

// StepFunc advances the caller's simulation by exactly one frame. It is
// invoked once per confirmed or speculative frame, including every replay
// pass during resimulation, and must be a pure function of the region's
// current context plus the frame number. resimulating is true whenever this
// call is a replay of an already-applied frame (rollback resimulation,
// confirmed-frame advance, or Seek) rather than a fresh forward step, so
// rendering/audio systems can skip side effects during replay passes.
type StepFunc func(frame uint32, resimulating bool) error

type frameRecord struct {
	frame      uint32
	local      []input.Event
	remote     map[uint8][]input.Event
	speculated map[uint8]bool
	// snapshot is the region's state immediately after this frame was
	// simulated, used to restore the nearest point preceding a mispredicted
	// frame instead of always replaying from the oldest confirmed baseline.
	snapshot []byte
}

type peerStream struct {
	lastConfirmedFrame uint32
}

// ControllerOption configures optional Controller behaviour at construction time.
type ControllerOption func(*Controller)

// WithHistoryCapacity overrides the default replay window size.
func WithHistoryCapacity(capacity int) ControllerOption {
	return func(c *Controller) {
		if capacity > 0 {
			c.history = NewRing[frameRecord](capacity)
		}
	}
}

// WithControllerLogger overrides the logger used for rollback diagnostics.
func WithControllerLogger(log *logging.Logger) ControllerOption {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithStartFrame roots the controller at startFrame instead of frame zero,
// used when constructing a controller against a region that was just
// restored from a snapshot or seeded from a loaded tape.
func WithStartFrame(startFrame uint32) ControllerOption {
	return func(c *Controller) {
		c.frame = startFrame
		c.confirmedFrame = startFrame
	}
}

// Controller drives the per-frame rollback loop: it assembles local and
// remote input into frame records, speculates forward when remote input
// hasn't arrived yet, and resimulates the replay window from the last
// confirmed snapshot whenever a speculation turns out to have been wrong.
type Controller struct {
	mu sync.Mutex

	region *corestate.Region
	step   StepFunc
	log    *logging.Logger

	localPeerID uint8
	peers       map[uint8]*peerStream

	frame          uint32
	confirmedFrame uint32

	history  *Ring[frameRecord]
	baseline []byte

	pendingRemote map[uint32]map[uint8][]input.Event

	gate  *input.Gate
	stats corestate.RollbackStats
}

// NewController constructs a rollback controller rooted at region's current
// state, treating that state as frame 0.
func NewController(region *corestate.Region, localPeerID uint8, step StepFunc, opts ...ControllerOption) (*Controller, error) {
	if region == nil {
		return nil, fmt.Errorf("rollback: region must not be nil")
	}
	if step == nil {
		return nil, fmt.Errorf("rollback: step function must not be nil")
	}
	c := &Controller{
		region:        region,
		step:          step,
		log:           logging.L(),
		localPeerID:   localPeerID,
		peers:         make(map[uint8]*peerStream),
		history:       NewRing[frameRecord](defaultHistoryCapacity),
		pendingRemote: make(map[uint32]map[uint8][]input.Event),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.baseline = snapshot.Take(region, c.frame)
	c.gate = input.NewGate(input.Config{RingCapacity: uint32(c.history.Cap())}, c.log)
	return c, nil
}

// RegisterPeer begins tracking remote input for a peer slot.
func (c *Controller) RegisterPeer(peerID uint8) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.peers[peerID]; ok {
		return
	}
	c.peers[peerID] = &peerStream{lastConfirmedFrame: c.confirmedFrame}
}

// ForgetPeer stops tracking a disconnected peer slot.
func (c *Controller) ForgetPeer(peerID uint8) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.peers, peerID)
	c.gate.Forget(peerID)
}

// Frame returns the most recently simulated frame number.
func (c *Controller) Frame() uint32 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// ConfirmedFrame returns the newest frame for which every tracked peer's
// real input has been folded into the baseline snapshot.
func (c *Controller) ConfirmedFrame() uint32 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmedFrame
}

// Stats reports rolling rollback counters.
func (c *Controller) Stats() corestate.RollbackStats {
	if c == nil {
		return corestate.RollbackStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// IngestRemote accepts a frame's worth of input from a remote peer. Input
// for a frame already inside the replay window overwrites whatever was
// speculated for it; a rollback is triggered only when the delivered value
// actually differs from what was predicted. Input for a frame beyond the
// current tip is buffered until Advance reaches it. Input rejected by the
// freshness/window gate is dropped and counted rather than returned as an
// error, per the engine's policy of never aborting on bad external input.
func (c *Controller) IngestRemote(peerID uint8, frame uint32, events []input.Event) error {
	if c == nil {
		return fmt.Errorf("rollback: controller is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stream, ok := c.peers[peerID]
	if !ok {
		return ErrUnknownPeer
	}

	decision := c.gate.Evaluate(input.Frame{
		PeerID:         peerID,
		SimFrame:       frame,
		ConfirmedFrame: c.confirmedFrame,
	})
	if !decision.Accepted {
		c.recordDropLocked(decision.Reason)
		c.log.Debug("dropped remote input",
			logging.Int("peer", int(peerID)),
			logging.Int("frame", int(frame)),
			logging.String("reason", decision.Reason.String()),
		)
		return nil
	}

	if frame > stream.lastConfirmedFrame {
		stream.lastConfirmedFrame = frame
	}

	if frame <= c.confirmedFrame {
		// Already folded into the baseline or stale; nothing to correct.
		return nil
	}
	if frame > c.frame {
		bucket := c.pendingRemote[frame]
		if bucket == nil {
			bucket = make(map[uint8][]input.Event)
			c.pendingRemote[frame] = bucket
		}
		bucket[peerID] = cloneEvents(events)
		return nil
	}

	idx := int(frame - c.confirmedFrame - 1)
	if idx < 0 || idx >= c.history.Len() {
		c.recordDropLocked(input.DropReasonRingOverflow)
		c.log.Debug("dropped remote input: frame outside replay window",
			logging.Int("peer", int(peerID)),
			logging.Int("frame", int(frame)),
		)
		return nil
	}
	record := c.history.At(idx)
	changed := !eventsEqual(record.remote[peerID], events)
	if record.remote == nil {
		record.remote = make(map[uint8][]input.Event, len(c.peers))
	}
	if record.speculated == nil {
		record.speculated = make(map[uint8]bool, len(c.peers))
	}
	record.remote[peerID] = cloneEvents(events)
	record.speculated[peerID] = false
	c.history.Set(idx, record)
	if changed {
		return c.resimulateLocked(record.frame)
	}
	// No misprediction, but the peer's high-water mark may still have moved
	// the confirmed frame forward.
	return c.advanceConfirmedLocked()
}

// recordDropLocked tallies a rejected inbound event batch and mirrors the
// updated counters into NetCtx. Callers must hold c.mu.
func (c *Controller) recordDropLocked(reason input.DropReason) {
	c.stats.PacketsDropped++
	switch reason {
	case input.DropReasonConfirmedFrameRegression:
		c.stats.Drops.ConfirmedFrameRegression++
	case input.DropReasonRingOverflow:
		c.stats.Drops.RingOverflow++
	case input.DropReasonStale:
		c.stats.Drops.Stale++
	}
	_ = corestate.NewNetView(c.region).SetStats(c.stats)
}

// Advance assembles the next frame's input, applies it, and steps the
// simulation forward by one frame. localEvents is the input batch captured
// locally for this frame; it may be empty but must not be nil-unsafe to
// range over (nil is fine).
func (c *Controller) Advance(localEvents []input.Event) error {
	if c == nil {
		return fmt.Errorf("rollback: controller is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.frame + 1
	record := frameRecord{
		frame:      next,
		local:      cloneEvents(localEvents),
		remote:     make(map[uint8][]input.Event, len(c.peers)),
		speculated: make(map[uint8]bool, len(c.peers)),
	}
	pending := c.pendingRemote[next]
	for peerID := range c.peers {
		if pending != nil {
			if events, ok := pending[peerID]; ok {
				record.remote[peerID] = events
				continue
			}
		}
		record.speculated[peerID] = true
	}
	delete(c.pendingRemote, next)

	if err := c.applyRecord(record); err != nil {
		return err
	}
	if err := c.step(next, false); err != nil {
		return fmt.Errorf("rollback: step frame %d: %w", next, err)
	}
	c.frame = next
	record.snapshot = snapshot.Take(c.region, next)
	c.history.PushBack(record)

	return c.advanceConfirmedLocked()
}

// applyRecord folds local and remote input (real or speculated) into the
// region's input view for the frame being simulated.
func (c *Controller) applyRecord(record frameRecord) error {
	view := corestate.NewInputView(c.region)
	if err := input.Apply(view, int(c.localPeerID), record.local); err != nil {
		return fmt.Errorf("rollback: apply local input: %w", err)
	}
	for peerID := range c.peers {
		events := record.remote[peerID]
		if err := input.Apply(view, int(peerID), events); err != nil {
			return fmt.Errorf("rollback: apply remote input for peer %d: %w", peerID, err)
		}
	}
	return nil
}

// resimulateLocked restores the most recent snapshot at a frame strictly
// before rollbackFrom (falling back to the base snapshot when no nearer one
// is available) and replays forward from there, so rollback depth reflects
// the actual divergence point rather than always the full unconfirmed
// window. Callers must hold c.mu.
func (c *Controller) resimulateLocked(rollbackFrom uint32) error {
	if c.history.Len() == 0 {
		return nil
	}

	restoreFrom := c.baseline
	restoreFrame := c.confirmedFrame
	startIdx := 0
	for i := 0; i < c.history.Len(); i++ {
		record := c.history.At(i)
		if record.frame >= rollbackFrom {
			break
		}
		if record.snapshot != nil {
			restoreFrom = record.snapshot
			restoreFrame = record.frame
			startIdx = i + 1
		}
	}
	if _, err := snapshot.Restore(restoreFrom, c.region); err != nil {
		return fmt.Errorf("rollback: restore snapshot at frame %d: %w", restoreFrame, err)
	}

	depth := 0
	for i := startIdx; i < c.history.Len(); i++ {
		record := c.history.At(i)
		if err := c.applyRecord(record); err != nil {
			return err
		}
		if err := c.step(record.frame, true); err != nil {
			return fmt.Errorf("rollback: resimulate frame %d: %w", record.frame, err)
		}
		record.snapshot = snapshot.Take(c.region, record.frame)
		c.history.Set(i, record)
		depth++
	}

	c.stats.LastRollbackDepth = uint32(depth)
	c.stats.TotalRollbacks++
	c.stats.FramesResimulated += uint64(depth)
	c.log.Debug("rollback resimulated window",
		logging.Int("depth", depth),
		logging.Int("rollback_from", int(rollbackFrom)),
		logging.Int("confirmed_frame", int(c.confirmedFrame)),
		logging.Int("tip_frame", int(c.frame)),
	)
	_ = corestate.NewNetView(c.region).SetStats(c.stats)
	return c.advanceConfirmedLocked()
}

// advanceConfirmedLocked moves the confirmed frame forward to the oldest
// peer's high-water mark. Moving it requires replaying the whole window
// from the current baseline: the new baseline snapshot is taken partway
// through that replay, at the newly confirmed frame, and the replay
// continues afterwards so the live region ends up back at the tip frame.
// Callers must hold c.mu.
func (c *Controller) advanceConfirmedLocked() error {
	if len(c.peers) == 0 || c.history.Len() == 0 {
		return nil
	}
	newConfirmed := c.frame
	for _, stream := range c.peers {
		if stream.lastConfirmedFrame < newConfirmed {
			newConfirmed = stream.lastConfirmedFrame
		}
	}
	if newConfirmed <= c.confirmedFrame {
		return nil
	}
	advance := int(newConfirmed - c.confirmedFrame)

	if _, err := snapshot.Restore(c.baseline, c.region); err != nil {
		return fmt.Errorf("rollback: restore baseline: %w", err)
	}
	var newBaseline []byte
	for i := 0; i < c.history.Len(); i++ {
		record := c.history.At(i)
		if err := c.applyRecord(record); err != nil {
			return err
		}
		if err := c.step(record.frame, true); err != nil {
			return fmt.Errorf("rollback: confirm frame %d: %w", record.frame, err)
		}
		record.snapshot = snapshot.Take(c.region, record.frame)
		c.history.Set(i, record)
		if i == advance-1 {
			newBaseline = record.snapshot
		}
	}
	c.baseline = newBaseline
	c.history.TruncFront(advance)
	c.confirmedFrame = newConfirmed
	return nil
}

// Seek restores the baseline snapshot and replays history up to and
// including target, leaving the live region positioned at that frame
// instead of the current tip. It is used for tape playback and debug
// rewind, not for continuing a live rollback session: callers that need
// to keep advancing afterwards must treat the controller's internal frame
// bookkeeping as now describing target, not the original tip.
func (c *Controller) Seek(target uint32) error {
	if c == nil {
		return fmt.Errorf("rollback: controller is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if target < c.confirmedFrame {
		return fmt.Errorf("rollback: target frame %d precedes baseline frame %d", target, c.confirmedFrame)
	}
	if target > c.frame {
		return fmt.Errorf("rollback: target frame %d is ahead of tip frame %d", target, c.frame)
	}
	if _, err := snapshot.Restore(c.baseline, c.region); err != nil {
		return fmt.Errorf("rollback: restore baseline: %w", err)
	}
	for i := 0; i < c.history.Len(); i++ {
		record := c.history.At(i)
		if record.frame > target {
			break
		}
		if err := c.applyRecord(record); err != nil {
			return err
		}
		if err := c.step(record.frame, true); err != nil {
			return fmt.Errorf("rollback: seek replay frame %d: %w", record.frame, err)
		}
	}
	return nil
}

func cloneEvents(events []input.Event) []input.Event {
	if len(events) == 0 {
		return nil
	}
	return append([]input.Event(nil), events...)
}

func eventsEqual(a, b []input.Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
