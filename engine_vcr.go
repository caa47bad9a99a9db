package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
	"github.com/bloopgames/rollback/internal/rollback"
	"github.com/bloopgames/rollback/internal/snapshot"
	"github.com/bloopgames/rollback/internal/tape"
)

// StartRecording begins buffering a new tape from the current frame,
// capturing the live region as the tape's base snapshot.
func (e *Engine) StartRecording(userData []byte, maxEvents, maxPacketBytes uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := snapshot.Take(e.region, e.controller.Frame())
	e.recording = tape.StartRecording(e.controller.Frame(), base, userData, maxEvents, maxPacketBytes)
	return corestate.NewVcrView(e.region).SetRecording(true)
}

// StopRecording seals the in-progress tape and returns its encoded bytes.
// If an archive writer is attached, the sealed tape is also mirrored there
// as a durable dump.
func (e *Engine) StopRecording() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recording == nil {
		return nil, fmt.Errorf("engine: no recording in progress")
	}
	sealed := e.recording.StopRecording()
	e.recording = nil
	if err := corestate.NewVcrView(e.region).SetRecording(false); err != nil {
		return nil, err
	}
	if e.archiveWriter != nil {
		if err := e.archiveWriter.AppendTapeDump(e.controller.Frame(), sealed); err != nil {
			return sealed, fmt.Errorf("engine: mirror sealed tape to archive: %w", err)
		}
	}
	return sealed, nil
}

// LoadTape parses a sealed tape and arms the engine to replay it: the
// region is restored to the tape's base snapshot and the controller is
// rebuilt rooted at the tape's start frame. Call Step or Seek afterwards
// to drive playback.
func (e *Engine) LoadTape(data []byte) error {
	t, err := tape.Load(data)
	if err != nil {
		return fmt.Errorf("engine: load tape: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	frame, err := snapshot.Restore(t.Snapshot(), e.region)
	if err != nil {
		return fmt.Errorf("engine: restore tape base snapshot: %w", err)
	}
	controller, err := rollback.NewController(e.region, e.localPeerID, e.runSystems,
		rollback.WithHistoryCapacity(e.historyCapacity),
		rollback.WithControllerLogger(e.log),
		rollback.WithStartFrame(frame),
	)
	if err != nil {
		return fmt.Errorf("engine: rebuild controller for tape playback: %w", err)
	}
	events, err := decodeTapeEvents(t)
	if err != nil {
		return err
	}

	e.controller = controller
	e.replayTape = t
	e.replayEvents = events
	e.replaying = true
	return corestate.NewVcrView(e.region).SetReplaying(true)
}

// DumpArchive implements adminhttp.ArchiveDumper by flushing the attached
// archive writer's buffered dumps and returning its backing directory.
func (e *Engine) DumpArchive(ctx context.Context) (string, error) {
	e.mu.Lock()
	writer := e.archiveWriter
	e.mu.Unlock()
	if writer == nil {
		return "", fmt.Errorf("engine: no archive writer attached")
	}
	if err := writer.Flush(); err != nil {
		return "", err
	}
	return writer.Directory(), nil
}

// SnapshotClientCounts implements adminhttp.ReadinessProvider, reporting the
// number of peers the rollback controller currently tracks. The engine has
// no notion of a pending (pre-handshake) connection; that bookkeeping lives
// in the WebSocket bridge that owns the raw connections.
func (e *Engine) SnapshotClientCounts() (clients, pending int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	count, err := corestate.NewNetView(e.region).PeerCount()
	if err != nil {
		return 0, 0
	}
	return int(count), 0
}

// StartupError implements adminhttp.ReadinessProvider.
func (e *Engine) StartupError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startupErr
}

// Uptime implements adminhttp.ReadinessProvider.
func (e *Engine) Uptime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Since(e.startedAt)
}

// Snapshot implements adminhttp.SessionAdmin.
func (e *Engine) Snapshot() rollback.Snapshot {
	return e.session.Snapshot()
}

// AdjustCapacity implements adminhttp.SessionAdmin.
func (e *Engine) AdjustCapacity(minPeers, maxPeers int) (rollback.Snapshot, error) {
	return e.session.AdjustCapacity(minPeers, maxPeers)
}

// RollbackStats implements adminhttp.RollbackStatsProvider, reporting the
// controller's rolling rollback and input-drop counters for the admin
// status endpoint.
func (e *Engine) RollbackStats() corestate.RollbackStats {
	return e.controller.Stats()
}

// ConfirmedFrame implements adminhttp.RollbackStatsProvider.
func (e *Engine) ConfirmedFrame() uint32 {
	return e.controller.ConfirmedFrame()
}

// decodeTapeEvents decodes a tape's event log and orders it the way the
// rollback controller expects to ingest history: by frame, then by peer.
func decodeTapeEvents(t *tape.Tape) ([]input.Event, error) {
	events, err := t.Events()
	if err != nil {
		return nil, fmt.Errorf("engine: decode tape events: %w", err)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Frame != events[j].Frame {
			return events[i].Frame < events[j].Frame
		}
		return events[i].PeerID < events[j].PeerID
	})
	return events, nil
}
