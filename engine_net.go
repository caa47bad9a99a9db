package main

import (
	"fmt"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
	"github.com/bloopgames/rollback/internal/packet"
	"github.com/bloopgames/rollback/internal/rollback"
)

// RegisterPeer begins tracking remote input and packet bookkeeping for a
// newly connected peer.
func (e *Engine) RegisterPeer(peerID uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.controller.RegisterPeer(peerID)
	net := corestate.NewNetView(e.region)
	if err := net.SetPeer(int(peerID), corestate.PeerState{Connected: true}); err != nil {
		return fmt.Errorf("engine: mark peer %d connected: %w", peerID, err)
	}
	count, err := net.PeerCount()
	if err != nil {
		return err
	}
	return net.SetPeerCount(count + 1)
}

// ForgetPeer stops tracking a disconnected peer and clears its input slot.
func (e *Engine) ForgetPeer(peerID uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.controller.ForgetPeer(peerID)
	delete(e.outbox, peerID)
	delete(e.remoteAck, peerID)

	net := corestate.NewNetView(e.region)
	if err := net.SetPeer(int(peerID), corestate.PeerState{}); err != nil {
		return err
	}
	if err := corestate.NewInputView(e.region).ClearPlayer(int(peerID)); err != nil {
		return err
	}
	count, err := net.PeerCount()
	if err != nil {
		return err
	}
	if count > 0 {
		count--
	}
	return net.SetPeerCount(count)
}

// BuildOutboundPacket encodes every unacknowledged local frame's events
// destined for targetPeer into a wire packet, truncated to maxBytes. It
// always returns an encoded packet, header-only when no unacknowledged
// events remain; no per-peer send budget is applied here.
func (e *Engine) BuildOutboundPacket(targetPeer uint8, maxBytes int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ack := e.remoteAck[targetPeer]
	records := e.outbox[e.localPeerID]
	var events []input.Event
	for _, rec := range records {
		if uint16(rec.frame) <= ack && rec.frame != 0 {
			continue
		}
		events = append(events, rec.events...)
	}

	seq := uint16(e.controller.Frame())
	confirmed := uint16(e.controller.ConfirmedFrame())
	encoded, deferred, err := packet.Encode(e.localPeerID, seq, confirmed, events, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("engine: encode outbound packet for peer %d: %w", targetPeer, err)
	}
	if len(deferred) > 0 {
		e.log.Debug("outbound packet truncated events to fit byte budget")
	}
	return encoded, nil
}

// ReceivePacket decodes an inbound wire packet and folds its events into
// the rollback controller, bucketed by frame.
func (e *Engine) ReceivePacket(data []byte) error {
	header, events, err := packet.Decode(data)
	if err != nil {
		return fmt.Errorf("engine: decode inbound packet: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.remoteAck[header.LocalPeerID] = header.Ack

	byFrame := make(map[uint32][]input.Event)
	for _, ev := range events {
		byFrame[ev.Frame] = append(byFrame[ev.Frame], ev)
	}
	for frame, batch := range byFrame {
		if err := e.controller.IngestRemote(header.LocalPeerID, frame, batch); err != nil {
			return fmt.Errorf("engine: ingest remote input from peer %d frame %d: %w", header.LocalPeerID, frame, err)
		}
	}
	if e.recording != nil && !e.replaying {
		for _, ev := range events {
			if err := e.recording.AppendEvent(ev); err != nil {
				return fmt.Errorf("engine: append remote event to recording: %w", err)
			}
		}
	}

	net := corestate.NewNetView(e.region)
	state, err := net.Peer(int(header.LocalPeerID))
	if err != nil {
		return err
	}
	state.Connected = true
	state.Seq = int16(header.Seq)
	state.Ack = int16(header.Ack)
	return net.SetPeer(int(header.LocalPeerID), state)
}

// SessionInit transitions the session to join-pending/connected for peerID
// and mirrors the resulting status into NetCtx.
func (e *Engine) SessionInit(peerID string) (rollback.Snapshot, error) {
	snap, err := e.session.Join(peerID)
	if err != nil {
		return snap, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	net := corestate.NewNetView(e.region)
	if err := net.SetStatus(snap.Status); err != nil {
		return snap, err
	}
	if !e.inSession {
		e.inSession = true
		e.sessionStartFrame = e.controller.Frame() + 1
		if err := net.SetSessionStartFrame(e.sessionStartFrame); err != nil {
			return snap, err
		}
	}
	return snap, net.SetInSession(true)
}

// SessionEnd removes peerID from the session and mirrors the resulting
// status into NetCtx.
func (e *Engine) SessionEnd(peerID string) rollback.Snapshot {
	snap := e.session.Leave(peerID)
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = corestate.NewNetView(e.region).SetStatus(snap.Status)
	if len(snap.ActivePeers) == 0 {
		e.inSession = false
	}
	return snap
}

// SessionEmitInputs folds a batch of already-decoded remote events into the
// session's peer, identical to ReceivePacket but bypassing the wire codec
// for hosts that deliver input out of band (e.g. local loopback peers).
func (e *Engine) SessionEmitInputs(peerID uint8, frame uint32, events []input.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.controller.IngestRemote(peerID, frame, events); err != nil {
		return err
	}
	if e.recording != nil && !e.replaying {
		for _, ev := range events {
			if err := e.recording.AppendEvent(ev); err != nil {
				return fmt.Errorf("engine: append remote event to recording: %w", err)
			}
		}
	}
	return nil
}
