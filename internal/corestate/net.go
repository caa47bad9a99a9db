package corestate

import (
	"encoding/binary"
	"fmt"
)

// PeerState is a snapshot of one slot of NetCtx's peer array.
type PeerState struct {
	Connected bool
	Seq       int16
	Ack       int16
}

// NetView accesses the NetCtx block, including the per-peer rollback
// bookkeeping array.
type NetView struct{ detachable }

// NewNetView binds a NetView to region's current generation.
func NewNetView(region *Region) *NetView {
	v := &NetView{}
	v.bind(region)
	return v
}

func (v *NetView) slice() []byte {
	return v.region.Context()[OffsetNet : OffsetNet+NetCtxBytes]
}

func peerOffset(peerIndex int) (int, error) {
	if peerIndex < 0 || peerIndex >= MaxPlayers {
		return 0, fmt.Errorf("corestate: peer index %d out of range [0,%d)", peerIndex, MaxPlayers)
	}
	return netPeersOffset + peerIndex*peerCtxBytes, nil
}

// PeerCount returns the number of peers currently tracked.
func (v *NetView) PeerCount() (uint8, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return v.slice()[netPeerCountOffset], nil
}

// SetPeerCount stores the number of peers currently tracked.
func (v *NetView) SetPeerCount(count uint8) error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[netPeerCountOffset] = count
	return nil
}

// LocalPeerID returns the peer id assigned to this process.
func (v *NetView) LocalPeerID() (uint8, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return v.slice()[netLocalPeerIDOffset], nil
}

// SetLocalPeerID stores the peer id assigned to this process.
func (v *NetView) SetLocalPeerID(id uint8) error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[netLocalPeerIDOffset] = id
	return nil
}

// InSession reports whether a session is currently active.
func (v *NetView) InSession() (bool, error) {
	if !v.live() {
		return false, ErrDetached
	}
	return v.slice()[netInSessionOffset] != 0, nil
}

// SetInSession stores whether a session is currently active.
func (v *NetView) SetInSession(on bool) error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[netInSessionOffset] = boolByte(on)
	return nil
}

// Status returns the session connection state machine value.
func (v *NetView) Status() (NetStatus, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return NetStatus(v.slice()[netStatusOffset]), nil
}

// SetStatus stores the session connection state machine value.
func (v *NetView) SetStatus(status NetStatus) error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[netStatusOffset] = byte(status)
	return nil
}

// MatchFrame returns the current frame relative to the session start frame.
func (v *NetView) MatchFrame() (uint32, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return binary.LittleEndian.Uint32(v.slice()[netMatchFrameOffset:]), nil
}

// SetMatchFrame stores the current frame relative to the session start frame.
func (v *NetView) SetMatchFrame(frame uint32) error {
	if !v.live() {
		return ErrDetached
	}
	binary.LittleEndian.PutUint32(v.slice()[netMatchFrameOffset:], frame)
	return nil
}

// SessionStartFrame returns the frame at which the current session started.
func (v *NetView) SessionStartFrame() (uint32, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return binary.LittleEndian.Uint32(v.slice()[netSessionStartOffset:]), nil
}

// SetSessionStartFrame stores the frame at which the current session started.
func (v *NetView) SetSessionStartFrame(frame uint32) error {
	if !v.live() {
		return ErrDetached
	}
	binary.LittleEndian.PutUint32(v.slice()[netSessionStartOffset:], frame)
	return nil
}

// RoomCode returns the active room code as a trimmed string.
func (v *NetView) RoomCode() (string, error) {
	if !v.live() {
		return "", ErrDetached
	}
	return decodeCString(v.slice()[netRoomCodeOffset : netRoomCodeOffset+RoomCodeBytes]), nil
}

// SetRoomCode stores the active room code, truncating to RoomCodeBytes-1.
func (v *NetView) SetRoomCode(code string) error {
	if !v.live() {
		return ErrDetached
	}
	encodeCString(v.slice()[netRoomCodeOffset:netRoomCodeOffset+RoomCodeBytes], code)
	return nil
}

// WantsRoomCode returns the room code the host requested to join.
func (v *NetView) WantsRoomCode() (string, error) {
	if !v.live() {
		return "", ErrDetached
	}
	return decodeCString(v.slice()[netWantsRoomCodeOffset : netWantsRoomCodeOffset+RoomCodeBytes]), nil
}

// SetWantsRoomCode stores the room code the host requested to join.
func (v *NetView) SetWantsRoomCode(code string) error {
	if !v.live() {
		return ErrDetached
	}
	encodeCString(v.slice()[netWantsRoomCodeOffset:netWantsRoomCodeOffset+RoomCodeBytes], code)
	return nil
}

// ConsumeWantsDisconnect reads and clears the host-requested disconnect flag.
func (v *NetView) ConsumeWantsDisconnect() (bool, error) {
	if !v.live() {
		return false, ErrDetached
	}
	s := v.slice()
	wants := s[netWantsDisconnectOffset] != 0
	s[netWantsDisconnectOffset] = 0
	return wants, nil
}

// RequestDisconnect sets the host-requested disconnect flag.
func (v *NetView) RequestDisconnect() error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[netWantsDisconnectOffset] = 1
	return nil
}

// Peer returns the rollback bookkeeping for one peer slot.
func (v *NetView) Peer(peerIndex int) (PeerState, error) {
	if !v.live() {
		return PeerState{}, ErrDetached
	}
	off, err := peerOffset(peerIndex)
	if err != nil {
		return PeerState{}, err
	}
	s := v.slice()
	return PeerState{
		Connected: s[off+peerConnectedOffset] != 0,
		Seq:       int16(binary.LittleEndian.Uint16(s[off+peerSeqOffset:])),
		Ack:       int16(binary.LittleEndian.Uint16(s[off+peerAckOffset:])),
	}, nil
}

// SetPeer stores the rollback bookkeeping for one peer slot.
func (v *NetView) SetPeer(peerIndex int, state PeerState) error {
	if !v.live() {
		return ErrDetached
	}
	off, err := peerOffset(peerIndex)
	if err != nil {
		return err
	}
	s := v.slice()
	s[off+peerConnectedOffset] = boolByte(state.Connected)
	binary.LittleEndian.PutUint16(s[off+peerSeqOffset:], uint16(state.Seq))
	binary.LittleEndian.PutUint16(s[off+peerAckOffset:], uint16(state.Ack))
	return nil
}

// DropCounters breaks down rejected inbound remote input by reason, mirroring
// internal/input.DropCounters into the fixed-layout context region.
type DropCounters struct {
	ConfirmedFrameRegression uint32
	RingOverflow             uint32
	Stale                    uint32
}

// RollbackStats reports the rolling counters tracked by the controller.
type RollbackStats struct {
	LastRollbackDepth uint32
	TotalRollbacks    uint32
	FramesResimulated uint64
	PacketsDropped    uint32
	Drops             DropCounters
}

// Stats returns the rollback statistics mirrored into NetCtx.
func (v *NetView) Stats() (RollbackStats, error) {
	if !v.live() {
		return RollbackStats{}, ErrDetached
	}
	s := v.slice()
	return RollbackStats{
		LastRollbackDepth: binary.LittleEndian.Uint32(s[netLastRollbackDepthOff:]),
		TotalRollbacks:    binary.LittleEndian.Uint32(s[netTotalRollbacksOff:]),
		FramesResimulated: binary.LittleEndian.Uint64(s[netFramesResimulatedOff:]),
		PacketsDropped:    binary.LittleEndian.Uint32(s[netPacketsDroppedOff:]),
		Drops: DropCounters{
			ConfirmedFrameRegression: binary.LittleEndian.Uint32(s[netDropRegressionOff:]),
			RingOverflow:             binary.LittleEndian.Uint32(s[netDropRingOverflowOff:]),
			Stale:                    binary.LittleEndian.Uint32(s[netDropStaleOff:]),
		},
	}, nil
}

// SetStats stores the rollback statistics mirrored into NetCtx.
func (v *NetView) SetStats(stats RollbackStats) error {
	if !v.live() {
		return ErrDetached
	}
	s := v.slice()
	binary.LittleEndian.PutUint32(s[netLastRollbackDepthOff:], stats.LastRollbackDepth)
	binary.LittleEndian.PutUint32(s[netTotalRollbacksOff:], stats.TotalRollbacks)
	binary.LittleEndian.PutUint64(s[netFramesResimulatedOff:], stats.FramesResimulated)
	binary.LittleEndian.PutUint32(s[netPacketsDroppedOff:], stats.PacketsDropped)
	binary.LittleEndian.PutUint32(s[netDropRegressionOff:], stats.Drops.ConfirmedFrameRegression)
	binary.LittleEndian.PutUint32(s[netDropRingOverflowOff:], stats.Drops.RingOverflow)
	binary.LittleEndian.PutUint32(s[netDropStaleOff:], stats.Drops.Stale)
	return nil
}

func decodeCString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func encodeCString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := len(s)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	copy(dst, s[:n])
}
