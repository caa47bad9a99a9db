// Package corestate implements the fixed-layout context blocks described by
// the engine's external ABI: Time, Input, Net, Rand, Screen and Vcr. All
// blocks live at compile-time constant offsets inside a single contiguous
// region so that snapshots and tapes can copy them verbatim.
package corestate

// MaxPlayers bounds the number of peers a session can track.
const MaxPlayers = 12

// RoomCodeBytes is the fixed width of a room code field, including the
// trailing null used by callers that treat it as a C string.
const RoomCodeBytes = 8

const (
	keyRegionBytes   = 256
	mouseRegionBytes = 24
	// PlayerInputBytes is the per-peer, per-frame input block size.
	PlayerInputBytes = keyRegionBytes + mouseRegionBytes
)

// TimeCtx field offsets, relative to the block start.
const (
	timeFrameOffset    = 0
	timeDtMsOffset     = 4
	timeTotalMsOffset  = 8
	// TimeCtxBytes reserves trailing padding so total_ms stays 8-byte aligned.
	TimeCtxBytes = 24
)

// InputCtx is PlayerInput[MaxPlayers].
const InputCtxBytes = PlayerInputBytes * MaxPlayers

// PlayerInput field offsets, relative to a single player's slot start.
const (
	playerKeysOffset  = 0
	playerMouseOffset = keyRegionBytes
)

// Mouse sub-block field offsets, relative to the mouse region start.
const (
	mouseXOffset      = 0
	mouseYOffset      = 4
	mouseWheelXOffset = 8
	mouseWheelYOffset = 12
	mouseLeftOffset   = 16
	mouseMiddleOffset = 17
	mouseRightOffset  = 18
)

// NetCtx field offsets, relative to the block start.
const (
	netPeerCountOffset        = 0
	netLocalPeerIDOffset      = 1
	netInSessionOffset        = 2
	netStatusOffset           = 3
	netMatchFrameOffset       = 4
	netSessionStartOffset     = 8
	netRoomCodeOffset         = 12
	netWantsRoomCodeOffset    = 12 + RoomCodeBytes
	netWantsDisconnectOffset  = 12 + 2*RoomCodeBytes
	netPeersOffset            = 32
	peerCtxBytes              = 6
	netLastRollbackDepthOff   = netPeersOffset + MaxPlayers*peerCtxBytes
	netTotalRollbacksOff      = netLastRollbackDepthOff + 4
	netFramesResimulatedOff   = netTotalRollbacksOff + 4
	netPacketsDroppedOff      = netFramesResimulatedOff + 8
	netDropRegressionOff      = netPacketsDroppedOff + 4
	netDropRingOverflowOff    = netDropRegressionOff + 4
	netDropStaleOff           = netDropRingOverflowOff + 4
	// NetCtxBytes is the fixed size of the NetCtx block.
	NetCtxBytes = netDropStaleOff + 4
)

// PeerCtx field offsets, relative to a single peer's slot start.
const (
	peerConnectedOffset = 0
	peerSeqOffset       = 1
	peerAckOffset       = 3
)

// RandCtx field offsets.
const (
	randSeedOffset = 0
	// RandCtxBytes is the fixed size of the RandCtx block.
	RandCtxBytes = 4
)

// ScreenCtx field offsets.
const (
	screenWidthOffset         = 0
	screenHeightOffset        = 4
	screenPhysicalWidthOffset = 8
	screenPhysicalHeightOff   = 12
	screenPixelRatioOffset    = 16
	// ScreenCtxBytes is the fixed size of the ScreenCtx block.
	ScreenCtxBytes = 20
)

// VcrCtx field offsets.
const (
	vcrIsRecordingOffset   = 0
	vcrIsReplayingOffset   = 1
	vcrWantsRecordOffset   = 2
	vcrWantsStopOffset     = 3
	vcrMaxEventsOffset     = 4
	vcrMaxPacketBytesOff   = 8
	vcrIsResimulatingOff   = 12
	// VcrCtxBytes is the fixed size of the VcrCtx block.
	VcrCtxBytes = 13
)

// Block offsets within the contiguous context region. Exported so hosts that
// need to mirror the ABI (e.g. a debug inspector) can compute addresses
// without importing the accessor types below.
const (
	OffsetTime   = 0
	OffsetInput  = OffsetTime + TimeCtxBytes
	OffsetNet    = OffsetInput + InputCtxBytes
	OffsetRand   = OffsetNet + NetCtxBytes
	OffsetScreen = OffsetRand + RandCtxBytes
	OffsetVcr    = OffsetScreen + ScreenCtxBytes

	// ContextBytes is the total size of the fixed context region.
	ContextBytes = OffsetVcr + VcrCtxBytes
)

// NetStatus enumerates the session connection state machine values stored in
// NetCtx.status.
type NetStatus uint8

const (
	NetStatusOffline NetStatus = iota
	NetStatusLocal
	NetStatusJoinPending
	NetStatusConnected
	NetStatusDisconnected
)

// EventSource enumerates where an Event originated.
type EventSource uint8

const (
	SourceLocal EventSource = iota
	SourceRemote
	SourceTape
)
