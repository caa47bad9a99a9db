package corestate

import (
	"encoding/binary"
	"math"
)

// TimeView accesses the TimeCtx block.
type TimeView struct{ detachable }

// NewTimeView binds a TimeView to region's current generation.
func NewTimeView(region *Region) *TimeView {
	v := &TimeView{}
	v.bind(region)
	return v
}

func (v *TimeView) slice() []byte {
	return v.region.Context()[OffsetTime : OffsetTime+TimeCtxBytes]
}

// Frame returns the current frame number.
func (v *TimeView) Frame() (uint32, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return binary.LittleEndian.Uint32(v.slice()[timeFrameOffset:]), nil
}

// SetFrame stores the current frame number.
func (v *TimeView) SetFrame(frame uint32) error {
	if !v.live() {
		return ErrDetached
	}
	binary.LittleEndian.PutUint32(v.slice()[timeFrameOffset:], frame)
	return nil
}

// DtMs returns the elapsed milliseconds since the previous frame.
func (v *TimeView) DtMs() (uint32, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return binary.LittleEndian.Uint32(v.slice()[timeDtMsOffset:]), nil
}

// SetDtMs stores the elapsed milliseconds since the previous frame.
func (v *TimeView) SetDtMs(dtMs uint32) error {
	if !v.live() {
		return ErrDetached
	}
	binary.LittleEndian.PutUint32(v.slice()[timeDtMsOffset:], dtMs)
	return nil
}

// TotalMs returns the cumulative simulated milliseconds since frame zero.
func (v *TimeView) TotalMs() (uint64, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return binary.LittleEndian.Uint64(v.slice()[timeTotalMsOffset:]), nil
}

// SetTotalMs stores the cumulative simulated milliseconds since frame zero.
func (v *TimeView) SetTotalMs(totalMs uint64) error {
	if !v.live() {
		return ErrDetached
	}
	binary.LittleEndian.PutUint64(v.slice()[timeTotalMsOffset:], totalMs)
	return nil
}

// RandView accesses the RandCtx block.
type RandView struct{ detachable }

// NewRandView binds a RandView to region's current generation.
func NewRandView(region *Region) *RandView {
	v := &RandView{}
	v.bind(region)
	return v
}

func (v *RandView) slice() []byte {
	return v.region.Context()[OffsetRand : OffsetRand+RandCtxBytes]
}

// Seed returns the deterministic PRNG seed.
func (v *RandView) Seed() (uint32, error) {
	if !v.live() {
		return 0, ErrDetached
	}
	return binary.LittleEndian.Uint32(v.slice()[randSeedOffset:]), nil
}

// SetSeed stores the deterministic PRNG seed.
func (v *RandView) SetSeed(seed uint32) error {
	if !v.live() {
		return ErrDetached
	}
	binary.LittleEndian.PutUint32(v.slice()[randSeedOffset:], seed)
	return nil
}

// ScreenView accesses the ScreenCtx block.
type ScreenView struct{ detachable }

// NewScreenView binds a ScreenView to region's current generation.
func NewScreenView(region *Region) *ScreenView {
	v := &ScreenView{}
	v.bind(region)
	return v
}

func (v *ScreenView) slice() []byte {
	return v.region.Context()[OffsetScreen : OffsetScreen+ScreenCtxBytes]
}

// Size returns the logical and physical screen dimensions and pixel ratio.
func (v *ScreenView) Size() (width, height, physicalWidth, physicalHeight uint32, pixelRatio float32, err error) {
	if !v.live() {
		return 0, 0, 0, 0, 0, ErrDetached
	}
	s := v.slice()
	width = binary.LittleEndian.Uint32(s[screenWidthOffset:])
	height = binary.LittleEndian.Uint32(s[screenHeightOffset:])
	physicalWidth = binary.LittleEndian.Uint32(s[screenPhysicalWidthOffset:])
	physicalHeight = binary.LittleEndian.Uint32(s[screenPhysicalHeightOff:])
	pixelRatio = decodeFloat32(s[screenPixelRatioOffset:])
	return width, height, physicalWidth, physicalHeight, pixelRatio, nil
}

// SetSize stores the logical and physical screen dimensions and pixel ratio.
func (v *ScreenView) SetSize(width, height, physicalWidth, physicalHeight uint32, pixelRatio float32) error {
	if !v.live() {
		return ErrDetached
	}
	s := v.slice()
	binary.LittleEndian.PutUint32(s[screenWidthOffset:], width)
	binary.LittleEndian.PutUint32(s[screenHeightOffset:], height)
	binary.LittleEndian.PutUint32(s[screenPhysicalWidthOffset:], physicalWidth)
	binary.LittleEndian.PutUint32(s[screenPhysicalHeightOff:], physicalHeight)
	encodeFloat32(s[screenPixelRatioOffset:], pixelRatio)
	return nil
}

// VcrView accesses the VcrCtx block.
type VcrView struct{ detachable }

// NewVcrView binds a VcrView to region's current generation.
func NewVcrView(region *Region) *VcrView {
	v := &VcrView{}
	v.bind(region)
	return v
}

func (v *VcrView) slice() []byte {
	return v.region.Context()[OffsetVcr : OffsetVcr+VcrCtxBytes]
}

// IsRecording reports whether a tape is currently being recorded.
func (v *VcrView) IsRecording() (bool, error) {
	if !v.live() {
		return false, ErrDetached
	}
	return v.slice()[vcrIsRecordingOffset] != 0, nil
}

// IsReplaying reports whether a tape is currently being replayed.
func (v *VcrView) IsReplaying() (bool, error) {
	if !v.live() {
		return false, ErrDetached
	}
	return v.slice()[vcrIsReplayingOffset] != 0, nil
}

// SetRecording toggles the recording flag.
func (v *VcrView) SetRecording(on bool) error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[vcrIsRecordingOffset] = boolByte(on)
	return nil
}

// SetReplaying toggles the replaying flag.
func (v *VcrView) SetReplaying(on bool) error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[vcrIsReplayingOffset] = boolByte(on)
	return nil
}

// IsResimulating reports whether the step currently in progress is a replay
// pass over already-applied frames (a rollback resimulation, a confirmed-
// frame advance replay, or a Seek) rather than a fresh forward advance.
// Rendering and audio systems read this to skip user-visible side effects
// during replay passes.
func (v *VcrView) IsResimulating() (bool, error) {
	if !v.live() {
		return false, ErrDetached
	}
	return v.slice()[vcrIsResimulatingOff] != 0, nil
}

// SetResimulating toggles the resimulating flag.
func (v *VcrView) SetResimulating(on bool) error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[vcrIsResimulatingOff] = boolByte(on)
	return nil
}

// ConsumeWantsRecord reads and clears the host-requested record flag.
func (v *VcrView) ConsumeWantsRecord() (bool, error) {
	if !v.live() {
		return false, ErrDetached
	}
	s := v.slice()
	wants := s[vcrWantsRecordOffset] != 0
	s[vcrWantsRecordOffset] = 0
	return wants, nil
}

// ConsumeWantsStop reads and clears the host-requested stop flag.
func (v *VcrView) ConsumeWantsStop() (bool, error) {
	if !v.live() {
		return false, ErrDetached
	}
	s := v.slice()
	wants := s[vcrWantsStopOffset] != 0
	s[vcrWantsStopOffset] = 0
	return wants, nil
}

// RequestRecord sets the host-requested record flag.
func (v *VcrView) RequestRecord() error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[vcrWantsRecordOffset] = 1
	return nil
}

// RequestStop sets the host-requested stop flag.
func (v *VcrView) RequestStop() error {
	if !v.live() {
		return ErrDetached
	}
	v.slice()[vcrWantsStopOffset] = 1
	return nil
}

// Limits returns the configured max event count and max packet byte budget.
func (v *VcrView) Limits() (maxEvents, maxPacketBytes uint32, err error) {
	if !v.live() {
		return 0, 0, ErrDetached
	}
	s := v.slice()
	return binary.LittleEndian.Uint32(s[vcrMaxEventsOffset:]), binary.LittleEndian.Uint32(s[vcrMaxPacketBytesOff:]), nil
}

// SetLimits stores the configured max event count and max packet byte budget.
func (v *VcrView) SetLimits(maxEvents, maxPacketBytes uint32) error {
	if !v.live() {
		return ErrDetached
	}
	s := v.slice()
	binary.LittleEndian.PutUint32(s[vcrMaxEventsOffset:], maxEvents)
	binary.LittleEndian.PutUint32(s[vcrMaxPacketBytesOff:], maxPacketBytes)
	return nil
}

func boolByte(on bool) byte {
	if on {
		return 1
	}
	return 0
}

func encodeFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func decodeFloat32(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}
