// Package tape implements the on-disk binary format used to persist a
// rollback session: a starting snapshot, an opaque user-data blob, the full
// event log, and the raw packet log, each framed by fixed-offset fields in a
// single header so tooling can seek directly to any section.
package tape

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bloopgames/rollback/internal/input"
)

const (
	magic   = 0x54_41_50_45 // "TAPE"
	version = uint16(1)

	// HeaderBytes is the fixed size of the tape header.
	HeaderBytes = 56
)

var (
	// ErrVersionMismatch is returned when a tape was produced by an
	// incompatible encoder version.
	ErrVersionMismatch = errors.New("tape: version mismatch")
	// ErrTruncated is returned when a tape buffer is shorter than its
	// header's offsets imply.
	ErrTruncated = errors.New("tape: truncated buffer")
	// ErrBadMagic is returned when a buffer does not start with the tape
	// magic number.
	ErrBadMagic = errors.New("tape: bad magic number")
	// ErrMaxEventsExceeded is returned when AppendEvent would exceed the
	// tape's configured event capacity.
	ErrMaxEventsExceeded = errors.New("tape: max event count exceeded")
	// ErrPacketTooLarge is returned when AppendPacket exceeds the tape's
	// configured per-packet byte budget.
	ErrPacketTooLarge = errors.New("tape: packet exceeds max packet bytes")
)

// Header mirrors the fixed-offset fields persisted at the start of a tape.
type Header struct {
	Version         uint16
	StartFrame      uint32
	FrameCount      uint32
	EventCount      uint32
	MaxEvents       uint32
	SnapshotOffset  uint32
	UserDataOffset  uint32
	EventStartOff   uint32
	EventEndOff     uint32
	PacketStartOff  uint32
	PacketEndOff    uint32
	PacketCount     uint32
	MaxPacketBytes  uint32
}

// Builder accumulates events and packets in memory for a recording in
// progress; StopRecording seals it into the final byte layout.
type Builder struct {
	startFrame     uint32
	lastFrame      uint32
	maxEvents      uint32
	maxPacketBytes uint32
	snapshot       []byte
	userData       []byte
	events         [][]byte
	packets        [][]byte
}

// StartRecording begins a new tape with the given starting snapshot and
// opaque user-data blob.
func StartRecording(startFrame uint32, snapshot, userData []byte, maxEvents, maxPacketBytes uint32) *Builder {
	return &Builder{
		startFrame:     startFrame,
		lastFrame:      startFrame,
		maxEvents:      maxEvents,
		maxPacketBytes: maxPacketBytes,
		snapshot:       append([]byte(nil), snapshot...),
		userData:       append([]byte(nil), userData...),
	}
}

// AppendEvent encodes and appends a single input event to the tape.
func (b *Builder) AppendEvent(e input.Event) error {
	if b.maxEvents > 0 && uint32(len(b.events)) >= b.maxEvents {
		return ErrMaxEventsExceeded
	}
	buf := make([]byte, input.EventBytes)
	if err := e.Encode(buf); err != nil {
		return err
	}
	b.events = append(b.events, buf)
	if e.Frame > b.lastFrame {
		b.lastFrame = e.Frame
	}
	return nil
}

// AppendPacket records a single raw wire packet for later inspection.
func (b *Builder) AppendPacket(raw []byte) error {
	if b.maxPacketBytes > 0 && uint32(len(raw)) > b.maxPacketBytes {
		return ErrPacketTooLarge
	}
	b.packets = append(b.packets, append([]byte(nil), raw...))
	return nil
}

// AdvanceFrame records that the tape has progressed to frame, so
// StopRecording reports an accurate frame count even for frames with no
// events of their own.
func (b *Builder) AdvanceFrame(frame uint32) {
	if frame > b.lastFrame {
		b.lastFrame = frame
	}
}

// StopRecording seals the builder into the final tape byte layout.
func (b *Builder) StopRecording() []byte {
	snapshotOffset := uint32(HeaderBytes)
	userDataOffset := snapshotOffset + uint32(len(b.snapshot))
	eventStart := userDataOffset + uint32(len(b.userData))

	eventsBytes := uint32(len(b.events)) * uint32(input.EventBytes)
	eventEnd := eventStart + eventsBytes

	packetStart := eventEnd
	var packetBytes uint32
	for _, p := range b.packets {
		packetBytes += 4 + uint32(len(p))
	}
	packetEnd := packetStart + packetBytes

	header := Header{
		Version:        version,
		StartFrame:     b.startFrame,
		FrameCount:     b.lastFrame - b.startFrame + 1,
		EventCount:     uint32(len(b.events)),
		MaxEvents:      b.maxEvents,
		SnapshotOffset: snapshotOffset,
		UserDataOffset: userDataOffset,
		EventStartOff:  eventStart,
		EventEndOff:    eventEnd,
		PacketStartOff: packetStart,
		PacketEndOff:   packetEnd,
		PacketCount:    uint32(len(b.packets)),
		MaxPacketBytes: b.maxPacketBytes,
	}

	out := make([]byte, packetEnd)
	encodeHeader(out[:HeaderBytes], header)
	copy(out[snapshotOffset:], b.snapshot)
	copy(out[userDataOffset:], b.userData)

	cursor := eventStart
	for _, e := range b.events {
		copy(out[cursor:], e)
		cursor += uint32(len(e))
	}
	cursor = packetStart
	for _, p := range b.packets {
		binary.LittleEndian.PutUint32(out[cursor:cursor+4], uint32(len(p)))
		copy(out[cursor+4:], p)
		cursor += 4 + uint32(len(p))
	}
	return out
}

func encodeHeader(dst []byte, h Header) {
	binary.LittleEndian.PutUint32(dst[0:4], magic)
	binary.LittleEndian.PutUint16(dst[4:6], h.Version)
	binary.LittleEndian.PutUint32(dst[8:12], h.StartFrame)
	binary.LittleEndian.PutUint32(dst[12:16], h.FrameCount)
	binary.LittleEndian.PutUint32(dst[16:20], h.EventCount)
	binary.LittleEndian.PutUint32(dst[20:24], h.MaxEvents)
	binary.LittleEndian.PutUint32(dst[24:28], h.SnapshotOffset)
	binary.LittleEndian.PutUint32(dst[28:32], h.UserDataOffset)
	binary.LittleEndian.PutUint32(dst[32:36], h.EventStartOff)
	binary.LittleEndian.PutUint32(dst[36:40], h.EventEndOff)
	binary.LittleEndian.PutUint32(dst[40:44], h.PacketStartOff)
	binary.LittleEndian.PutUint32(dst[44:48], h.PacketEndOff)
	binary.LittleEndian.PutUint32(dst[48:52], h.PacketCount)
	binary.LittleEndian.PutUint32(dst[52:56], h.MaxPacketBytes)
}

func decodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderBytes {
		return Header{}, ErrTruncated
	}
	if binary.LittleEndian.Uint32(src[0:4]) != magic {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version:        binary.LittleEndian.Uint16(src[4:6]),
		StartFrame:     binary.LittleEndian.Uint32(src[8:12]),
		FrameCount:     binary.LittleEndian.Uint32(src[12:16]),
		EventCount:     binary.LittleEndian.Uint32(src[16:20]),
		MaxEvents:      binary.LittleEndian.Uint32(src[20:24]),
		SnapshotOffset: binary.LittleEndian.Uint32(src[24:28]),
		UserDataOffset: binary.LittleEndian.Uint32(src[28:32]),
		EventStartOff:  binary.LittleEndian.Uint32(src[32:36]),
		EventEndOff:    binary.LittleEndian.Uint32(src[36:40]),
		PacketStartOff: binary.LittleEndian.Uint32(src[40:44]),
		PacketEndOff:   binary.LittleEndian.Uint32(src[44:48]),
		PacketCount:    binary.LittleEndian.Uint32(src[48:52]),
		MaxPacketBytes: binary.LittleEndian.Uint32(src[52:56]),
	}
	if h.Version != version {
		return Header{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, version)
	}
	return h, nil
}

// Tape is a parsed, read-only view over a sealed tape buffer.
type Tape struct {
	header Header
	data   []byte
}

// Load parses a sealed tape buffer.
func Load(data []byte) (*Tape, error) {
	header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) < header.PacketEndOff {
		return nil, ErrTruncated
	}
	return &Tape{header: header, data: data}, nil
}

// Header returns the parsed tape header.
func (t *Tape) Header() Header { return t.header }

// Snapshot returns the starting snapshot blob.
func (t *Tape) Snapshot() []byte {
	return t.data[t.header.SnapshotOffset:t.header.UserDataOffset]
}

// UserData returns the opaque host-provided metadata blob.
func (t *Tape) UserData() []byte {
	return t.data[t.header.UserDataOffset:t.header.EventStartOff]
}

// Events decodes and returns every event record in file order.
func (t *Tape) Events() ([]input.Event, error) {
	region := t.data[t.header.EventStartOff:t.header.EventEndOff]
	count := len(region) / input.EventBytes
	events := make([]input.Event, 0, count)
	for i := 0; i < count; i++ {
		e, err := input.DecodeEvent(region[i*input.EventBytes:])
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// Packets returns every raw packet record in file order.
func (t *Tape) Packets() ([][]byte, error) {
	region := t.data[t.header.PacketStartOff:t.header.PacketEndOff]
	packets := make([][]byte, 0, t.header.PacketCount)
	cursor := 0
	for cursor < len(region) {
		if cursor+4 > len(region) {
			return nil, ErrTruncated
		}
		n := int(binary.LittleEndian.Uint32(region[cursor : cursor+4]))
		cursor += 4
		if cursor+n > len(region) {
			return nil, ErrTruncated
		}
		packets = append(packets, region[cursor:cursor+n])
		cursor += n
	}
	return packets, nil
}
