// Package snapshot implements point-in-time capture and restore of a
// corestate.Region, used by the rollback controller to checkpoint
// confirmed frames and by the tape format to persist them to disk.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bloopgames/rollback/internal/corestate"
)

const (
	magic   = 0x53_4E_41_50 // "SNAP"
	version = uint16(1)

	// HeaderBytes is the fixed size of the snapshot framing header.
	HeaderBytes = 4 + 2 + 2 + 4 + 4 + 4
)

var (
	// ErrVersionMismatch is returned when a snapshot was produced by an
	// incompatible encoder version.
	ErrVersionMismatch = errors.New("snapshot: version mismatch")
	// ErrTruncated is returned when a snapshot buffer is shorter than its
	// header declares.
	ErrTruncated = errors.New("snapshot: truncated buffer")
	// ErrBadMagic is returned when a buffer does not start with the
	// snapshot magic number.
	ErrBadMagic = errors.New("snapshot: bad magic number")
)

// Header describes the framing around a serialized region.
type Header struct {
	Version      uint16
	Frame        uint32
	ContextBytes uint32
	TailBytes    uint32
}

// Take serializes region's context blocks and tail area into a single
// buffer prefixed by a Header. The returned slice is an independent copy;
// mutating region afterwards does not affect it.
func Take(region *corestate.Region, frame uint32) []byte {
	ctx := region.Context()
	tail := region.Tail()

	buf := make([]byte, HeaderBytes+len(ctx)+len(tail))
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:6], version)
	binary.LittleEndian.PutUint32(buf[8:12], frame)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(ctx)))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(tail)))
	copy(buf[HeaderBytes:], ctx)
	copy(buf[HeaderBytes+len(ctx):], tail)
	return buf
}

// ReadHeader parses just the framing header from a snapshot buffer.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderBytes {
		return Header{}, ErrTruncated
	}
	if binary.LittleEndian.Uint32(data[0:4]) != magic {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version:      binary.LittleEndian.Uint16(data[4:6]),
		Frame:        binary.LittleEndian.Uint32(data[8:12]),
		ContextBytes: binary.LittleEndian.Uint32(data[12:16]),
		TailBytes:    binary.LittleEndian.Uint32(data[16:20]),
	}
	if h.Version != version {
		return Header{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, version)
	}
	return h, nil
}

// Restore decodes a snapshot buffer produced by Take and overwrites region
// in place, growing its tail area as needed. It returns the frame number
// the snapshot was taken at.
func Restore(data []byte, region *corestate.Region) (uint32, error) {
	header, err := ReadHeader(data)
	if err != nil {
		return 0, err
	}
	need := HeaderBytes + int(header.ContextBytes) + int(header.TailBytes)
	if len(data) < need {
		return 0, ErrTruncated
	}
	if int(header.ContextBytes) != corestate.ContextBytes {
		return 0, fmt.Errorf("snapshot: context size %d does not match engine layout %d", header.ContextBytes, corestate.ContextBytes)
	}

	if len(region.Tail()) != int(header.TailBytes) {
		region.Grow(int(header.TailBytes))
	}
	copy(region.Context(), data[HeaderBytes:HeaderBytes+int(header.ContextBytes)])
	copy(region.Tail(), data[HeaderBytes+int(header.ContextBytes):need])
	return header.Frame, nil
}
