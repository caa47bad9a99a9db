// Package packet implements the wire codec for peer-to-peer rollback
// traffic: a small fixed header carrying sequence/ack bookkeeping followed
// by a run of 16-byte input event records, truncated to fit a caller-
// supplied byte budget.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bloopgames/rollback/internal/input"
)

// HeaderBytes is the fixed size of the packet header preceding the event run.
const HeaderBytes = 10

// CurrentVersion is the wire version this codec emits and requires on decode.
const CurrentVersion = 1

var (
	// ErrInvalidVersion is returned when a decoded packet's version does not
	// match CurrentVersion.
	ErrInvalidVersion = errors.New("packet: invalid version")
	// ErrTruncated is returned when a buffer is shorter than its header or
	// event run requires.
	ErrTruncated = errors.New("packet: truncated buffer")
	// ErrEventsOverflow is returned when more events are supplied than a
	// uint16 event_count field can represent.
	ErrEventsOverflow = errors.New("packet: event count exceeds uint16 range")
	// ErrPeerNotConnected is returned by callers that look up a packet's
	// LocalPeerID against a roster and find no matching connected peer.
	ErrPeerNotConnected = errors.New("packet: peer not connected")
)

// Header carries sequence/ack bookkeeping for one wire packet.
type Header struct {
	Version      uint8
	LocalPeerID  uint8
	Seq          uint16
	Ack          uint16
	EventCount   uint16
}

// Encode serialises header fields and as many events as fit within
// maxBytes, returning the encoded packet and any events that had to be
// deferred to a later packet because the budget was exhausted.
func Encode(localPeerID uint8, seq, ack uint16, events []input.Event, maxBytes int) (encoded []byte, deferred []input.Event, err error) {
	fit := len(events)
	if maxBytes > 0 {
		available := maxBytes - HeaderBytes
		if available < 0 {
			available = 0
		}
		maxFit := available / input.EventBytes
		if maxFit < fit {
			fit = maxFit
		}
	}
	if fit > 0xFFFF {
		return nil, nil, ErrEventsOverflow
	}

	buf := make([]byte, HeaderBytes+fit*input.EventBytes)
	buf[0] = CurrentVersion
	buf[1] = localPeerID
	binary.LittleEndian.PutUint16(buf[2:4], seq)
	binary.LittleEndian.PutUint16(buf[4:6], ack)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(fit))
	binary.LittleEndian.PutUint16(buf[8:10], 0)

	cursor := HeaderBytes
	for i := 0; i < fit; i++ {
		if err := events[i].Encode(buf[cursor : cursor+input.EventBytes]); err != nil {
			return nil, nil, err
		}
		cursor += input.EventBytes
	}
	if fit < len(events) {
		deferred = append([]input.Event(nil), events[fit:]...)
	}
	return buf, deferred, nil
}

// Decode parses a wire packet's header and event run.
func Decode(data []byte) (Header, []input.Event, error) {
	if len(data) < HeaderBytes {
		return Header{}, nil, ErrTruncated
	}
	header := Header{
		Version:     data[0],
		LocalPeerID: data[1],
		Seq:         binary.LittleEndian.Uint16(data[2:4]),
		Ack:         binary.LittleEndian.Uint16(data[4:6]),
		EventCount:  binary.LittleEndian.Uint16(data[6:8]),
	}
	if header.Version != CurrentVersion {
		return Header{}, nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidVersion, header.Version, CurrentVersion)
	}
	need := HeaderBytes + int(header.EventCount)*input.EventBytes
	if len(data) < need {
		return Header{}, nil, ErrTruncated
	}
	events := make([]input.Event, 0, header.EventCount)
	cursor := HeaderBytes
	for i := 0; i < int(header.EventCount); i++ {
		e, err := input.DecodeEvent(data[cursor : cursor+input.EventBytes])
		if err != nil {
			return Header{}, nil, err
		}
		events = append(events, e)
		cursor += input.EventBytes
	}
	return header, events, nil
}
