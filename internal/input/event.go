// Package input implements the event ingestion and per-frame derivation
// pipeline: tagged 16-byte Event records arrive from local capture, remote
// peers or tape playback, get gated for sequencing and freshness, and are
// folded into a corestate.InputView for the frame currently being simulated.
package input

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bloopgames/rollback/internal/corestate"
)

// EventBytes is the fixed wire size of a single Event record.
const EventBytes = 16

// Kind enumerates the input event types the pipeline understands.
type Kind uint8

const (
	KeyDown Kind = iota
	KeyUp
	MouseMove
	MouseWheel
	MouseDown
	MouseUp
)

// String renders the event kind for logs and tape inspection tools.
func (k Kind) String() string {
	switch k {
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case MouseMove:
		return "mouse_move"
	case MouseWheel:
		return "mouse_wheel"
	case MouseDown:
		return "mouse_down"
	case MouseUp:
		return "mouse_up"
	default:
		return "unknown"
	}
}

// Event is one 16-byte tagged input record.
//
//	offset 0:  Kind            (1 byte)
//	offset 1:  Source          (1 byte)
//	offset 2:  PeerID          (1 byte)
//	offset 3:  reserved        (1 byte)
//	offset 4:  Frame           (4 bytes, u32 LE)
//	offset 8:  payload         (8 bytes, interpreted per Kind)
type Event struct {
	Kind   Kind
	Source corestate.EventSource
	PeerID uint8
	Frame  uint32

	Key         corestate.KeyCode
	X, Y        float32
	WheelX      float32
	WheelY      float32
	MouseButton corestate.MouseButton
}

// EmitKey builds a KeyDown/KeyUp event.
func EmitKey(kind Kind, source corestate.EventSource, peerID uint8, frame uint32, key corestate.KeyCode) Event {
	return Event{Kind: kind, Source: source, PeerID: peerID, Frame: frame, Key: key}
}

// EmitMouseMove builds a MouseMove event carrying absolute pointer position.
func EmitMouseMove(source corestate.EventSource, peerID uint8, frame uint32, x, y float32) Event {
	return Event{Kind: MouseMove, Source: source, PeerID: peerID, Frame: frame, X: x, Y: y}
}

// EmitMouseWheel builds a MouseWheel event carrying scroll deltas.
func EmitMouseWheel(source corestate.EventSource, peerID uint8, frame uint32, dx, dy float32) Event {
	return Event{Kind: MouseWheel, Source: source, PeerID: peerID, Frame: frame, WheelX: dx, WheelY: dy}
}

// EmitMouseButton builds a MouseDown/MouseUp event.
func EmitMouseButton(kind Kind, source corestate.EventSource, peerID uint8, frame uint32, button corestate.MouseButton) Event {
	return Event{Kind: kind, Source: source, PeerID: peerID, Frame: frame, MouseButton: button}
}

// Encode writes the event's wire representation into dst, which must be at
// least EventBytes long.
func (e Event) Encode(dst []byte) error {
	if len(dst) < EventBytes {
		return fmt.Errorf("input: encode buffer too small: have %d, need %d", len(dst), EventBytes)
	}
	dst[0] = byte(e.Kind)
	dst[1] = byte(e.Source)
	dst[2] = e.PeerID
	dst[3] = 0
	binary.LittleEndian.PutUint32(dst[4:8], e.Frame)

	payload := dst[8:16]
	for i := range payload {
		payload[i] = 0
	}
	switch e.Kind {
	case KeyDown, KeyUp:
		binary.LittleEndian.PutUint16(payload[0:2], uint16(e.Key))
	case MouseMove:
		binary.LittleEndian.PutUint32(payload[0:4], math.Float32bits(e.X))
		binary.LittleEndian.PutUint32(payload[4:8], math.Float32bits(e.Y))
	case MouseWheel:
		binary.LittleEndian.PutUint32(payload[0:4], math.Float32bits(e.WheelX))
		binary.LittleEndian.PutUint32(payload[4:8], math.Float32bits(e.WheelY))
	case MouseDown, MouseUp:
		payload[0] = byte(e.MouseButton)
	default:
		return fmt.Errorf("input: unknown event kind %d", e.Kind)
	}
	return nil
}

// DecodeEvent parses a single wire-format Event from src, which must be at
// least EventBytes long.
func DecodeEvent(src []byte) (Event, error) {
	if len(src) < EventBytes {
		return Event{}, fmt.Errorf("input: decode buffer too small: have %d, need %d", len(src), EventBytes)
	}
	e := Event{
		Kind:   Kind(src[0]),
		Source: corestate.EventSource(src[1]),
		PeerID: src[2],
		Frame:  binary.LittleEndian.Uint32(src[4:8]),
	}
	payload := src[8:16]
	switch e.Kind {
	case KeyDown, KeyUp:
		e.Key = corestate.KeyCode(binary.LittleEndian.Uint16(payload[0:2]))
	case MouseMove:
		e.X = math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4]))
		e.Y = math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8]))
	case MouseWheel:
		e.WheelX = math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4]))
		e.WheelY = math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8]))
	case MouseDown, MouseUp:
		e.MouseButton = corestate.MouseButton(payload[0])
	default:
		return Event{}, fmt.Errorf("input: unknown event kind %d", e.Kind)
	}
	return e, nil
}
