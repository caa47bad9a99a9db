package tape

import (
	"testing"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
)

func TestBuilderRoundTrip(t *testing.T) {
	builder := StartRecording(10, []byte("snapshot-bytes"), []byte("user-data"), 100, 512)

	events := []input.Event{
		input.EmitKey(input.KeyDown, corestate.SourceLocal, 0, 10, corestate.KeyW),
		input.EmitKey(input.KeyUp, corestate.SourceLocal, 0, 12, corestate.KeyW),
	}
	for _, e := range events {
		if err := builder.AppendEvent(e); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}
	if err := builder.AppendPacket([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("AppendPacket: %v", err)
	}
	builder.AdvanceFrame(15)

	blob := builder.StopRecording()

	parsed, err := Load(blob)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(parsed.Snapshot()) != "snapshot-bytes" {
		t.Fatalf("Snapshot() = %q, want %q", parsed.Snapshot(), "snapshot-bytes")
	}
	if string(parsed.UserData()) != "user-data" {
		t.Fatalf("UserData() = %q, want %q", parsed.UserData(), "user-data")
	}
	gotEvents, err := parsed.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(gotEvents) != 2 || gotEvents[0] != events[0] || gotEvents[1] != events[1] {
		t.Fatalf("Events() = %+v, want %+v", gotEvents, events)
	}
	packets, err := parsed.Packets()
	if err != nil {
		t.Fatalf("Packets: %v", err)
	}
	if len(packets) != 1 || string(packets[0]) != "\x01\x02\x03\x04" {
		t.Fatalf("Packets() = %v, want one packet [1 2 3 4]", packets)
	}
	if parsed.Header().FrameCount != 6 {
		t.Fatalf("FrameCount = %d, want 6", parsed.Header().FrameCount)
	}
}

func TestAppendEventRejectsOverflow(t *testing.T) {
	builder := StartRecording(0, nil, nil, 1, 0)
	if err := builder.AppendEvent(input.EmitKey(input.KeyDown, corestate.SourceLocal, 0, 0, corestate.KeyA)); err != nil {
		t.Fatalf("first AppendEvent: %v", err)
	}
	if err := builder.AppendEvent(input.EmitKey(input.KeyDown, corestate.SourceLocal, 0, 1, corestate.KeyB)); err != ErrMaxEventsExceeded {
		t.Fatalf("second AppendEvent err = %v, want ErrMaxEventsExceeded", err)
	}
}

func TestAppendPacketRejectsOversize(t *testing.T) {
	builder := StartRecording(0, nil, nil, 0, 2)
	if err := builder.AppendPacket([]byte{1, 2, 3}); err != ErrPacketTooLarge {
		t.Fatalf("AppendPacket err = %v, want ErrPacketTooLarge", err)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	builder := StartRecording(0, nil, nil, 0, 0)
	blob := builder.StopRecording()
	blob[0] ^= 0xFF
	if _, err := Load(blob); err != ErrBadMagic {
		t.Fatalf("Load err = %v, want ErrBadMagic", err)
	}
}
