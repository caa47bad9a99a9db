package packet

import (
	"testing"
	"time"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	events := []input.Event{
		input.EmitKey(input.KeyDown, corestate.SourceLocal, 3, 10, corestate.KeyW),
		input.EmitMouseMove(corestate.SourceLocal, 3, 11, 1.5, -2.5),
	}
	encoded, deferred, err := Encode(3, 7, 6, events, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(deferred) != 0 {
		t.Fatalf("deferred = %d, want 0", len(deferred))
	}

	header, decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if header.Version != CurrentVersion || header.LocalPeerID != 3 || header.Seq != 7 || header.Ack != 6 {
		t.Fatalf("header = %+v", header)
	}
	if len(decoded) != len(events) {
		t.Fatalf("decoded len = %d, want %d", len(decoded), len(events))
	}
	for i, e := range events {
		if decoded[i] != e {
			t.Fatalf("decoded[%d] = %+v, want %+v", i, decoded[i], e)
		}
	}
}

func TestEncodeDefersEventsPastBudget(t *testing.T) {
	events := make([]input.Event, 5)
	for i := range events {
		events[i] = input.EmitKey(input.KeyDown, corestate.SourceLocal, 1, uint32(i), corestate.KeyA)
	}
	maxBytes := HeaderBytes + 2*input.EventBytes
	encoded, deferred, err := Encode(1, 0, 0, events, maxBytes)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(deferred) != 3 {
		t.Fatalf("deferred len = %d, want 3", len(deferred))
	}
	header, decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if header.EventCount != 2 || len(decoded) != 2 {
		t.Fatalf("EventCount = %d, decoded len = %d, want 2", header.EventCount, len(decoded))
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	encoded, _, err := Encode(0, 0, 0, nil, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encoded[0] = CurrentVersion + 1
	if _, _, err := Decode(encoded); err == nil {
		t.Fatalf("Decode: expected error for bad version")
	}
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	if _, _, err := Decode([]byte{1, 2, 3}); err != ErrTruncated {
		t.Fatalf("Decode err = %v, want ErrTruncated", err)
	}
}

func TestBudgetAllowsWithinRateAndBlocksBurst(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	budget := NewBudget(100, 100, clock)

	if !budget.Allow(1, 80) {
		t.Fatalf("first send should be allowed")
	}
	if budget.Allow(1, 50) {
		t.Fatalf("second send should exceed remaining tokens")
	}
	now = now.Add(time.Second)
	if !budget.Allow(1, 50) {
		t.Fatalf("send after replenishment should be allowed")
	}
	budget.Forget(1)
	usage := budget.SnapshotUsage()
	if _, ok := usage[1]; ok {
		t.Fatalf("usage for forgotten peer should be absent")
	}
}
