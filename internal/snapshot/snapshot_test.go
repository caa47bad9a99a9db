package snapshot

import (
	"testing"

	"github.com/bloopgames/rollback/internal/corestate"
)

func TestTakeRestoreRoundTrip(t *testing.T) {
	region := corestate.NewRegion(32)
	view := corestate.NewTimeView(region)
	if err := view.SetFrame(17); err != nil {
		t.Fatalf("SetFrame: %v", err)
	}
	region.Tail()[0] = 0x42

	blob := Take(region, 17)

	other := corestate.NewRegion(0)
	frame, err := Restore(blob, other)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if frame != 17 {
		t.Fatalf("Restore() frame = %d, want 17", frame)
	}
	otherView := corestate.NewTimeView(other)
	gotFrame, err := otherView.Frame()
	if err != nil || gotFrame != 17 {
		t.Fatalf("restored Frame() = %d, %v, want 17, nil", gotFrame, err)
	}
	if other.Tail()[0] != 0x42 {
		t.Fatalf("restored tail byte = %x, want 0x42", other.Tail()[0])
	}
}

func TestRestoreRejectsTruncated(t *testing.T) {
	if _, err := Restore([]byte{1, 2, 3}, corestate.NewRegion(0)); err != ErrTruncated {
		t.Fatalf("Restore() err = %v, want ErrTruncated", err)
	}
}

func TestRestoreRejectsBadMagic(t *testing.T) {
	region := corestate.NewRegion(0)
	blob := Take(region, 0)
	blob[0] ^= 0xFF
	if _, err := Restore(blob, corestate.NewRegion(0)); err != ErrBadMagic {
		t.Fatalf("Restore() err = %v, want ErrBadMagic", err)
	}
}
