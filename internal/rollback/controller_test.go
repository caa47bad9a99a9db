package rollback

import (
	"testing"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
)

func newTestRegion() *corestate.Region {
	return corestate.NewRegion(0)
}

func countingStep(calls *int) StepFunc {
	return func(frame uint32, resimulating bool) error {
		*calls++
		return nil
	}
}

func TestControllerAdvanceAppliesLocalInput(t *testing.T) {
	region := newTestRegion()
	calls := 0
	ctrl, err := NewController(region, 0, countingStep(&calls))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctrl.RegisterPeer(1)

	events := []input.Event{input.EmitKey(input.KeyDown, corestate.SourceLocal, 0, 1, corestate.KeyW)}
	if err := ctrl.Advance(events); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if calls != 1 {
		t.Fatalf("step calls = %d, want 1", calls)
	}
	if ctrl.Frame() != 1 {
		t.Fatalf("Frame() = %d, want 1", ctrl.Frame())
	}

	view := corestate.NewInputView(region)
	held, err := view.Key(0, corestate.KeyW)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if !held {
		t.Fatalf("expected key W held for local player after local input applied")
	}
}

func TestControllerSpeculatesThenConfirms(t *testing.T) {
	region := newTestRegion()
	calls := 0
	ctrl, err := NewController(region, 0, countingStep(&calls))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctrl.RegisterPeer(1)

	for i := 0; i < 3; i++ {
		if err := ctrl.Advance(nil); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if ctrl.Frame() != 3 {
		t.Fatalf("Frame() = %d, want 3", ctrl.Frame())
	}
	if ctrl.ConfirmedFrame() != 0 {
		t.Fatalf("ConfirmedFrame() = %d, want 0 before any remote input arrives", ctrl.ConfirmedFrame())
	}

	if err := ctrl.IngestRemote(1, 1, nil); err != nil {
		t.Fatalf("IngestRemote frame 1: %v", err)
	}
	if err := ctrl.IngestRemote(1, 2, nil); err != nil {
		t.Fatalf("IngestRemote frame 2: %v", err)
	}
	if ctrl.ConfirmedFrame() != 2 {
		t.Fatalf("ConfirmedFrame() = %d, want 2 once peer confirms frames 1-2", ctrl.ConfirmedFrame())
	}
}

func TestControllerRollsBackOnLateCorrection(t *testing.T) {
	region := newTestRegion()
	calls := 0
	ctrl, err := NewController(region, 0, countingStep(&calls))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctrl.RegisterPeer(1)

	if err := ctrl.Advance(nil); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := ctrl.Advance(nil); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	remoteEvents := []input.Event{input.EmitKey(input.KeyDown, corestate.SourceRemote, 1, 1, corestate.KeyA)}
	if err := ctrl.IngestRemote(1, 1, remoteEvents); err != nil {
		t.Fatalf("IngestRemote: %v", err)
	}

	stats := ctrl.Stats()
	if stats.TotalRollbacks == 0 {
		t.Fatalf("expected a rollback to have been recorded")
	}

	view := corestate.NewInputView(region)
	held, err := view.Key(1, corestate.KeyA)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if !held {
		t.Fatalf("expected corrected remote key A to be held for peer 1 after resimulation")
	}
}

func TestControllerNoRollbackWhenSpeculationMatchesRealInput(t *testing.T) {
	region := newTestRegion()
	calls := 0
	ctrl, err := NewController(region, 0, countingStep(&calls))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctrl.RegisterPeer(1)

	for i := 0; i < 3; i++ {
		if err := ctrl.Advance(nil); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	// Peer 1 never sent input for frames 1-3; the speculated value (no
	// events) already matches what the confirmation carries, so folding it
	// in must not trigger a resimulation even though every one of these
	// frames was marked speculated.
	for frame := uint32(1); frame <= 3; frame++ {
		if err := ctrl.IngestRemote(1, frame, nil); err != nil {
			t.Fatalf("IngestRemote frame %d: %v", frame, err)
		}
	}

	stats := ctrl.Stats()
	if stats.TotalRollbacks != 0 {
		t.Fatalf("TotalRollbacks = %d, want 0 when confirmed input matches the prediction", stats.TotalRollbacks)
	}
	if stats.FramesResimulated != 0 {
		t.Fatalf("FramesResimulated = %d, want 0", stats.FramesResimulated)
	}
	if ctrl.ConfirmedFrame() != 3 {
		t.Fatalf("ConfirmedFrame() = %d, want 3", ctrl.ConfirmedFrame())
	}
}

func TestControllerRollbackDepthIsBoundedByDivergencePoint(t *testing.T) {
	region := newTestRegion()
	calls := 0
	ctrl, err := NewController(region, 0, countingStep(&calls))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctrl.RegisterPeer(1)

	for i := 0; i < 10; i++ {
		if err := ctrl.Advance(nil); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	// Frames 1 and 2 confirm exactly as speculated; only frame 3 actually
	// diverges. The resimulation this triggers must only replay from frame 3
	// onward (8 frames, through the tip at frame 10), not the entire
	// unconfirmed window back to frame 0.
	if err := ctrl.IngestRemote(1, 1, nil); err != nil {
		t.Fatalf("IngestRemote frame 1: %v", err)
	}
	if err := ctrl.IngestRemote(1, 2, nil); err != nil {
		t.Fatalf("IngestRemote frame 2: %v", err)
	}
	diverging := []input.Event{input.EmitKey(input.KeyDown, corestate.SourceRemote, 1, 3, corestate.KeyA)}
	if err := ctrl.IngestRemote(1, 3, diverging); err != nil {
		t.Fatalf("IngestRemote frame 3: %v", err)
	}

	stats := ctrl.Stats()
	if stats.TotalRollbacks != 1 {
		t.Fatalf("TotalRollbacks = %d, want 1", stats.TotalRollbacks)
	}
	if stats.FramesResimulated != 8 {
		t.Fatalf("FramesResimulated = %d, want 8", stats.FramesResimulated)
	}
}

func TestControllerRejectsUnknownPeer(t *testing.T) {
	region := newTestRegion()
	calls := 0
	ctrl, err := NewController(region, 0, countingStep(&calls))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := ctrl.IngestRemote(9, 1, nil); err != ErrUnknownPeer {
		t.Fatalf("IngestRemote err = %v, want ErrUnknownPeer", err)
	}
}
