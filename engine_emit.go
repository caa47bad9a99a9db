package main

import (
	"fmt"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
	"github.com/bloopgames/rollback/internal/rollback"
	"github.com/bloopgames/rollback/internal/snapshot"
)

// EmitKeyDown records a locally captured key press for the next Step.
func (e *Engine) EmitKeyDown(code corestate.KeyCode) {
	e.queueLocal(input.EmitKey(input.KeyDown, corestate.SourceLocal, e.localPeerID, e.nextFrame(), code))
}

// EmitKeyUp records a locally captured key release for the next Step.
func (e *Engine) EmitKeyUp(code corestate.KeyCode) {
	e.queueLocal(input.EmitKey(input.KeyUp, corestate.SourceLocal, e.localPeerID, e.nextFrame(), code))
}

// EmitMouseMove records the pointer's absolute position for the next Step.
func (e *Engine) EmitMouseMove(x, y float32) {
	e.queueLocal(input.EmitMouseMove(corestate.SourceLocal, e.localPeerID, e.nextFrame(), x, y))
}

// EmitMouseWheel records a scroll delta for the next Step.
func (e *Engine) EmitMouseWheel(dx, dy float32) {
	e.queueLocal(input.EmitMouseWheel(corestate.SourceLocal, e.localPeerID, e.nextFrame(), dx, dy))
}

// EmitMouseDown records a mouse button press for the next Step.
func (e *Engine) EmitMouseDown(button corestate.MouseButton) {
	e.queueLocal(input.EmitMouseButton(input.MouseDown, corestate.SourceLocal, e.localPeerID, e.nextFrame(), button))
}

// EmitMouseUp records a mouse button release for the next Step.
func (e *Engine) EmitMouseUp(button corestate.MouseButton) {
	e.queueLocal(input.EmitMouseButton(input.MouseUp, corestate.SourceLocal, e.localPeerID, e.nextFrame(), button))
}

func (e *Engine) nextFrame() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controller.Frame() + 1
}

func (e *Engine) queueLocal(ev input.Event) {
	e.mu.Lock()
	e.pendingLocal = append(e.pendingLocal, ev)
	e.mu.Unlock()
}

// TakeSnapshot captures the region's current context and tail at the
// controller's tip frame.
func (e *Engine) TakeSnapshot() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot.Take(e.region, e.controller.Frame())
}

// Restore overwrites the region's context and tail from data, which must
// have been produced by TakeSnapshot against a region of identical shape.
// The restored frame becomes the controller's new tip; the rollback replay
// window is reset, so any peers must be re-registered against the rebuilt
// controller before live play resumes.
func (e *Engine) Restore(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	frame, err := snapshot.Restore(data, e.region)
	if err != nil {
		return fmt.Errorf("engine: restore snapshot: %w", err)
	}
	controller, err := rollback.NewController(e.region, e.localPeerID, e.runSystems,
		rollback.WithHistoryCapacity(e.historyCapacity),
		rollback.WithControllerLogger(e.log),
		rollback.WithStartFrame(frame),
	)
	if err != nil {
		return fmt.Errorf("engine: rebuild controller after restore: %w", err)
	}
	e.controller = controller
	return nil
}
