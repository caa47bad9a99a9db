package main

import (
	"bytes"
	"testing"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
	"github.com/bloopgames/rollback/internal/packet"
)

func newTestEngine(t *testing.T, localPeerID uint8, seed uint32) *Engine {
	t.Helper()
	e, err := NewEngine(localPeerID, seed)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngineBasicStep(t *testing.T) {
	e := newTestEngine(t, 0, 1)

	if err := e.Step(16); err != nil {
		t.Fatalf("Step: %v", err)
	}

	view := corestate.NewTimeView(e.Region())
	frame, err := view.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if frame != 1 {
		t.Fatalf("Frame() = %d, want 1", frame)
	}
	dt, err := view.DtMs()
	if err != nil {
		t.Fatalf("DtMs: %v", err)
	}
	if dt != 16 {
		t.Fatalf("DtMs() = %d, want 16", dt)
	}
	total, err := view.TotalMs()
	if err != nil {
		t.Fatalf("TotalMs: %v", err)
	}
	if total != 16 {
		t.Fatalf("TotalMs() = %d, want 16", total)
	}
}

func TestEngineKeydownKeyup(t *testing.T) {
	e := newTestEngine(t, 0, 1)
	view := corestate.NewInputView(e.Region())

	e.EmitKeyDown(corestate.KeyW)
	if err := e.Step(16); err != nil {
		t.Fatalf("Step: %v", err)
	}
	held, err := view.Key(0, corestate.KeyW)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if !held {
		t.Fatalf("expected KeyW held after keydown step")
	}

	e.EmitKeyUp(corestate.KeyW)
	if err := e.Step(16); err != nil {
		t.Fatalf("Step: %v", err)
	}
	held, err = view.Key(0, corestate.KeyW)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if held {
		t.Fatalf("expected KeyW released after keyup step")
	}

	if err := e.Step(16); err != nil {
		t.Fatalf("Step: %v", err)
	}
	held, err = view.Key(0, corestate.KeyW)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if held {
		t.Fatalf("expected KeyW to remain released with no further input")
	}
}

func TestEngineSnapshotRestoreIdempotence(t *testing.T) {
	e, err := NewEngine(0, 7, WithUserDataLen(16))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	for i := 0; i < 5; i++ {
		if i%2 == 0 {
			e.EmitKeyDown(corestate.KeyA)
		} else {
			e.EmitKeyUp(corestate.KeyA)
		}
		e.EmitMouseMove(float32(i), float32(-i))
		if err := e.Step(16); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}

	copy(e.Region().Tail(), []byte("pre-mutation-blob"))
	wantCtx := append([]byte(nil), e.Region().Context()...)
	wantTail := append([]byte(nil), e.Region().Tail()...)
	snap := e.TakeSnapshot()

	tail := e.Region().Tail()
	for i := range tail {
		tail[i] ^= 0xff
	}
	ctx := e.Region().Context()
	for i := range ctx {
		ctx[i] ^= 0xff
	}

	if err := e.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !bytes.Equal(e.Region().Context(), wantCtx) {
		t.Fatalf("context after restore does not match pre-mutation snapshot")
	}
	if !bytes.Equal(e.Region().Tail(), wantTail) {
		t.Fatalf("UserBlob after restore does not match pre-mutation value")
	}
}

func TestEngineRollbackOnLateCorrection(t *testing.T) {
	e := newTestEngine(t, 0, 3)
	if err := e.RegisterPeer(1); err != nil {
		t.Fatalf("RegisterPeer: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := e.Step(16); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}

	corrected := []input.Event{input.EmitKey(input.KeyDown, corestate.SourceRemote, 1, 3, corestate.KeyA)}
	if err := e.SessionEmitInputs(1, 3, corrected); err != nil {
		t.Fatalf("SessionEmitInputs: %v", err)
	}

	stats, err := corestate.NewNetView(e.Region()).Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRollbacks == 0 {
		t.Fatalf("expected at least one rollback to have been recorded")
	}

	view := corestate.NewInputView(e.Region())
	held, err := view.Key(1, corestate.KeyA)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if !held {
		t.Fatalf("expected corrected key A held for peer 1 after resimulation")
	}
}

func TestEngineBuildOutboundPacketWindowsByAck(t *testing.T) {
	e := newTestEngine(t, 0, 9)
	if err := e.RegisterPeer(1); err != nil {
		t.Fatalf("RegisterPeer: %v", err)
	}

	for i := 0; i < 9; i++ {
		e.EmitKeyDown(corestate.KeyB)
		if err := e.Step(16); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}

	ackPacket, _, err := packet.Encode(1, 0, 4, nil, 1024)
	if err != nil {
		t.Fatalf("Encode ack packet: %v", err)
	}
	if err := e.ReceivePacket(ackPacket); err != nil {
		t.Fatalf("ReceivePacket: %v", err)
	}

	outbound, err := e.BuildOutboundPacket(1, 1024)
	if err != nil {
		t.Fatalf("BuildOutboundPacket: %v", err)
	}
	_, events, err := packet.Decode(outbound)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("expected outbound packet to carry events for frames 5..9")
	}
	for _, ev := range events {
		if ev.Frame <= 4 || ev.Frame > 9 {
			t.Fatalf("event frame %d outside expected window [5,9]", ev.Frame)
		}
	}
}

func TestEngineTapeRoundTrip(t *testing.T) {
	const seed = 42

	original := newTestEngine(t, 0, seed)
	if err := original.StartRecording(nil, 0, 0); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	for i := 0; i < 120; i++ {
		original.EmitMouseMove(float32(i), float32(i*2))
		if err := original.Step(16); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	sealed, err := original.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	reference := newTestEngine(t, 0, seed)
	for i := 0; i < 60; i++ {
		reference.EmitMouseMove(float32(i), float32(i*2))
		if err := reference.Step(16); err != nil {
			t.Fatalf("reference Step %d: %v", i, err)
		}
	}
	want := append([]byte(nil), reference.Region().Context()...)

	replay := newTestEngine(t, 0, seed)
	if err := replay.LoadTape(sealed); err != nil {
		t.Fatalf("LoadTape: %v", err)
	}
	if err := replay.Seek(60); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if !bytes.Equal(replay.Region().Context(), want) {
		t.Fatalf("replayed context at frame 60 does not match original recording")
	}
}
