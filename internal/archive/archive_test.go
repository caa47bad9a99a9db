package archive

import (
	"testing"
	"time"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/input"
)

func TestWriterRoundTripsEvents(t *testing.T) {
	dir := t.TempDir()
	clock := time.Unix(1700000000, 0)
	writer, manifest, err := NewWriter(dir, "session one!!", func() time.Time { return clock })
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if manifest.EventsPath != "events.jsonl.sz" {
		t.Fatalf("manifest.EventsPath = %q, want events.jsonl.sz", manifest.EventsPath)
	}

	events := []input.Event{
		input.EmitKey(input.KeyDown, corestate.SourceLocal, 0, 1, corestate.KeyW),
		input.EmitKey(input.KeyUp, corestate.SourceLocal, 0, 2, corestate.KeyW),
	}
	for _, e := range events {
		if err := writer.AppendEvent(e); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}
	writer.SetHeaderMetadata(42, 1)
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	header, err := ReadHeader(writer.Directory() + "/header.json")
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.SessionSeed != 42 || header.StartFrame != 1 {
		t.Fatalf("header = %+v, want seed 42 start 1", header)
	}

	loader, err := LoadEvents(writer.Directory() + "/events.jsonl.sz")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	entries := loader.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() len = %d, want 2", len(entries))
	}
	if entries[0].Event != events[0] || entries[1].Event != events[1] {
		t.Fatalf("Entries() = %+v, want events %+v", entries, events)
	}
}

func TestCleanerEnforcesMaxSessions(t *testing.T) {
	dir := t.TempDir()
	clock := time.Now()
	for i := 0; i < 3; i++ {
		writer, _, err := NewWriter(dir, "s", func() time.Time { return clock.Add(time.Duration(i) * time.Second) })
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		writer.SetHeaderMetadata(1, 0)
		if err := writer.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	cleaner := NewCleaner(dir, RetentionPolicy{MaxSessions: 1}, nil)
	cleaner.RunOnce()
	stats := cleaner.Stats()
	if stats.Sessions != 1 {
		t.Fatalf("Stats().Sessions = %d, want 1", stats.Sessions)
	}
}
