package tapecatalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bloopgames/rollback/internal/archive"
)

func TestListCollectsHeaders(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "alpha")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	header := archive.Header{
		SchemaVersion: archive.HeaderSchemaVersion,
		SessionSeed:   7,
		StartFrame:    3,
		FilePointer:   "manifest.json",
	}
	headerPath := filepath.Join(dataDir, "header.json")
	if err := archive.WriteHeader(headerPath, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Header.SessionSeed != 7 {
		t.Fatalf("unexpected session seed: %d", entry.Header.SessionSeed)
	}
	if entry.BundleDir != dataDir {
		t.Fatalf("unexpected bundle dir: %q", entry.BundleDir)
	}

	payload, err := MarshalEntries(entries)
	if err != nil {
		t.Fatalf("MarshalEntries: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected JSON payload to be non-empty")
	}
}
