// Package tapeplayer rehydrates an archived rollback session for offline
// inspection: the compressed event timeline and the periodic sealed tape
// dumps written alongside it.
package tapeplayer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bloopgames/rollback/internal/archive"
)

// Bundle captures everything recovered from an archive directory.
type Bundle struct {
	Header archive.Header
	Events []archive.TimelineEntry
	Dumps  []archive.DumpRecord
}

// Load reads the header, event timeline and tape dumps from an archive
// bundle directory produced by archive.Writer.
func Load(dir string) (Bundle, error) {
	if dir == "" {
		return Bundle{}, fmt.Errorf("path is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return Bundle{}, err
	}
	if !info.IsDir() {
		return Bundle{}, fmt.Errorf("%s is not an archive directory", dir)
	}

	header, err := archive.ReadHeader(filepath.Join(dir, "header.json"))
	if err != nil {
		return Bundle{}, err
	}

	loader, err := archive.LoadEvents(filepath.Join(dir, "events.jsonl.sz"))
	if err != nil {
		return Bundle{}, err
	}

	dumps, err := archive.LoadDumps(filepath.Join(dir, "tapes.bin.zst"))
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{Header: header, Events: loader.Entries(), Dumps: dumps}, nil
}
