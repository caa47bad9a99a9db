package archive

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/bloopgames/rollback/internal/input"
	"github.com/bloopgames/rollback/internal/tape"
)

// TimelineEntry represents a single archived event ready for deterministic
// iteration by validation tooling.
type TimelineEntry struct {
	Frame  uint32
	Kind   string
	PeerID uint8
	Event  input.Event
}

// Loader rehydrates a compressed event log for inspection or validation.
type Loader struct {
	entries []TimelineEntry
}

// LoadEvents reads an events.jsonl.sz file produced by Writer and returns a
// Loader over its sorted timeline.
func LoadEvents(path string) (*Loader, error) {
	if path == "" {
		return nil, fmt.Errorf("archive events path must be provided")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := snappy.NewReader(file)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var entries []TimelineEntry
	for scanner.Scan() {
		var record struct {
			Frame      uint32 `json:"frame"`
			Kind       string `json:"kind"`
			PeerID     uint8  `json:"peer_id"`
			PayloadB64 string `json:"payload_b64"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("parse event record: %w", err)
		}
		raw, err := base64.StdEncoding.DecodeString(record.PayloadB64)
		if err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		event, err := input.DecodeEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		entries = append(entries, TimelineEntry{Frame: record.Frame, Kind: record.Kind, PeerID: record.PeerID, Event: event})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Frame < entries[j].Frame })
	return &Loader{entries: entries}, nil
}

// Replay iterates over the loaded entries in deterministic frame order.
func (l *Loader) Replay(apply func(TimelineEntry) error) error {
	if l == nil {
		return fmt.Errorf("loader not initialised")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, entry := range l.entries {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}

// Entries exposes a defensive copy of the timeline for external assertions.
func (l *Loader) Entries() []TimelineEntry {
	if l == nil {
		return nil
	}
	out := make([]TimelineEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// DumpRecord pairs a sealed tape dump with the frame and wall-clock time it
// was captured at.
type DumpRecord struct {
	Frame      uint32
	CapturedAt time.Time
	Tape       *tape.Tape
}

// LoadDumps reads a tapes.bin.zst file produced by Writer.AppendTapeDump and
// returns every sealed tape dump in file order.
func LoadDumps(path string) ([]DumpRecord, error) {
	if path == "" {
		return nil, fmt.Errorf("archive dumps path must be provided")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var dumps []DumpRecord
	offset := 0
	for offset+16 <= len(payload) {
		frame := binary.LittleEndian.Uint32(payload[offset : offset+4])
		offset += 4
		capturedAt := int64(binary.LittleEndian.Uint64(payload[offset : offset+8]))
		offset += 8
		size := int(binary.LittleEndian.Uint32(payload[offset : offset+4]))
		offset += 4
		if size < 0 || offset+size > len(payload) {
			return nil, fmt.Errorf("tape dump payload truncated")
		}
		blob := payload[offset : offset+size]
		offset += size

		parsed, err := tape.Load(blob)
		if err != nil {
			return nil, fmt.Errorf("decode tape dump at frame %d: %w", frame, err)
		}
		dumps = append(dumps, DumpRecord{
			Frame:      frame,
			CapturedAt: time.Unix(0, capturedAt).UTC(),
			Tape:       parsed,
		})
	}
	return dumps, nil
}
