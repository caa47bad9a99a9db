package archive

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/bloopgames/rollback/internal/input"
)

var writerSessionCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// dumpInterval bounds how often buffered tape dumps are flushed to disk.
const dumpInterval = 200 * time.Millisecond

type dumpBlob struct {
	Frame      uint32
	CapturedAt time.Time
	Payload    []byte
}

// Writer streams a session's archive to disk: a compressed JSONL event log
// and periodic compressed tape dumps.
type Writer struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	dumpFile    *os.File
	dumpStream  *zstd.Encoder
	pending      []dumpBlob
	lastFlush    time.Time
	headerSeed   uint32
	startFrame   uint32
	dumpsWritten uint64
}

// Manifest describes the archive bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version      int    `json:"version"`
	CreatedAt    string `json:"created_at"`
	DumpIntervalMs int  `json:"dump_interval_ms"`
	EventsPath   string `json:"events_path"`
	DumpsPath    string `json:"dumps_path"`
}

// NewWriter prepares the archive directory and opens compressed sinks.
func NewWriter(root, sessionID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("archive root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := writerSessionCleaner.ReplaceAllString(sessionID, "")
	if cleaned == "" {
		cleaned = "session"
	}
	created := clock().UTC()
	folder := fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z"))
	path := filepath.Join(root, folder)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventsPath := filepath.Join(path, "events.jsonl.sz")
	dumpsPath := filepath.Join(path, "tapes.bin.zst")
	manifestPath := filepath.Join(path, "manifest.json")

	eventFile, err := os.Create(eventsPath)
	if err != nil {
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	dumpFile, err := os.Create(dumpsPath)
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	dumpStream, err := zstd.NewWriter(dumpFile)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		dumpFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:        1,
		CreatedAt:      created.Format(time.RFC3339Nano),
		DumpIntervalMs: int(dumpInterval / time.Millisecond),
		EventsPath:     "events.jsonl.sz",
		DumpsPath:      "tapes.bin.zst",
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		dumpStream.Close()
		dumpFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		dumpStream.Close()
		dumpFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	return &Writer{
		dir:         path,
		now:         clock,
		eventFile:   eventFile,
		eventStream: eventStream,
		dumpFile:    dumpFile,
		dumpStream:  dumpStream,
	}, manifest, nil
}

// Directory exposes the directory backing the archive bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// Stats summarises tape dump buffering activity for metrics reporting.
type Stats struct {
	PendingDumps int
	PendingBytes int64
	Dumps        uint64
}

// Stats reports the writer's current buffering state.
func (w *Writer) Stats() Stats {
	if w == nil {
		return Stats{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var pendingBytes int64
	for _, dump := range w.pending {
		pendingBytes += int64(len(dump.Payload))
	}
	return Stats{PendingDumps: len(w.pending), PendingBytes: pendingBytes, Dumps: w.dumpsWritten}
}

// AppendEvent writes a single JSON event line to the compressed event log.
func (w *Writer) AppendEvent(e input.Event) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	captured := w.now().UTC()
	raw := make([]byte, input.EventBytes)
	if err := e.Encode(raw); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	record := struct {
		Frame      uint32 `json:"frame"`
		CapturedAt string `json:"captured_at"`
		Kind       string `json:"kind"`
		PeerID     uint8  `json:"peer_id"`
		PayloadB64 string `json:"payload_b64"`
	}{
		Frame:      e.Frame,
		CapturedAt: captured.Format(time.RFC3339Nano),
		Kind:       e.Kind.String(),
		PeerID:     e.PeerID,
		PayloadB64: base64.StdEncoding.EncodeToString(raw),
	}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := w.eventStream.Write(line); err != nil {
		return err
	}
	if _, err := w.eventStream.Write([]byte("\n")); err != nil {
		return err
	}
	return w.eventStream.Flush()
}

// AppendTapeDump buffers a sealed tape blob until the dump cadence is reached.
func (w *Writer) AppendTapeDump(frame uint32, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	captured := w.now().UTC()
	clone := append([]byte(nil), payload...)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, dumpBlob{Frame: frame, CapturedAt: captured, Payload: clone})
	if w.lastFlush.IsZero() {
		w.lastFlush = captured
		return nil
	}
	if captured.Sub(w.lastFlush) >= dumpInterval {
		if err := w.flushLocked(); err != nil {
			return err
		}
		w.lastFlush = captured
	}
	return nil
}

// SetHeaderMetadata configures the header persisted alongside the archive bundle.
func (w *Writer) SetHeaderMetadata(seed uint32, startFrame uint32) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.headerSeed = seed
	w.startFrame = startFrame
	w.mu.Unlock()
}

// Flush forces pending tape dumps to be written regardless of cadence.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}
	w.lastFlush = w.now().UTC()
	return nil
}

// Close synchronously flushes all buffers and releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	headerPath := filepath.Join(w.dir, "header.json")
	header := Header{SchemaVersion: HeaderSchemaVersion, SessionSeed: w.headerSeed, StartFrame: w.startFrame, FilePointer: "manifest.json"}
	if err := WriteHeader(headerPath, header); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.flushLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.dumpStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.dumpFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// flushLocked writes buffered tape dumps to the zstd stream; callers must
// hold the mutex.
func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}
	for _, dump := range w.pending {
		header := make([]byte, 4+8+4)
		binary.LittleEndian.PutUint32(header[0:4], dump.Frame)
		binary.LittleEndian.PutUint64(header[4:12], uint64(dump.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint32(header[12:16], uint32(len(dump.Payload)))
		if _, err := w.dumpStream.Write(header); err != nil {
			return err
		}
		if _, err := w.dumpStream.Write(dump.Payload); err != nil {
			return err
		}
		w.dumpsWritten++
	}
	w.pending = w.pending[:0]
	return nil
}
