package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/bloopgames/rollback/cmd/tapeplayer"
	"github.com/bloopgames/rollback/internal/archive"
)

type dumpSummary struct {
	Frame       uint32 `json:"frame"`
	CapturedAt  string `json:"captured_at"`
	EventCount  uint32 `json:"event_count"`
	PacketCount uint32 `json:"packet_count"`
}

func main() {
	path := flag.String("path", "", "path to an archive bundle directory")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	bundle, err := tapeplayer.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	summaries := make([]dumpSummary, 0, len(bundle.Dumps))
	for _, dump := range bundle.Dumps {
		header := dump.Tape.Header()
		summaries = append(summaries, dumpSummary{
			Frame:       dump.Frame,
			CapturedAt:  dump.CapturedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			EventCount:  header.EventCount,
			PacketCount: header.PacketCount,
		})
	}

	payload := struct {
		Header archive.Header          `json:"header"`
		Events []archive.TimelineEntry `json:"events"`
		Dumps  []dumpSummary           `json:"dumps"`
	}{
		Header: bundle.Header,
		Events: bundle.Events,
		Dumps:  summaries,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(3)
	}
}
