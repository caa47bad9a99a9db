package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bloopgames/rollback/cmd/tapecatalog"
)

func main() {
	root := flag.String("dir", ".", "directory containing archived session bundles")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := tapecatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := tapecatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s (schema %d)\n", entry.BundleDir, entry.Header.SchemaVersion)
		fmt.Printf("  seed: %d\n", entry.Header.SessionSeed)
		fmt.Printf("  start frame: %d\n", entry.Header.StartFrame)
		fmt.Printf("  header: %s\n", entry.HeaderPath)
	}
}
