// Package tapecatalog walks a directory tree of archived rollback sessions
// and indexes their headers for operator tooling.
package tapecatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bloopgames/rollback/internal/archive"
)

// Entry captures an archive header alongside its resolved bundle directory.
type Entry struct {
	HeaderPath string        `json:"header_path"`
	BundleDir  string        `json:"bundle_dir"`
	Header     archive.Header `json:"header"`
}

// List walks the directory tree and returns parsed archive headers.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	//1.- Walk the directory tree searching for header.json files written by Writer.Close.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != "header.json" {
			return nil
		}
		header, err := archive.ReadHeader(path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{HeaderPath: path, BundleDir: filepath.Dir(path), Header: header})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Header.SessionSeed == entries[j].Header.SessionSeed {
			return entries[i].BundleDir < entries[j].BundleDir
		}
		return entries[i].Header.SessionSeed < entries[j].Header.SessionSeed
	})
	return entries, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	//1.- Marshal with indentation to keep CLI output legible for operators.
	return json.MarshalIndent(entries, "", "  ")
}
