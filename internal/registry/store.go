package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// schemaVersion tags the persisted document so a future layout change can
// be detected instead of silently misread.
const schemaVersion = 1

type document struct {
	Version  int     `json:"version"`
	Cabinets []Entry `json:"cabinets"`
}

// Store persists the registry as one JSON document, rewritten in full on
// every mutation. Writes go to a temp file in the same directory and are
// renamed into place, so a crash mid-write never leaves a truncated file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted registry. A missing file is an empty registry.
func (s *Store) Load() ([]Entry, error) {
	buf, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var doc document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if doc.Version != schemaVersion {
		return nil, fmt.Errorf("registry schema version %d not supported", doc.Version)
	}
	return doc.Cabinets, nil
}

// Save writes the full entry set atomically.
func (s *Store) Save(entries []Entry) error {
	doc := document{Version: schemaVersion, Cabinets: entries}
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
