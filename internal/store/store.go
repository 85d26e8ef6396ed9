// Package store persists pipeline artifacts as wrapped JSON documents in the
// run's output directory. Each artifact is a single object holding one named
// key with an ordered list of records, e.g. {"use_cases": [...]}. A bare
// list is accepted on read for backward compatibility and normalized to the
// wrapped form on the next save. Access is single-process and sequential;
// there is no file locking.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Kind names one of the list-shaped artifacts.
type Kind string

const (
	UseCases  Kind = "use_cases"
	Policies  Kind = "policies"
	TestCases Kind = "test_cases"
	Dataset   Kind = "dataset"
)

// ManifestFile is the run manifest artifact; it is a single object with no
// wrapper key.
const ManifestFile = "run_manifest.json"

// Filename returns the artifact file name for the kind.
func (k Kind) Filename() string {
	return string(k) + ".json"
}

// WrapperKey returns the JSON key holding the record list.
func (k Kind) WrapperKey() string {
	if k == Dataset {
		return "examples"
	}
	return string(k)
}

// Store reads and writes artifacts under a single output directory.
type Store struct {
	dir string
	log *zap.Logger
}

// New creates a store rooted at dir.
func New(dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, log: log}
}

// Dir returns the output directory the store owns.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the path of the artifact file for kind.
func (s *Store) Path(kind Kind) string {
	return filepath.Join(s.dir, kind.Filename())
}

// Load reads the artifact for kind. The second return is false when the file
// does not exist, which is indistinguishable from "stage not yet run".
func Load[T any](s *Store, kind Kind) ([]T, bool, error) {
	data, err := os.ReadFile(s.Path(kind))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", kind.Filename(), err)
	}

	raw, err := unwrapDocument(data, kind.WrapperKey())
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse %s: %w", kind.Filename(), err)
	}

	records := make([]T, 0, len(raw))
	for i, r := range raw {
		var rec T
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, false, fmt.Errorf("failed to decode %s[%d]: %w", kind.WrapperKey(), i, err)
		}
		records = append(records, rec)
	}
	return records, true, nil
}

// Save writes the artifact for kind as an atomic overwrite, always in the
// wrapped form, creating parent directories as needed.
func Save[T any](s *Store, kind Kind, records []T) error {
	if records == nil {
		records = []T{}
	}
	doc := map[string][]T{kind.WrapperKey(): records}
	if err := s.writeJSON(kind.Filename(), doc); err != nil {
		return err
	}
	s.log.Debug("artifact saved",
		zap.String("file", kind.Filename()),
		zap.Int("records", len(records)))
	return nil
}

// SaveObject writes a single-object artifact (the run manifest).
func (s *Store) SaveObject(filename string, obj any) error {
	return s.writeJSON(filename, obj)
}

// LoadObject reads a single-object artifact into out. Returns false when the
// file does not exist.
func (s *Store) LoadObject(filename string, out any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return true, nil
}

func (s *Store) writeJSON(filename string, v any) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}

	// Write to a sibling temp file, then rename over the target so an
	// interrupted save never leaves a truncated artifact.
	target := filepath.Join(s.dir, filename)
	tmp, err := os.CreateTemp(s.dir, filename+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}
	return nil
}

// unwrapDocument accepts the wrapped artifact form and the legacy bare-list
// form, returning the record list either way.
func unwrapDocument(data []byte, key string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	inner, ok := doc[key]
	if !ok {
		return nil, fmt.Errorf("missing wrapper key %q", key)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(inner, &list); err != nil {
		return nil, err
	}
	return list, nil
}
