// Package artifacts persists the intermediate results each pipeline stage
// hands to the next, as JSON files in the work directory.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Artifact file names.
const (
	Links       = "links.json"
	Validation  = "validation.json"
	Specialized = "specialized.json"
	Relevance   = "relevance.json"
	Repairs     = "repairs.json"
)

// JSONEncoder wraps json.Encoder with the formatting every artifact and
// report uses.
type JSONEncoder struct {
	encoder *json.Encoder
}

// NewJSONEncoder creates an indented encoder that leaves urls unescaped.
func NewJSONEncoder(w io.Writer) *JSONEncoder {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	return &JSONEncoder{encoder: encoder}
}

// Encode encodes the value to JSON.
func (e *JSONEncoder) Encode(v any) error {
	return e.encoder.Encode(v)
}

// Store reads and writes artifacts in one directory.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path is the location of the named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Exists reports whether the named artifact has been written.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Save writes v to the named artifact atomically.
func (s *Store) Save(name string, v any) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := NewJSONEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return os.Rename(tmp.Name(), s.Path(name))
}

// Load decodes the named artifact into v. found is false when the artifact
// does not exist yet.
func (s *Store) Load(name string, v any) (found bool, err error) {
	f, err := os.Open(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return true, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	return true, nil
}

// Remove deletes the named artifact if present.
func (s *Store) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
