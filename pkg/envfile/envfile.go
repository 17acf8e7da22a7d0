// Package envfile manages newline-delimited KEY=VALUE files: idempotent
// upsert, forced overwrite, obsolete-key pruning and existence checks
// that also consult the process environment.
package envfile

import (
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/filesystem"
)

// EnvironmentView exposes process environment variables as an explicit
// capability so existence checks stay deterministic in tests
type EnvironmentView interface {
	Lookup(key string) (string, bool)
}

// OSEnvironment reads the live process environment
type OSEnvironment struct{}

// Lookup implements EnvironmentView
func (OSEnvironment) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnvironment is a fixed environment for tests
type MapEnvironment map[string]string

// Lookup implements EnvironmentView
func (m MapEnvironment) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Store reads and writes one KEY=VALUE file at a time
type Store struct {
	fs  afero.Fs
	env EnvironmentView
}

// NewStore creates a store over fs consulting env for existence checks
func NewStore(fs afero.Fs, env EnvironmentView) *Store {
	return &Store{fs: fs, env: env}
}

// Exists reports whether key is set: either as a non-empty process
// environment variable, or as a line in file with a non-empty value
// after trimming whitespace. Environment variables take precedence but
// are never written back to the file.
func (s *Store) Exists(key, file string) bool {
	if v, ok := s.env.Lookup(key); ok && v != "" {
		return true
	}

	lines, err := s.readLines(file)
	if err != nil {
		return false
	}
	for _, line := range lines {
		if k, v, ok := splitLine(line); ok && k == key && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Value returns the file's value for key with surrounding whitespace
// trimmed, or "" when the key is absent. The process environment is not
// consulted.
func (s *Store) Value(key, file string) string {
	lines, err := s.readLines(file)
	if err != nil {
		return ""
	}
	for _, line := range lines {
		if k, v, ok := splitLine(line); ok && k == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Upsert appends key=value unless the file already holds a non-empty
// value for key. Reruns with the same key neither duplicate nor reorder
// lines.
func (s *Store) Upsert(key, value, file string) error {
	lines, err := s.readLines(file)
	if err != nil {
		return err
	}

	for _, line := range lines {
		if k, v, ok := splitLine(line); ok && k == key && strings.TrimSpace(v) != "" {
			return nil
		}
	}

	// A blank-valued line for the key counts as missing; replace it
	lines = removeKeyLines(lines, key)
	lines = append(lines, key+"="+value)
	return s.writeLines(file, lines)
}

// SetOverwrite removes any line for key and appends key=value. Used for
// values that must reflect the current run regardless of prior content.
func (s *Store) SetOverwrite(key, value, file string) error {
	lines, err := s.readLines(file)
	if err != nil {
		return err
	}
	lines = removeKeyLines(lines, key)
	lines = append(lines, key+"="+value)
	return s.writeLines(file, lines)
}

// RemoveKey deletes any line for key and reports whether a removal
// occurred
func (s *Store) RemoveKey(key, file string) (bool, error) {
	lines, err := s.readLines(file)
	if err != nil {
		return false, err
	}

	kept := removeKeyLines(lines, key)
	if len(kept) == len(lines) {
		return false, nil
	}
	return true, s.writeLines(file, kept)
}

// PruneKeys removes every listed key and returns the names actually
// removed, for reporting
func (s *Store) PruneKeys(keys []string, file string) ([]string, error) {
	removed := []string{}
	for _, key := range keys {
		ok, err := s.RemoveKey(key, file)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, key)
		}
	}
	return removed, nil
}

// readLines returns the file's lines without a trailing empty element.
// A missing file reads as empty.
func (s *Store) readLines(file string) ([]string, error) {
	data, err := afero.ReadFile(s.fs, file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", file)
	}

	lines := strings.Split(string(data), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// writeLines writes lines in order with a single trailing newline; an
// empty line set produces an empty file
func (s *Store) writeLines(file string, lines []string) error {
	var content string
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	return filesystem.WriteFileAtomic(s.fs, file, []byte(content), 0600)
}

func removeKeyLines(lines []string, key string) []string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if k, _, ok := splitLine(line); ok && k == key {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// splitLine parses a KEY=VALUE line; returns ok=false for lines without
// an = separator
func splitLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	idx := strings.Index(trimmed, "=")
	if idx <= 0 {
		return "", "", false
	}
	return trimmed[:idx], trimmed[idx+1:], true
}
