package schedule

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the schedule file: one schedule per line, in insertion order.
//
// A schedule's identity is its zero-based position in the current file.
// Positions shift down after every RemoveAt, so callers must not reuse an
// index obtained before another deletion.
//
// Mutations are serialized within a process. Rewrites go through a temp file
// and rename, so a concurrent reader in another process sees either the old or
// the new content. There is no cross-process lock.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Append adds s to the end of the file, creating it if needed.
func (s *Store) Append(sch Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(sch.String() + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// List returns every line in file order. A missing file is ErrStoreNotFound,
// an empty file is an empty slice.
func (s *Store) List() ([]string, error) {
	lines, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, s.path)
	}
	return lines, err
}

// Load is List for the poller: a missing file simply means no schedules yet.
func (s *Store) Load() ([]string, error) {
	lines, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	return lines, err
}

// RemoveAt deletes the line at index from a fresh read of the file and
// returns it. Out-of-range indexes leave the file untouched.
func (s *Store) RemoveAt(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if index < 0 || index >= len(lines) {
		return "", fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(lines))
	}

	removed := lines[index]
	rest := make([]string, 0, len(lines)-1)
	rest = append(rest, lines[:index]...)
	rest = append(rest, lines[index+1:]...)

	if err := s.rewrite(rest); err != nil {
		return "", err
	}
	return removed, nil
}

func (s *Store) read() ([]string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return splitLines(string(b)), nil
}

func (s *Store) rewrite(lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}

	mode := fs.FileMode(0o644)
	if st, err := os.Stat(s.path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
