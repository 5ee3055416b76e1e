package schedule

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func mustParse(t *testing.T, raw string) Schedule {
	t.Helper()
	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return s
}

func newTestStore(t *testing.T, lines ...string) *Store {
	t.Helper()
	st := NewStore(filepath.Join(t.TempDir(), "backup_schedules.txt"))
	for _, l := range lines {
		if err := st.Append(mustParse(t, l)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return st
}

func TestStoreAppendList(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, "a;01:00;x", "b;02:00;y")

	got, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a;01:00;x", "b;02:00;y"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}

	b, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "a;01:00;x\nb;02:00;y\n" {
		t.Fatalf("file content = %q", string(b))
	}
}

func TestStoreMissingVersusEmpty(t *testing.T) {
	t.Parallel()
	st := NewStore(filepath.Join(t.TempDir(), "missing.txt"))

	if _, err := st.List(); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("List on missing file err = %v, want ErrStoreNotFound", err)
	}
	lines, err := st.Load()
	if err != nil || len(lines) != 0 {
		t.Fatalf("Load on missing file = %v, %v; want empty, nil", lines, err)
	}

	if err := os.WriteFile(st.Path(), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lines, err = st.List()
	if err != nil || len(lines) != 0 {
		t.Fatalf("List on empty file = %v, %v; want empty, nil", lines, err)
	}
}

func TestStoreListStripsCarriageReturn(t *testing.T) {
	t.Parallel()
	st := NewStore(filepath.Join(t.TempDir(), "s.txt"))
	if err := os.WriteFile(st.Path(), []byte("a;01:00;x\r\nb;02:00;y"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a;01:00;x", "b;02:00;y"}) {
		t.Fatalf("List = %q", got)
	}
}

func TestStoreRemoveMiddle(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, "a;01:00;x", "b;02:00;y", "c;03:00;z")

	removed, err := st.RemoveAt(1)
	if err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if removed != "b;02:00;y" {
		t.Fatalf("removed = %q", removed)
	}
	got, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a;01:00;x", "c;03:00;z"}) {
		t.Fatalf("List after remove = %v", got)
	}
	if _, err := os.Stat(st.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestStoreRemoveOutOfRange(t *testing.T) {
	t.Parallel()

	empty := newTestStore(t)
	if _, err := empty.RemoveAt(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("RemoveAt on empty store err = %v", err)
	}

	st := newTestStore(t, "a;01:00;x", "b;02:00;y")
	before, _ := os.ReadFile(st.Path())
	for _, idx := range []int{-1, 2, 10} {
		if _, err := st.RemoveAt(idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("RemoveAt(%d) err = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
	after, _ := os.ReadFile(st.Path())
	if string(before) != string(after) {
		t.Fatalf("store changed: %q -> %q", before, after)
	}
}

func TestStoreRemoveShiftsPositions(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, "a;01:00;x", "b;02:00;y", "c;03:00;z")

	if _, err := st.RemoveAt(0); err != nil {
		t.Fatalf("RemoveAt(0): %v", err)
	}
	removed, err := st.RemoveAt(0)
	if err != nil {
		t.Fatalf("RemoveAt(0) again: %v", err)
	}
	if removed != "b;02:00;y" {
		t.Fatalf("second removal = %q, want shifted line b", removed)
	}
	if _, err := st.RemoveAt(1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("stale index err = %v", err)
	}
}
