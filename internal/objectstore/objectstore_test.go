package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func put(t *testing.T, s Store, key, body string) {
	t.Helper()
	if err := s.Put(context.Background(), key, strings.NewReader(body)); err != nil {
		t.Fatalf("Put(%s): %v", key, err)
	}
}

func get(t *testing.T, s Store, key string) string {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(b)
}

//
// FS backend
//

// TestFSRoundTrip covers put, get, list and delete through nested keys.
func TestFSRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestFS(t)
	ctx := context.Background()

	put(t, s, "raw_data/players_data/players_data_20240101_000000.json", `[{"id":1}]`)
	put(t, s, "transformed_data/players_data/players_data_20240101_000000.csv", "id\n1\n")

	if got := get(t, s, "raw_data/players_data/players_data_20240101_000000.json"); got != `[{"id":1}]` {
		t.Fatalf("Get = %q", got)
	}

	objs, err := s.List(ctx, "raw_data/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 1 || objs[0].Key != "raw_data/players_data/players_data_20240101_000000.json" {
		t.Fatalf("List = %+v", objs)
	}
	if objs[0].Size != int64(len(`[{"id":1}]`)) {
		t.Fatalf("object size = %d", objs[0].Size)
	}

	if err := s.Delete(ctx, "raw_data/players_data/players_data_20240101_000000.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "raw_data/players_data/players_data_20240101_000000.json"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Get after delete = %v, want ErrNotExist", err)
	}
}

// TestFSOverwrite makes sure a second put fully replaces the object.
func TestFSOverwrite(t *testing.T) {
	t.Parallel()
	s := newTestFS(t)

	put(t, s, "control_data/watermark.csv", "old old old")
	put(t, s, "control_data/watermark.csv", "new")
	if got := get(t, s, "control_data/watermark.csv"); got != "new" {
		t.Fatalf("after overwrite = %q, want %q", got, "new")
	}
}

// TestFSMissingAndBadKeys pins not-found wrapping and key validation.
func TestFSMissingAndBadKeys(t *testing.T) {
	t.Parallel()
	s := newTestFS(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "never/wrote/this"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Get missing = %v, want ErrNotExist", err)
	}
	if err := s.Delete(ctx, "never/wrote/this"); err != nil {
		t.Fatalf("Delete missing should be a no-op, got %v", err)
	}
	if err := s.Put(ctx, "../outside", strings.NewReader("x")); err == nil {
		t.Fatal("Put accepted a traversal key")
	}
	if err := s.Put(ctx, "", strings.NewReader("x")); err == nil {
		t.Fatal("Put accepted an empty key")
	}
}

// TestFSListIgnoresTempFiles makes sure an in-flight write never shows
// up in listings.
func TestFSListIgnoresTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	put(t, s, "a/real.txt", "x")
	if err := os.WriteFile(filepath.Join(dir, "a", ".put-123"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("plant temp file: %v", err)
	}

	objs, err := s.List(context.Background(), "a/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 1 || objs[0].Key != "a/real.txt" {
		t.Fatalf("List = %+v, want only a/real.txt", objs)
	}
}

//
// registry
//

// TestNewUnsupportedBackend pins the error for a backend nobody
// registered.
func TestNewUnsupportedBackend(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{Backend: "tape"})
	if err == nil || !strings.Contains(err.Error(), "unsupported object store backend=tape") {
		t.Fatalf("New = %v", err)
	}
}

// TestRegisterPanics covers the three wiring bugs Register refuses.
func TestRegisterPanics(t *testing.T) {
	t.Parallel()

	mustPanic := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Fatalf("%s did not panic", name)
			}
		}()
		fn()
	}

	mustPanic("empty kind", func() { Register("", func(context.Context, Config) (Store, error) { return nil, nil }) })
	mustPanic("nil factory", func() { Register("x-nil", nil) })
	Register("x-dup", func(context.Context, Config) (Store, error) { return nil, nil })
	mustPanic("duplicate", func() { Register("x-dup", func(context.Context, Config) (Store, error) { return nil, nil }) })
}

// TestFSRegistered makes sure the fs backend self-registers.
func TestFSRegistered(t *testing.T) {
	t.Parallel()
	s, err := New(context.Background(), Config{Backend: "fs", Options: map[string]string{"root": t.TempDir()}})
	if err != nil {
		t.Fatalf("New(fs) = %v", err)
	}
	if _, ok := s.(*FS); !ok {
		t.Fatalf("New(fs) returned %T", s)
	}
}

//
// key layout
//

func TestKeyLayout(t *testing.T) {
	t.Parallel()

	if got, want := RawKey("players_data", "players_data_20240101_000000.json"), "raw_data/players_data/players_data_20240101_000000.json"; got != want {
		t.Fatalf("RawKey = %q, want %q", got, want)
	}
	if got, want := TransformedKey("league_table", "league_table_20240101_000000.csv"), "transformed_data/league_table/league_table_20240101_000000.csv"; got != want {
		t.Fatalf("TransformedKey = %q, want %q", got, want)
	}
	if got, want := ControlKey("watermark_table_2024-01-01.csv"), "control_data/watermark_table_2024-01-01.csv"; got != want {
		t.Fatalf("ControlKey = %q, want %q", got, want)
	}
}

//
// retention
//

func touch(t *testing.T, s *FS, key string, mtime time.Time) {
	t.Helper()
	put(t, s, key, "x")
	path, err := s.path(key)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

// TestLatestKey picks the newest object with the key as tie-breaker.
func TestLatestKey(t *testing.T) {
	t.Parallel()
	s := newTestFS(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	touch(t, s, "control_data/watermark_table_2024-01-01.csv", base)
	touch(t, s, "control_data/watermark_table_2024-01-03.csv", base.Add(48*time.Hour))
	touch(t, s, "control_data/watermark_table_2024-01-02.csv", base.Add(24*time.Hour))

	key, ok, err := LatestKey(ctx, s, "control_data/")
	if err != nil || !ok {
		t.Fatalf("LatestKey = %q, %v, %v", key, ok, err)
	}
	if key != "control_data/watermark_table_2024-01-03.csv" {
		t.Fatalf("LatestKey = %q", key)
	}

	if _, ok, err := LatestKey(ctx, s, "raw_data/"); err != nil || ok {
		t.Fatalf("LatestKey on empty prefix = ok=%v err=%v, want ok=false", ok, err)
	}
}

// TestPrune keeps the newest N objects and reports what it deleted.
func TestPrune(t *testing.T) {
	t.Parallel()
	s := newTestFS(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		touch(t, s, "transformed_data/league_table/run_"+string(rune('a'+i))+".csv", base.Add(time.Duration(i)*time.Hour))
	}

	deleted, err := Prune(ctx, s, "transformed_data/league_table/", 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	wantDeleted := []string{
		"transformed_data/league_table/run_c.csv",
		"transformed_data/league_table/run_b.csv",
		"transformed_data/league_table/run_a.csv",
	}
	if !reflect.DeepEqual(deleted, wantDeleted) {
		t.Fatalf("deleted = %v, want %v", deleted, wantDeleted)
	}

	objs, err := s.List(ctx, "transformed_data/league_table/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("remaining = %+v, want the 2 newest", objs)
	}

	// keep <= 0 disables pruning.
	if deleted, err := Prune(ctx, s, "transformed_data/league_table/", 0); err != nil || deleted != nil {
		t.Fatalf("Prune(keep=0) = %v, %v", deleted, err)
	}
}
