package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.klb.dev/clipkeep/internal/history"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	st := OpenWith(context.Background(), Memory())
	if st.Kind() != KindMemory {
		t.Fatalf("Kind() = %q, want %q", st.Kind(), KindMemory)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return st
}

func TestOpen_DurablePath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	st := Open(ctx, path)
	if st.Kind() != KindFile {
		t.Fatalf("Kind() = %q, want %q", st.Kind(), KindFile)
	}
	if st.Path() != path {
		t.Errorf("Path() = %q, want %q", st.Path(), path)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if _, err := st.Append(ctx, "survives"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := Open(ctx, path)
	defer reopened.Close()
	if err := reopened.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema after reopen: %v", err)
	}
	got, err := reopened.LoadRecent(ctx, 10)
	if err != nil {
		t.Fatalf("LoadRecent: %v", err)
	}
	if len(got) != 1 || got[0].Content != "survives" {
		t.Fatalf("LoadRecent = %+v, want one entry %q", got, "survives")
	}
}

func TestOpen_FallsBackToMemory(t *testing.T) {
	ctx := context.Background()

	// A regular file where a directory is expected makes MkdirAll fail even
	// when running as root.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	st := Open(ctx, filepath.Join(blocker, "history.db"))
	defer st.Close()

	if st.Kind() != KindMemory {
		t.Fatalf("Kind() = %q, want %q", st.Kind(), KindMemory)
	}
	if st.Path() != "" {
		t.Errorf("Path() = %q, want empty for memory store", st.Path())
	}
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if _, err := st.Append(ctx, "hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := st.LoadRecent(ctx, 0)
	if err != nil {
		t.Fatalf("LoadRecent: %v", err)
	}
	if len(got) != 1 || got[0].Content != "hello" {
		t.Fatalf("LoadRecent = %+v", got)
	}
}

func TestOpen_EmptyPathUsesMemory(t *testing.T) {
	st := Open(context.Background(), "")
	defer st.Close()
	if st.Kind() != KindMemory {
		t.Fatalf("Kind() = %q, want %q", st.Kind(), KindMemory)
	}
}

func TestOpen_TotalFailureDisablesStore(t *testing.T) {
	orig := openDB
	openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("no sqlite today") }
	t.Cleanup(func() { openDB = orig })

	ctx := context.Background()
	st := Open(ctx, filepath.Join(t.TempDir(), "history.db"))

	if st.Enabled() || st.Kind() != KindNone {
		t.Fatalf("Enabled() = %v, Kind() = %q; want disabled store", st.Enabled(), st.Kind())
	}
	if err := st.EnsureSchema(ctx); err != nil {
		t.Errorf("EnsureSchema on disabled store: %v", err)
	}
	if _, err := st.Append(ctx, "dropped"); err != nil {
		t.Errorf("Append on disabled store: %v", err)
	}
	got, err := st.LoadRecent(ctx, 10)
	if err != nil || len(got) != 0 {
		t.Errorf("LoadRecent on disabled store = %v, %v", got, err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("Close on disabled store: %v", err)
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := openMemory(t)

	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	var n int
	err := st.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'clipboard_history'").Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("found %d clipboard_history tables, want 1", n)
	}
}

func TestAppend_AllowsDuplicates(t *testing.T) {
	ctx := context.Background()
	st := openMemory(t)

	for range 2 {
		if _, err := st.Append(ctx, "same"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	n, err := st.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}
}

func TestLoadRecent_Bound(t *testing.T) {
	ctx := context.Background()
	st := openMemory(t)

	for i := 1; i <= 150; i++ {
		if _, err := st.Append(ctx, fmt.Sprintf("entry-%d", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := st.LoadRecent(ctx, 100)
	if err != nil {
		t.Fatalf("LoadRecent: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	if got[0].Content != "entry-150" || got[99].Content != "entry-51" {
		t.Fatalf("newest-first bounds = %q .. %q, want entry-150 .. entry-51",
			got[0].Content, got[99].Content)
	}
	for i := 1; i < len(got); i++ {
		if got[i].ID >= got[i-1].ID {
			t.Fatalf("ids not descending at %d: %d then %d", i, got[i-1].ID, got[i].ID)
		}
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated from timestamp column")
	}

	oldest := history.NewestFirst(got)
	if oldest[0].Content != "entry-51" || oldest[99].Content != "entry-150" {
		t.Fatalf("re-ordered bounds = %q .. %q", oldest[0].Content, oldest[99].Content)
	}
}

func TestWriter_PreservesOrder(t *testing.T) {
	st := openMemory(t)
	w := NewWriter(st, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	const n = 40
	for i := range n {
		if err := w.Enqueue(ctx, fmt.Sprintf("c%02d", i)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for w.Written() < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d entries written", w.Written(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	got, err := st.LoadRecent(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	got = history.NewestFirst(got)
	for i, e := range got {
		if want := fmt.Sprintf("c%02d", i); e.Content != want {
			t.Fatalf("row %d = %q, want %q", i, e.Content, want)
		}
	}
}

type failingAppender struct{ calls int }

func (f *failingAppender) Append(context.Context, string) (int64, error) {
	f.calls++
	return 0, errors.New("disk full")
}

func TestWriter_DrainsAfterCancel(t *testing.T) {
	fa := &failingAppender{}
	w := NewWriter(fa, 8)

	ctx, cancel := context.WithCancel(context.Background())
	for _, s := range []string{"a", "b", "c"} {
		if err := w.Enqueue(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	cancel()

	_ = w.Run(ctx)
	if fa.calls != 3 {
		t.Fatalf("appender called %d times, want 3 (drain after cancel)", fa.calls)
	}
	if w.Failed() != 3 || w.Written() != 0 {
		t.Errorf("Failed() = %d, Written() = %d", w.Failed(), w.Written())
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d after drain", w.Pending())
	}
}
