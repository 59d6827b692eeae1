package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/store"
)

func TestResolveDBPath(t *testing.T) {
	for _, in := range []string{"memory", ":memory:"} {
		got, err := resolveDBPath(in)
		if err != nil || got != "" {
			t.Errorf("resolveDBPath(%q) = %q, %v; want in-memory", in, got, err)
		}
	}
	got, err := resolveDBPath("/tmp/x.db")
	if err != nil || got != "/tmp/x.db" {
		t.Errorf("explicit path = %q, %v", got, err)
	}
}

func TestWritePrivateModeKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "clipkeep.toml")
	if err := ensureConfigFile(path); err != nil {
		t.Fatal(err)
	}
	if on, err := readPrivateMode(path); err != nil || on {
		t.Fatalf("fresh file: private=%v err=%v", on, err)
	}
	if err := os.WriteFile(path, []byte("interval = \"1s\"\nprivate-mode = false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := writePrivateMode(path, true); err != nil {
		t.Fatalf("writePrivateMode: %v", err)
	}
	on, err := readPrivateMode(path)
	if err != nil || !on {
		t.Fatalf("after on: private=%v err=%v", on, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "interval") {
		t.Errorf("other keys lost:\n%s", raw)
	}

	if err := writePrivateMode(path, false); err != nil {
		t.Fatal(err)
	}
	if on, _ := readPrivateMode(path); on {
		t.Error("private mode still on after off")
	}
}

func TestEnsureConfigFileLeavesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipkeep.toml")
	if err := os.WriteFile(path, []byte("private-mode = true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ensureConfigFile(path); err != nil {
		t.Fatal(err)
	}
	if on, _ := readPrivateMode(path); !on {
		t.Error("existing file overwritten")
	}
}

func TestPrintEntries(t *testing.T) {
	entries := []history.Entry{
		{ID: 2, Content: "two\nlines", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Content: "unsaved"},
	}

	var buf bytes.Buffer
	if err := printEntries(&buf, entries, false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "2 ") || !strings.Contains(lines[0], "two⏎lines") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "- ") {
		t.Errorf("line 1 = %q", lines[1])
	}

	buf.Reset()
	if err := printEntries(&buf, entries, true); err != nil {
		t.Fatal(err)
	}
	dec := json.NewDecoder(&buf)
	var first history.Entry
	if err := dec.Decode(&first); err != nil {
		t.Fatal(err)
	}
	if first.ID != 2 || first.Content != "two\nlines" {
		t.Errorf("json entry = %+v", first)
	}
}

func TestReadDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	got, err := readDatabase(ctx, path, 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("missing file: %v, %v", got, err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatal("reading created the database")
	}

	st := store.OpenWith(ctx, store.Durable(path))
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	for _, c := range []string{"a", "b", "c"} {
		if _, err := st.Append(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	_ = st.Close()

	got, err = readDatabase(ctx, path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Content != "b" || got[1].Content != "c" {
		t.Errorf("readDatabase = %+v, want [b c]", got)
	}
}
