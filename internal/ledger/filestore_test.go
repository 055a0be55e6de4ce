package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ledger")
	store := NewFileStore(dir)

	t.Run("missing file loads empty", func(t *testing.T) {
		got, err := store.Load(ctx, "never-crawled")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty ledger, got %v", got)
		}
	})

	t.Run("replace and load", func(t *testing.T) {
		records := []Record{
			{ID: "file:///a.txt", Marker: "1"},
			{ID: "file:///b.zip!/c.txt", Marker: "2"},
		}
		if err := store.Replace(ctx, "src", records); err != nil {
			t.Fatal(err)
		}
		if err := store.Replace(ctx, "src", records[:1]); err != nil {
			t.Fatal(err)
		}

		got, err := store.Load(ctx, "src")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got["file:///a.txt"].Marker != "1" {
			t.Errorf("unexpected records %v", got)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("expected no temp files left, got %d entries", len(entries))
		}
	})

	t.Run("sources are isolated", func(t *testing.T) {
		if store.Path("a") == store.Path("b") {
			t.Error("expected distinct files per source")
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		if err := os.WriteFile(store.Path("bad"), []byte("{not json\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Load(ctx, "bad"); !errors.Is(err, ErrCorruptLedger) {
			t.Errorf("expected ErrCorruptLedger, got %v", err)
		}
	})
}

func TestFileStoreLedgerRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led := New(NewFileStore(t.TempDir()), testSource)

	run, err := led.BeginRun(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	run.Classify(item("A", "v1"))
	run.Commit("A", "v1")
	if _, err := run.Finalize(ctx, true); err != nil {
		t.Fatal(err)
	}

	run, err = led.BeginRun(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	defer run.Discard()
	if got := run.Classify(item("A", "v1")); got.String() != "UNCHANGED" {
		t.Errorf("expected UNCHANGED after reload, got %s", got)
	}
}
