package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nao1215/deltacrawl/internal/crawler"
	"github.com/nao1215/deltacrawl/internal/ledger"
	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/source"
)

// writeFiles creates a directory holding the given files.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func fsTarget(t *testing.T, store ledger.Store, dir string) Target {
	t.Helper()
	src, err := source.NewFSSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	return Target{
		Source:  src,
		Ledger:  ledger.New(store, src.ID()),
		Options: crawler.RunOptions{MaxDepth: crawler.DefaultMaxDepth},
	}
}

func newTestBatch(t *testing.T, steps func() []Step) *BatchProcessor {
	t.Helper()
	caps, err := crawler.DefaultCapabilities()
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.DiscardHandler)
	return NewBatchProcessor(
		func() *crawler.Engine {
			return crawler.New(caps, crawler.WithLogger(logger), crawler.WithWorkers(2))
		},
		func() *Pipeline {
			p := New(WithLogger(logger), WithContinueOnError(true))
			p.AddSteps(steps()...)
			return p
		},
		WithBatchLogger(logger),
		WithConcurrency(2),
	)
}

type syncSaver struct {
	mu    sync.Mutex
	saved map[string]model.Status
}

func (s *syncSaver) SaveCrawlReport(_ context.Context, r *model.CrawlReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[r.Source] = r.Status
	return nil
}

func TestBatchProcessor(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	saver := &syncSaver{saved: make(map[string]model.Status)}
	bp := newTestBatch(t, func() []Step {
		return []Step{NewSaveReportStep(saver, nil), FailOnStatusStep{}}
	})

	first := fsTarget(t, store, writeFiles(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"}))
	second := fsTarget(t, store, writeFiles(t, map[string]string{"c.txt": "gamma"}))
	missing := fsTarget(t, store, filepath.Join(t.TempDir(), "missing"))
	mismatched := fsTarget(t, store, t.TempDir())
	mismatched.Ledger = ledger.New(store, "file:///elsewhere")

	results := bp.ProcessBatch(t.Context(), []Target{first, second, missing, mismatched})
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}

	for i, want := range []int{2, 1} {
		r := results[i]
		if r.Err != nil {
			t.Errorf("result %d error = %v", i, r.Err)
			continue
		}
		if r.Report.Status != model.StatusCompleted || r.Report.New != want {
			t.Errorf("result %d: status %s, new %d; want COMPLETED, %d", i, r.Report.Status, r.Report.New, want)
		}
	}

	if r := results[2]; r.Report == nil || r.Report.Status != model.StatusAborted || !errors.Is(r.Err, ErrRunFailed) {
		t.Errorf("missing root: report %v, error %v; want ABORTED and ErrRunFailed", r.Report, r.Err)
	}
	if r := results[3]; r.Report != nil || !errors.Is(r.Err, crawler.ErrSourceMismatch) {
		t.Errorf("mismatched ledger: report %v, error %v; want ErrSourceMismatch", r.Report, r.Err)
	}

	if failed := Failed(results); len(failed) != 2 || failed[0].Index != 2 || failed[1].Index != 3 {
		t.Errorf("Failed() = %v, want indexes 2 and 3", failed)
	}

	saver.mu.Lock()
	defer saver.mu.Unlock()
	if len(saver.saved) != 3 {
		t.Errorf("saved %d reports, want 3", len(saver.saved))
	}
	if got := saver.saved[missing.Source.ID()]; got != model.StatusAborted {
		t.Errorf("saved status for missing root = %s, want ABORTED", got)
	}
}

func TestBatchProcessorCancelled(t *testing.T) {
	t.Parallel()

	saver := &syncSaver{saved: make(map[string]model.Status)}
	bp := newTestBatch(t, func() []Step {
		return []Step{NewSaveReportStep(saver, nil)}
	})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	target := fsTarget(t, ledger.NewMemoryStore(), writeFiles(t, map[string]string{"a.txt": "alpha"}))
	results := bp.ProcessBatch(ctx, []Target{target})

	r := results[0]
	if r.Err != nil {
		t.Fatalf("stopped run should not fail: %v", r.Err)
	}
	if r.Report.Status != model.StatusStopped {
		t.Errorf("status = %s, want STOPPED", r.Report.Status)
	}
	if saver.saved[target.Source.ID()] != model.StatusStopped {
		t.Error("stopped report should still be saved")
	}
}

func TestWithConcurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "positive", n: 8, want: 8},
		{name: "zero keeps default", n: 0, want: DefaultConcurrency},
		{name: "negative keeps default", n: -1, want: DefaultConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bp := NewBatchProcessor(nil, nil, WithConcurrency(tt.n))
			if bp.concurrency != tt.want {
				t.Errorf("concurrency = %d, want %d", bp.concurrency, tt.want)
			}
		})
	}
}
