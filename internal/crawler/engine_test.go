package crawler

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/deltacrawl/internal/extractor"
	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/ledger"
	"github.com/nao1215/deltacrawl/internal/model"
)

const testSourceID = "mem://test"

type memEntry struct {
	name   string
	marker string
	data   []byte
}

// memSource is an in-memory data source.
type memSource struct {
	entries []memEntry

	// fatalAt yields a fatal error instead of the entry at this index when >= 0.
	fatalAt int

	// unreadable yields an access error instead of the named entries.
	unreadable map[string]bool

	// started and release let a test hold enumeration open.
	started chan struct{}
	release chan struct{}
}

func newMemSource(entries ...memEntry) *memSource {
	return &memSource{entries: entries, fatalAt: -1}
}

func (s *memSource) ID() string { return testSourceID }

func (s *memSource) Enumerate(ctx context.Context) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		if s.started != nil {
			close(s.started)
			<-s.release
		}
		for i, e := range s.entries {
			if ctx.Err() != nil {
				return
			}
			if i == s.fatalAt {
				yield(nil, model.NewItemError(testSourceID, fmt.Errorf("%w: connection refused", model.ErrSourceFatal)))
				return
			}
			if s.unreadable[e.name] {
				if !yield(nil, model.NewItemError(testSourceID+"/"+e.name, fmt.Errorf("%w: permission denied", model.ErrAccess))) {
					return
				}
				continue
			}
			data := e.data
			item := model.NewItem(testSourceID+"/"+e.name, e.name, int64(len(data)), e.marker,
				func(context.Context) (io.ReadSeekCloser, error) {
					return nopReadSeekCloser{bytes.NewReader(data)}, nil
				})
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (s *memSource) Open(context.Context, *model.Item) (io.ReadSeekCloser, error) {
	return nil, model.ErrNoContent
}

type nopReadSeekCloser struct {
	io.ReadSeeker
}

func (nopReadSeekCloser) Close() error { return nil }

// recordingSink records notifications as "event:id" strings.
type recordingSink struct {
	mu      sync.Mutex
	events  []string
	onVisit func(n int)
	visits  int
	report  *model.CrawlReport
}

func (s *recordingSink) add(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) ItemVisited(item *model.Item) {
	s.add("visited:" + item.ID)
	s.mu.Lock()
	s.visits++
	n, hook := s.visits, s.onVisit
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}

func (s *recordingSink) ItemNew(item *model.Item) { s.add("new:" + item.ID) }
func (s *recordingSink) ItemChanged(item *model.Item) { s.add("changed:" + item.ID) }
func (s *recordingSink) ItemUnchanged(item *model.Item) { s.add("unchanged:" + item.ID) }
func (s *recordingSink) ItemDeleted(id string) { s.add("deleted:" + id) }

func (s *recordingSink) ItemError(err *model.ItemError) {
	s.add("error:" + err.ItemID + ":" + string(err.Kind))
}

func (s *recordingSink) RunFinished(report *model.CrawlReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
}

func (s *recordingSink) with(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0)
	for _, e := range s.events {
		if strings.HasPrefix(e, prefix) {
			out = append(out, strings.TrimPrefix(e, prefix))
		}
	}
	sort.Strings(out)
	return out
}

func newTestEngine(t *testing.T, caps *Capabilities, store graph.Store) *Engine {
	t.Helper()
	if caps == nil {
		var err error
		caps, err = DefaultCapabilities()
		if err != nil {
			t.Fatal(err)
		}
	}
	return New(caps,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithWorkers(2),
		WithGraphStore(store),
	)
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func id(name string) string {
	return testSourceID + "/" + name
}

func runOnce(t *testing.T, e *Engine, src *memSource, led *ledger.Ledger, sink Sink, opts RunOptions) *model.CrawlReport {
	t.Helper()
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	report, err := e.Run(context.Background(), src, led, sink, opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return report
}

func TestEngineRunClassifiesAgainstPreviousRun(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	led := ledger.New(store, testSourceID)
	graphs := graph.NewMemoryStore()
	e := newTestEngine(t, nil, graphs)

	first := runOnce(t, e, newMemSource(
		memEntry{"a.txt", "m1", []byte("alpha")},
		memEntry{"b.txt", "m1", []byte("beta")},
		memEntry{"c.txt", "m1", []byte("gamma")},
	), led, nil, RunOptions{})
	if first.New != 3 || first.Changed != 0 || first.Unchanged != 0 || first.Deleted != 0 {
		t.Fatalf("first run = %+v, want 3 new", first.Snapshot())
	}
	if first.Status != model.StatusCompleted {
		t.Errorf("first run status = %s, want COMPLETED", first.Status)
	}
	if _, ok := graphs.Get(id("c.txt")); !ok {
		t.Fatal("statements for c.txt were not stored")
	}

	sink := &recordingSink{}
	second := runOnce(t, e, newMemSource(
		memEntry{"a.txt", "m1", []byte("alpha")},
		memEntry{"b.txt", "m2", []byte("beta, revised")},
	), led, sink, RunOptions{})

	if second.New != 0 || second.Changed != 1 || second.Unchanged != 1 || second.Deleted != 1 {
		t.Errorf("second run = %+v, want changed=1 unchanged=1 deleted=1", second.Snapshot())
	}
	if got := sink.with("deleted:"); !slices.Equal(got, []string{id("c.txt")}) {
		t.Errorf("deleted = %v, want [c.txt]", got)
	}
	if got := sink.with("changed:"); !slices.Equal(got, []string{id("b.txt")}) {
		t.Errorf("changed = %v, want [b.txt]", got)
	}
	if _, ok := graphs.Get(id("c.txt")); ok {
		t.Error("statements for deleted c.txt were not removed")
	}
	if sink.report == nil || !sink.report.IsFinalized() {
		t.Error("RunFinished was not called with a finalized report")
	}

	records, err := store.Load(context.Background(), testSourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[id("b.txt")].Marker != "m2" {
		t.Errorf("ledger = %v, want a.txt and b.txt@m2", records)
	}
}

func TestEngineRunIsIdempotent(t *testing.T) {
	t.Parallel()

	led := ledger.New(ledger.NewMemoryStore(), testSourceID)
	e := newTestEngine(t, nil, graph.NewMemoryStore())
	src := newMemSource(
		memEntry{"a.txt", "m1", []byte("alpha")},
		memEntry{"page.html", "m1", []byte("<html><title>x</title></html>")},
		memEntry{"blob.bin", "m1", []byte{0x00, 0x01, 0x02}},
	)

	runOnce(t, e, src, led, nil, RunOptions{})
	second := runOnce(t, e, src, led, nil, RunOptions{})

	if second.New != 0 || second.Changed != 0 || second.Errors != 0 {
		t.Errorf("second run = %+v, want no new, changed or errors", second.Snapshot())
	}
	if second.Unchanged != second.Total() || second.Unchanged != 3 {
		t.Errorf("unchanged = %d, total = %d, want 3", second.Unchanged, second.Total())
	}
}

func TestEngineRunExpandsArchives(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	led := ledger.New(store, testSourceID)
	graphs := graph.NewMemoryStore()
	e := newTestEngine(t, nil, graphs)

	archive := zipBytes(t, map[string]string{"1.txt": "one", "2.txt": "two"})
	sink := &recordingSink{}
	first := runOnce(t, e, newMemSource(memEntry{"d.zip", "v1", archive}), led, sink, RunOptions{})

	wantNew := []string{id("d.zip"), id("d.zip") + "!/1.txt", id("d.zip") + "!/2.txt"}
	if got := sink.with("new:"); !slices.Equal(got, wantNew) {
		t.Errorf("new = %v, want %v", got, wantNew)
	}
	if first.New != 3 {
		t.Errorf("first.New = %d, want 3", first.New)
	}
	child, ok := graphs.Get(id("d.zip") + "!/1.txt")
	if !ok {
		t.Fatal("statements for archive entry were not stored")
	}
	if got := child.First(graph.PredicateContainedIn); got != id("d.zip") {
		t.Errorf("containedIn = %q, want %q", got, id("d.zip"))
	}

	// An unchanged archive is not expanded but its entries are kept.
	second := runOnce(t, e, newMemSource(memEntry{"d.zip", "v1", archive}), led, nil, RunOptions{})
	if second.Unchanged != 3 || second.Total() != 3 || second.Deleted != 0 {
		t.Errorf("second run = %+v, want unchanged=3 deleted=0", second.Snapshot())
	}
	records, err := store.Load(context.Background(), testSourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("ledger has %d records, want 3", len(records))
	}

	// Removing an entry changes the archive and deletes the entry.
	smaller := zipBytes(t, map[string]string{"1.txt": "one"})
	sink = &recordingSink{}
	third := runOnce(t, e, newMemSource(memEntry{"d.zip", "v2", smaller}), led, sink, RunOptions{})
	if third.Changed != 1 || third.Unchanged != 1 || third.Deleted != 1 {
		t.Errorf("third run = %+v, want changed=1 unchanged=1 deleted=1", third.Snapshot())
	}
	if got := sink.with("deleted:"); !slices.Equal(got, []string{id("d.zip") + "!/2.txt"}) {
		t.Errorf("deleted = %v", got)
	}
}

func TestEngineRunRecursionLimit(t *testing.T) {
	t.Parallel()

	led := ledger.New(ledger.NewMemoryStore(), testSourceID)
	e := newTestEngine(t, nil, graph.NewMemoryStore())

	inner := zipBytes(t, map[string]string{"deep.txt": "deep"})
	outer := zipBytes(t, map[string]string{"inner.zip": string(inner), "top.txt": "top"})

	sink := &recordingSink{}
	report := runOnce(t, e, newMemSource(memEntry{"d.zip", "v1", outer}), led, sink, RunOptions{MaxDepth: 1})

	innerID := id("d.zip") + "!/inner.zip"
	if got := sink.with("error:"); !slices.Equal(got, []string{innerID + ":" + string(model.ErrorKindRecursionLimit)}) {
		t.Errorf("errors = %v, want one recursion limit error for inner.zip", got)
	}
	for _, visited := range sink.with("visited:") {
		if strings.HasPrefix(visited, innerID+"!/") {
			t.Errorf("descendant %s of over-limit container was visited", visited)
		}
	}
	if report.Errors != 1 || report.New != 3 {
		t.Errorf("report = %+v, want errors=1 new=3", report.Snapshot())
	}
}

func TestEngineRunZeroDepthDisablesExpansion(t *testing.T) {
	t.Parallel()

	led := ledger.New(ledger.NewMemoryStore(), testSourceID)
	e := newTestEngine(t, nil, nil)

	archive := zipBytes(t, map[string]string{"1.txt": "one"})
	report, err := e.Run(context.Background(), newMemSource(memEntry{"d.zip", "v1", archive}), led, nil, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.New != 1 || report.Errors != 1 {
		t.Errorf("report = %+v, want new=1 errors=1", report.Snapshot())
	}
	if report.ItemErrors[0].Kind != model.ErrorKindRecursionLimit {
		t.Errorf("kind = %s, want recursion_limit", report.ItemErrors[0].Kind)
	}
}

func TestEngineRunStop(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	led := ledger.New(store, testSourceID)
	e := newTestEngine(t, nil, nil)

	entries := func(marker string) []memEntry {
		out := make([]memEntry, 0, 5)
		for i := range 5 {
			out = append(out, memEntry{fmt.Sprintf("%d.txt", i), marker, []byte(marker)})
		}
		return out
	}
	runOnce(t, e, newMemSource(entries("m1")...), led, nil, RunOptions{})

	const k = 2
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{onVisit: func(n int) {
		if n == k {
			cancel()
		}
	}}

	report, err := e.Run(ctx, newMemSource(entries("m2")...), led, sink, RunOptions{MaxDepth: DefaultMaxDepth})
	if err != nil {
		t.Fatalf("a stopped run must not fail: %v", err)
	}
	if report.Status != model.StatusStopped {
		t.Errorf("status = %s, want STOPPED", report.Status)
	}
	if report.Total() > k {
		t.Errorf("total = %d, want <= %d", report.Total(), k)
	}
	if report.Deleted != 0 || len(sink.with("deleted:")) != 0 {
		t.Error("a stopped run must not report deletions")
	}
	if e.State() != model.StatusStopped {
		t.Errorf("State() = %s, want STOPPED", e.State())
	}

	records, err := store.Load(context.Background(), testSourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Errorf("ledger has %d records after stop, want 5", len(records))
	}
	for i := k; i < 5; i++ {
		name := id(fmt.Sprintf("%d.txt", i))
		if got := records[name].Marker; got != "m1" {
			t.Errorf("%s marker = %q, want m1 (not visited before the stop)", name, got)
		}
	}
}

func TestEngineRunKeepsUnreadableItems(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	led := ledger.New(store, testSourceID)
	graphs := graph.NewMemoryStore()
	e := newTestEngine(t, nil, graphs)

	entries := []memEntry{
		{"a.txt", "m1", []byte("alpha")},
		{"b.txt", "m1", []byte("beta")},
	}
	runOnce(t, e, newMemSource(entries...), led, nil, RunOptions{})

	src := newMemSource(entries...)
	src.unreadable = map[string]bool{"b.txt": true}
	sink := &recordingSink{}
	report := runOnce(t, e, src, led, sink, RunOptions{})

	if report.Errors != 1 || report.Deleted != 0 || report.Unchanged != 1 {
		t.Errorf("report = %+v, want errors=1 unchanged=1 deleted=0", report.Snapshot())
	}
	if got := sink.with("deleted:"); len(got) != 0 {
		t.Errorf("deleted = %v, want none", got)
	}
	if got := sink.with("error:"); !slices.Equal(got, []string{id("b.txt") + ":" + string(model.ErrorKindAccess)}) {
		t.Errorf("errors = %v", got)
	}

	records, err := store.Load(context.Background(), testSourceID)
	if err != nil {
		t.Fatal(err)
	}
	if rec, ok := records[id("b.txt")]; !ok || rec.Marker != "m1" {
		t.Errorf("record for unreadable item = %+v (present %v), want marker m1", rec, ok)
	}
	if _, ok := graphs.Get(id("b.txt")); !ok {
		t.Error("statements for unreadable item were removed")
	}

	// Once readable again the item is unchanged, not new.
	third := runOnce(t, e, newMemSource(entries...), led, nil, RunOptions{})
	if third.Unchanged != 2 || third.New != 0 {
		t.Errorf("third run = %+v, want unchanged=2", third.Snapshot())
	}
}

func TestEngineRunSourceFatal(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	led := ledger.New(store, testSourceID)
	e := newTestEngine(t, nil, nil)

	src := newMemSource(
		memEntry{"a.txt", "m1", []byte("alpha")},
		memEntry{"b.txt", "m1", []byte("beta")},
	)
	src.fatalAt = 1

	report, err := e.Run(context.Background(), src, led, nil, RunOptions{MaxDepth: 1})
	if !errors.Is(err, model.ErrSourceFatal) {
		t.Fatalf("Run() error = %v, want ErrSourceFatal", err)
	}
	if report.Status != model.StatusAborted || report.Fatal == "" {
		t.Errorf("report = %+v, want ABORTED with fatal message", report.Snapshot())
	}
	if store.Replaced(testSourceID) != 0 {
		t.Error("an aborted run must not finalize the ledger")
	}

	// The ledger is released for the next run.
	src.fatalAt = -1
	if report := runOnce(t, e, src, led, nil, RunOptions{}); report.New != 2 {
		t.Errorf("retry New = %d, want 2", report.New)
	}
}

type stubExtractor struct {
	name string
	err  error
}

func (s *stubExtractor) Name() string { return s.name }
func (s *stubExtractor) Supports(model.ContentType) bool { return true }

func (s *stubExtractor) Extract(_ context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error) {
	if s.err != nil {
		// Drain part of the stream so the next extractor must rewind.
		_, _ = io.ReadAll(r)
		return nil, s.err
	}
	f := graph.NewFragment(item.ID)
	f.Add(graph.PredicateTitle, s.name)
	return f, nil
}

func TestEngineRunExtractorFallback(t *testing.T) {
	t.Parallel()

	caps := NewCapabilities()
	broken := &stubExtractor{name: "broken", err: fmt.Errorf("%w: bad input", model.ErrExtraction)}
	good := &stubExtractor{name: "good"}
	if err := caps.Extractors.Register("text/plain", broken, extractor.PrioritySpecific); err != nil {
		t.Fatal(err)
	}
	if err := caps.Extractors.Register("text/*", good, extractor.PriorityGeneric); err != nil {
		t.Fatal(err)
	}

	graphs := graph.NewMemoryStore()
	e := newTestEngine(t, caps, graphs)
	led := ledger.New(ledger.NewMemoryStore(), testSourceID)

	report := runOnce(t, e, newMemSource(memEntry{"a.txt", "m1", []byte("alpha")}), led, nil, RunOptions{})
	if report.Errors != 0 {
		t.Errorf("errors = %d, want 0", report.Errors)
	}
	f, ok := graphs.Get(id("a.txt"))
	if !ok {
		t.Fatal("no statements stored")
	}
	if got := f.First(graph.PredicateExtractor); got != "good" {
		t.Errorf("extractor = %q, want good", got)
	}
	if got := f.First(graph.PredicateTitle); got != "good" {
		t.Errorf("title = %q, want good", got)
	}
	if got := f.First(graph.PredicateContentType); got != "text/plain" {
		t.Errorf("contentType = %q, want text/plain", got)
	}
}

func TestEngineRunExtractionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		extractors    []*stubExtractor
		wantKind      model.ErrorKind
		wantCommitted bool
	}{
		{
			name:          "no provider",
			wantKind:      model.ErrorKindExtraction,
			wantCommitted: true,
		},
		{
			name:          "every extractor fails",
			extractors:    []*stubExtractor{{name: "broken", err: fmt.Errorf("%w: bad input", model.ErrExtraction)}},
			wantKind:      model.ErrorKindExtraction,
			wantCommitted: true,
		},
		{
			name:          "read failure is retried",
			extractors:    []*stubExtractor{{name: "flaky", err: fmt.Errorf("%w: i/o timeout", model.ErrAccess)}},
			wantKind:      model.ErrorKindAccess,
			wantCommitted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			caps := NewCapabilities()
			for _, ex := range tt.extractors {
				if err := caps.Extractors.Register("text/plain", ex, 1); err != nil {
					t.Fatal(err)
				}
			}
			e := newTestEngine(t, caps, nil)
			led := ledger.New(ledger.NewMemoryStore(), testSourceID)
			src := newMemSource(memEntry{"a.txt", "m1", []byte("alpha")})

			sink := &recordingSink{}
			report := runOnce(t, e, src, led, sink, RunOptions{})
			if report.Errors != 1 || report.New != 1 {
				t.Fatalf("report = %+v, want errors=1 new=1", report.Snapshot())
			}
			if got := sink.with("error:"); !slices.Equal(got, []string{id("a.txt") + ":" + string(tt.wantKind)}) {
				t.Errorf("errors = %v, want kind %s", got, tt.wantKind)
			}

			second := runOnce(t, e, src, led, nil, RunOptions{})
			if committed := second.Unchanged == 1; committed != tt.wantCommitted {
				t.Errorf("committed = %v, want %v (second run %+v)", committed, tt.wantCommitted, second.Snapshot())
			}
		})
	}
}

func TestEngineRunForceOptions(t *testing.T) {
	t.Parallel()

	led := ledger.New(ledger.NewMemoryStore(), testSourceID)
	graphs := graph.NewMemoryStore()
	e := newTestEngine(t, nil, graphs)
	src := newMemSource(memEntry{"a.txt", "m1", []byte("alpha")})

	runOnce(t, e, src, led, nil, RunOptions{})
	if err := graphs.Remove(context.Background(), id("a.txt")); err != nil {
		t.Fatal(err)
	}

	report := runOnce(t, e, src, led, nil, RunOptions{ForceExtract: true})
	if report.Unchanged != 1 {
		t.Errorf("unchanged = %d, want 1", report.Unchanged)
	}
	if _, ok := graphs.Get(id("a.txt")); !ok {
		t.Error("ForceExtract did not re-extract an unchanged item")
	}

	report = runOnce(t, e, src, led, nil, RunOptions{ForceFull: true})
	if report.New != 1 || report.Deleted != 0 {
		t.Errorf("full run = %+v, want new=1 deleted=0", report.Snapshot())
	}
}

func TestEngineRunRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil, nil)
	src := newMemSource(memEntry{"a.txt", "m1", []byte("alpha")})
	src.started = make(chan struct{})
	src.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := e.Run(context.Background(), src, ledger.New(ledger.NewMemoryStore(), testSourceID), nil, RunOptions{})
		done <- err
	}()
	<-src.started

	if e.State() != model.StatusRunning {
		t.Errorf("State() = %s, want RUNNING", e.State())
	}
	other := newMemSource()
	if _, err := e.Run(context.Background(), other, ledger.New(ledger.NewMemoryStore(), testSourceID), nil, RunOptions{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if e.State() != model.StatusCompleted {
		t.Errorf("State() = %s, want COMPLETED", e.State())
	}
}

func TestEngineRunValidation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil, nil)
	if _, err := e.Run(context.Background(), nil, nil, nil, RunOptions{}); !errors.Is(err, ErrNilSource) {
		t.Errorf("error = %v, want ErrNilSource", err)
	}
	led := ledger.New(ledger.NewMemoryStore(), "mem://other")
	if _, err := e.Run(context.Background(), newMemSource(), led, nil, RunOptions{}); !errors.Is(err, ErrSourceMismatch) {
		t.Errorf("error = %v, want ErrSourceMismatch", err)
	}
	if e.State() != model.StatusIdle {
		t.Errorf("State() = %s, want IDLE", e.State())
	}
}

func TestMultiSink(t *testing.T) {
	t.Parallel()

	a, b := &recordingSink{}, &recordingSink{}
	sink := MultiSink{a, b}
	item := model.NewItem("x", "x", 0, "m", nil)
	sink.ItemVisited(item)
	sink.ItemNew(item)
	sink.ItemDeleted("y")

	for _, s := range []*recordingSink{a, b} {
		if got := s.with("new:"); !slices.Equal(got, []string{"x"}) {
			t.Errorf("new = %v", got)
		}
		if got := s.with("deleted:"); !slices.Equal(got, []string{"y"}) {
			t.Errorf("deleted = %v", got)
		}
	}
}
