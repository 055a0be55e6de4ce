package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/deltacrawl/internal/model"
)

// Ledger is the access ledger of one data source.
// At most one Run may be active at a time.
type Ledger struct {
	store    Store
	sourceID string

	mu     sync.Mutex
	active bool
}

// New creates a ledger for sourceID backed by store.
func New(store Store, sourceID string) *Ledger {
	return &Ledger{
		store:    store,
		sourceID: sourceID,
	}
}

// SourceID returns the identifier of the data source.
func (l *Ledger) SourceID() string {
	return l.sourceID
}

// BeginRun opens a working view over the previous run's records.
//
// When full is true the view is empty, so every visited item classifies as
// NEW and nothing is reported deleted. The stored records are still loaded so
// that a stopped full run does not lose the records of items it never reached.
func (l *Ledger) BeginRun(ctx context.Context, full bool) (*Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return nil, ErrRunActive
	}

	stored, err := l.store.Load(ctx, l.sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", l.sourceID, err)
	}

	previous := stored
	if full {
		previous = make(map[string]Record)
	}

	index := make([]string, 0, len(stored))
	for id := range stored {
		index = append(index, id)
	}
	sort.Strings(index)

	l.active = true
	return &Run{
		ledger:   l,
		previous: previous,
		stored:   stored,
		index:    index,
		visited:  make(map[string]struct{}),
		staged:   make(map[string]Record),
	}, nil
}

// release marks the ledger free for the next run.
func (l *Ledger) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
}

// Run is the working view of one crawl run. Its methods are safe for
// concurrent use.
type Run struct {
	ledger *Ledger

	mu sync.Mutex
	// previous is the view items are classified against.
	previous map[string]Record
	// stored holds the persisted records, used for carry-over.
	stored map[string]Record
	// index holds the stored identifiers in lexical order for prefix lookups.
	index   []string
	visited map[string]struct{}
	staged  map[string]Record
	closed  bool
}

// Classify compares item's marker against the previous record and marks the
// item visited. It only yields NEW, CHANGED or UNCHANGED.
func (r *Run) Classify(item *model.Item) model.Classification {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.visited[item.ID] = struct{}{}

	prev, ok := r.previous[item.ID]
	switch {
	case !ok:
		return model.ClassNew
	case prev.Marker != item.Marker:
		return model.ClassChanged
	default:
		return model.ClassUnchanged
	}
}

// Previous returns the record item id had in the previous run.
func (r *Run) Previous(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.previous[id]
	return rec, ok
}

// Commit stages the updated record for id.
func (r *Run) Commit(id, marker string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged[id] = Record{ID: id, Marker: marker}
}

// Retain carries forward, unchanged, every previous record nested under the
// container containerID and marks those items visited. It returns the number
// of records newly retained. The engine calls it for unchanged items it does
// not expand, so the entries of containers are neither re-extracted nor
// reported deleted. Items without entries cost one binary search.
func (r *Run) Retain(containerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range r.under(containerID + model.ContainerSeparator) {
		rec, ok := r.previous[id]
		if !ok {
			continue
		}
		if _, seen := r.visited[id]; seen {
			continue
		}
		r.visited[id] = struct{}{}
		if _, ok := r.staged[id]; !ok {
			r.staged[id] = rec
		}
		n++
	}
	return n
}

// Keep marks id visited without staging a record, so Finalize keeps its
// stored record and does not report it deleted. Entries of id as a container
// are kept as well, and with subtree every stored identifier below id as a
// path ("id/..."). The engine calls it for items that failed before they
// could be classified, such as unreadable files or directories.
func (r *Run) Keep(id string, subtree bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.visited[id] = struct{}{}
	prefixes := []string{id + model.ContainerSeparator}
	if subtree {
		prefixes = append(prefixes, strings.TrimSuffix(id, "/")+"/")
	}
	for _, prefix := range prefixes {
		for _, nested := range r.under(prefix) {
			r.visited[nested] = struct{}{}
		}
	}
}

// under returns the stored identifiers starting with prefix. The caller
// holds r.mu.
func (r *Run) under(prefix string) []string {
	lo := sort.SearchStrings(r.index, prefix)
	hi := lo
	for hi < len(r.index) && strings.HasPrefix(r.index[hi], prefix) {
		hi++
	}
	return r.index[lo:hi]
}

// Visited returns the number of distinct identifiers visited so far.
func (r *Run) Visited() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visited)
}

// Finalize ends the run and persists the new ledger.
//
// For a complete run the deleted identifiers are every previous identifier
// that was not visited, returned in lexical order, and their records are
// purged. For an incomplete (stopped) run nothing is deleted and the records
// of unvisited items are carried over untouched. In both cases a visited item
// that was never committed keeps its stored record, so a later run retries it.
//
// Finalize succeeds at most once. When the store fails, the previous ledger
// is left intact and Finalize may be retried.
func (r *Run) Finalize(ctx context.Context, complete bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRunFinalized
	}

	next := make(map[string]Record, len(r.staged))
	for id, rec := range r.staged {
		next[id] = rec
	}

	deleted := make([]string, 0)
	for id, rec := range r.stored {
		if _, ok := next[id]; ok {
			continue
		}
		if _, visited := r.visited[id]; visited || !complete {
			next[id] = rec
		}
	}
	if complete {
		for id := range r.previous {
			if _, visited := r.visited[id]; !visited {
				deleted = append(deleted, id)
			}
		}
		sort.Strings(deleted)
	}

	if err := r.ledger.store.Replace(ctx, r.ledger.sourceID, sortedRecords(next)); err != nil {
		return nil, fmt.Errorf("failed to finalize ledger for %s: %w", r.ledger.sourceID, err)
	}

	r.closed = true
	r.ledger.release()
	return deleted, nil
}

// Discard ends the run without touching the persisted ledger.
// It is used when a run is aborted.
func (r *Run) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.ledger.release()
}
