package ledger

import (
	"context"
	"sort"
	"sync"
)

// Record is the access record of one previously seen item.
type Record struct {
	// ID is the item identifier.
	ID string `json:"id"`

	// Marker is the last observed modification marker.
	Marker string `json:"marker"`
}

// Store persists the records of every data source.
type Store interface {
	// Load returns the records of sourceID. A source that was never
	// crawled yields an empty map and no error.
	Load(ctx context.Context, sourceID string) (map[string]Record, error)

	// Replace atomically substitutes every record of sourceID. A failure
	// must leave the previous records intact.
	Replace(ctx context.Context, sourceID string, records []Record) error
}

// MemoryStore is a Store kept in memory.
type MemoryStore struct {
	mu      sync.Mutex
	sources map[string]map[string]Record

	// replaced counts successful Replace calls per source.
	replaced map[string]int
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:  make(map[string]map[string]Record),
		replaced: make(map[string]int),
	}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, sourceID string) (map[string]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Record, len(m.sources[sourceID]))
	for id, rec := range m.sources[sourceID] {
		out[id] = rec
	}
	return out, nil
}

// Replace implements Store.
func (m *MemoryStore) Replace(_ context.Context, sourceID string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]Record, len(records))
	for _, rec := range records {
		set[rec.ID] = rec
	}
	m.sources[sourceID] = set
	m.replaced[sourceID]++
	return nil
}

// Replaced returns how many times the records of sourceID were replaced.
func (m *MemoryStore) Replaced(sourceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced[sourceID]
}

// sortedRecords returns the values of set ordered by identifier.
func sortedRecords(set map[string]Record) []Record {
	records := make([]Record, 0, len(set))
	for _, rec := range set {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records
}
