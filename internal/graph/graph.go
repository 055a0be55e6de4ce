// Package graph holds the metadata statements produced by extractors.
//
// The semantic graph backend is an external collaborator; this package only
// defines the fragment an extractor returns and the Store the crawl engine
// writes fragments to. MemoryStore backs tests and dry runs, and the SQLite
// implementation lives in the database package.
package graph

import (
	"context"
	"sort"
	"sync"
)

// Well-known predicates used by the built-in extractors.
const (
	PredicateContentType = "contentType"
	PredicateExtractor   = "extractor"
	PredicateTitle       = "title"
	PredicateAuthor      = "author"
	PredicateCreator     = "creator"
	PredicateProducer    = "producer"
	PredicateCreated     = "created"
	PredicateModified    = "modified"
	PredicateSize        = "size"
	PredicateLineCount   = "lineCount"
	PredicateWordCount   = "wordCount"
	PredicateCharCount   = "charCount"
	PredicateLinksTo     = "linksTo"
	PredicateFullName    = "fullName"
	PredicateEmail       = "email"
	PredicatePhone       = "phone"
	PredicateMetaPrefix  = "meta:"
	PredicateEXIFPrefix  = "exif:"
	PredicateEncoding    = "encoding"
	PredicateContainedIn = "containedIn"
	PredicateName        = "name"
	PredicateDigest      = "digest"
)

// Statement is one subject-predicate-object triple.
type Statement struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Fragment is the set of statements extracted for one item.
type Fragment struct {
	// Subject is the identifier of the described item.
	Subject string `json:"subject"`

	// Statements are kept in insertion order.
	Statements []Statement `json:"statements"`
}

// NewFragment creates an empty fragment about subject.
func NewFragment(subject string) *Fragment {
	return &Fragment{
		Subject:    subject,
		Statements: make([]Statement, 0),
	}
}

// Add appends a statement about the fragment's subject. Empty objects are skipped.
func (f *Fragment) Add(predicate, object string) {
	if object == "" {
		return
	}
	f.Statements = append(f.Statements, Statement{
		Subject:   f.Subject,
		Predicate: predicate,
		Object:    object,
	})
}

// Len returns the number of statements.
func (f *Fragment) Len() int {
	return len(f.Statements)
}

// Values returns every object stored under predicate.
func (f *Fragment) Values(predicate string) []string {
	values := make([]string, 0)
	for _, s := range f.Statements {
		if s.Predicate == predicate {
			values = append(values, s.Object)
		}
	}
	return values
}

// First returns the first object stored under predicate, or "".
func (f *Fragment) First(predicate string) string {
	for _, s := range f.Statements {
		if s.Predicate == predicate {
			return s.Object
		}
	}
	return ""
}

// Store persists fragments keyed by item identifier.
type Store interface {
	// Put replaces every statement previously stored for fragment.Subject.
	Put(ctx context.Context, fragment *Fragment) error

	// Remove deletes every statement about subject.
	Remove(ctx context.Context, subject string) error
}

// MemoryStore is an in-memory Store safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	fragments map[string]*Fragment
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fragments: make(map[string]*Fragment)}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, fragment *Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := &Fragment{
		Subject:    fragment.Subject,
		Statements: append([]Statement(nil), fragment.Statements...),
	}
	m.fragments[fragment.Subject] = cp
	return nil
}

// Remove implements Store.
func (m *MemoryStore) Remove(_ context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fragments, subject)
	return nil
}

// Get returns the fragment stored for subject.
func (m *MemoryStore) Get(subject string) (*Fragment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fragments[subject]
	return f, ok
}

// Subjects returns the stored subjects in lexical order.
func (m *MemoryStore) Subjects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subjects := make([]string, 0, len(m.fragments))
	for s := range m.fragments {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// NopStore discards all fragments.
type NopStore struct{}

// Put implements Store.
func (NopStore) Put(context.Context, *Fragment) error { return nil }

// Remove implements Store.
func (NopStore) Remove(context.Context, string) error { return nil }
