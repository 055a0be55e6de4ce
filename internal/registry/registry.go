package registry

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nao1215/deltacrawl/internal/model"
)

// ErrInvalidPattern is returned by Register for an empty or malformed pattern.
var ErrInvalidPattern = errors.New("invalid content type pattern")

// ErrInvalidProvider is returned by Register for a nil provider or one whose
// dynamic type cannot be compared with ==, such as a slice or map type.
var ErrInvalidProvider = errors.New("provider must be non-nil and comparable")

// Wildcard is the global pattern matching every content type.
const Wildcard = "*/*"

// tier ranks how specifically a pattern matched.
type tier int

const (
	tierExact tier = iota
	tierFamily
	tierGlobal
	tierNone
)

// Entry is one registration: a pattern, a provider and its priority.
type Entry[P comparable] struct {
	// Pattern is the content-type pattern.
	Pattern string

	// Provider is the registered capability.
	Provider P

	// Priority orders providers within a tier; higher wins.
	Priority int

	seq uint64
}

// match returns the tier in which the entry matches ct.
func (e Entry[P]) match(ct model.ContentType) tier {
	switch {
	case e.Pattern == Wildcard:
		return tierGlobal
	case strings.HasSuffix(e.Pattern, "/*"):
		if strings.TrimSuffix(e.Pattern, "/*") == ct.Family() {
			return tierFamily
		}
		return tierNone
	case e.Pattern == string(ct):
		return tierExact
	default:
		return tierNone
	}
}

// Registry is a concurrent mapping from content-type patterns to providers.
// The zero value is not usable; create registries with New.
type Registry[P comparable] struct {
	// mu serializes writers. Readers only load the snapshot.
	mu       sync.Mutex
	snapshot atomic.Pointer[[]Entry[P]]
	nextSeq  uint64
}

// New creates an empty Registry.
func New[P comparable]() *Registry[P] {
	r := &Registry[P]{}
	empty := make([]Entry[P], 0)
	r.snapshot.Store(&empty)
	return r
}

// Register adds provider for pattern with the given priority.
// The same provider may be registered for several patterns. Providers are
// identified by ==, so pointer types are the usual choice.
func (r *Registry[P]) Register(pattern string, provider P, priority int) error {
	pattern, err := normalizePattern(pattern)
	if err != nil {
		return err
	}
	if !comparableValue(provider) {
		return ErrInvalidProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	next := make([]Entry[P], len(current), len(current)+1)
	copy(next, current)
	next = append(next, Entry[P]{
		Pattern:  pattern,
		Provider: provider,
		Priority: priority,
		seq:      r.nextSeq,
	})
	r.nextSeq++

	r.snapshot.Store(&next)
	return nil
}

// Unregister removes every registration of provider. It reports whether
// anything was removed.
func (r *Registry[P]) Unregister(provider P) bool {
	if !comparableValue(provider) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	next := make([]Entry[P], 0, len(current))
	for _, e := range current {
		if e.Provider != provider {
			next = append(next, e)
		}
	}
	if len(next) == len(current) {
		return false
	}

	r.snapshot.Store(&next)
	return true
}

// Resolve returns the providers matching ct, most specific and highest
// priority first. A provider registered under several matching patterns is
// listed once, at its best position.
func (r *Registry[P]) Resolve(ct model.ContentType) []P {
	ct = normalizeType(ct)
	entries := *r.snapshot.Load()

	type candidate struct {
		entry Entry[P]
		tier  tier
	}
	matches := make([]candidate, 0, len(entries))
	for _, e := range entries {
		if t := e.match(ct); t != tierNone {
			matches = append(matches, candidate{entry: e, tier: t})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.entry.Priority != b.entry.Priority {
			return a.entry.Priority > b.entry.Priority
		}
		return a.entry.seq < b.entry.seq
	})

	providers := make([]P, 0, len(matches))
	seen := make(map[P]bool, len(matches))
	for _, m := range matches {
		if seen[m.entry.Provider] {
			continue
		}
		seen[m.entry.Provider] = true
		providers = append(providers, m.entry.Provider)
	}
	return providers
}

// Has reports whether at least one provider matches ct.
func (r *Registry[P]) Has(ct model.ContentType) bool {
	ct = normalizeType(ct)
	for _, e := range *r.snapshot.Load() {
		if e.match(ct) != tierNone {
			return true
		}
	}
	return false
}

// Entries returns a copy of the current registrations in registration order.
func (r *Registry[P]) Entries() []Entry[P] {
	return append([]Entry[P](nil), *r.snapshot.Load()...)
}

// Len returns the number of registrations.
func (r *Registry[P]) Len() int {
	return len(*r.snapshot.Load())
}

// comparableValue reports whether v can be used with == and as a map key
// without panicking. Interface type parameters satisfy comparable at compile
// time even when the dynamic type does not.
func comparableValue[P comparable](v P) bool {
	t := reflect.TypeOf(any(v))
	return t != nil && t.Comparable()
}

// normalizePattern validates a pattern and maps "*" to Wildcard.
func normalizePattern(pattern string) (string, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "*" || pattern == Wildcard {
		return Wildcard, nil
	}

	family, sub, ok := strings.Cut(pattern, "/")
	if !ok || family == "" || sub == "" || family == "*" || strings.Contains(sub, "/") {
		return "", ErrInvalidPattern
	}
	if strings.Contains(sub, "*") && sub != "*" {
		return "", ErrInvalidPattern
	}
	return pattern, nil
}

// normalizeType lower-cases a content type and drops MIME parameters.
func normalizeType(ct model.ContentType) model.ContentType {
	base, _, _ := strings.Cut(string(ct), ";")
	return model.ContentType(strings.ToLower(strings.TrimSpace(base)))
}
