package identify

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/deltacrawl/internal/model"
)

// DefaultPrefixSize is the number of bytes peeked from a stream.
// 512 bytes covers the ustar magic at offset 257 with room to spare.
const DefaultPrefixSize = 512

// Rule is a byte-signature rule: the content matches when Magic occurs at Offset.
type Rule struct {
	// ContentType is the label assigned on match.
	ContentType model.ContentType

	// Offset is the position of Magic in the prefix.
	Offset int

	// Magic is the signature bytes.
	Magic []byte

	// seq is the registration sequence number, used to break specificity ties.
	seq int
}

// specificity orders rules: a rule that needs more of the prefix to match is
// more specific.
func (r Rule) specificity() int {
	return r.Offset + len(r.Magic)
}

// matches reports whether the rule matches the prefix.
func (r Rule) matches(prefix []byte) bool {
	end := r.Offset + len(r.Magic)
	if len(r.Magic) == 0 || r.Offset < 0 || end > len(prefix) {
		return false
	}
	return bytes.Equal(prefix[r.Offset:end], r.Magic)
}

// Identifier classifies a byte prefix and an optional name into a content type.
//
// Signature rules are tested in descending specificity order; the first rule
// that matches wins, ties being broken by registration order. When no rule
// matches, the name's extension is looked up, then the system MIME table, and
// finally ContentTypeUnknown is returned. An Identifier is safe for
// concurrent use.
type Identifier struct {
	mu         sync.RWMutex
	rules      []Rule
	extensions map[string]model.ContentType
	nextSeq    int
	prefixSize int

	// useSystemMIME enables the mime.TypeByExtension fallback.
	useSystemMIME bool
}

// Option configures an Identifier.
type Option func(*Identifier)

// WithPrefixSize sets the number of bytes IdentifyStream peeks.
func WithPrefixSize(n int) Option {
	return func(id *Identifier) {
		if n > 0 {
			id.prefixSize = n
		}
	}
}

// WithSystemMIME enables or disables the system MIME table fallback.
func WithSystemMIME(enabled bool) Option {
	return func(id *Identifier) {
		id.useSystemMIME = enabled
	}
}

// New creates an Identifier without any rules.
func New(opts ...Option) *Identifier {
	id := &Identifier{
		rules:         make([]Rule, 0),
		extensions:    make(map[string]model.ContentType),
		prefixSize:    DefaultPrefixSize,
		useSystemMIME: true,
	}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// AddRule registers a signature rule and keeps the rule list sorted.
func (id *Identifier) AddRule(ct model.ContentType, offset int, magic []byte) {
	id.mu.Lock()
	defer id.mu.Unlock()

	id.rules = append(id.rules, Rule{
		ContentType: ct,
		Offset:      offset,
		Magic:       append([]byte(nil), magic...),
		seq:         id.nextSeq,
	})
	id.nextSeq++

	sort.SliceStable(id.rules, func(i, j int) bool {
		a, b := id.rules[i], id.rules[j]
		if a.specificity() != b.specificity() {
			return a.specificity() > b.specificity()
		}
		return a.seq < b.seq
	})
}

// AddExtension maps a file extension (with or without the leading dot) to a content type.
func (id *Identifier) AddExtension(ext string, ct model.ContentType) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.extensions[normalizeExt(ext)] = ct
}

// Rules returns the rules in matching order.
func (id *Identifier) Rules() []Rule {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return append([]Rule(nil), id.rules...)
}

// PrefixSize returns the number of bytes IdentifyStream peeks.
func (id *Identifier) PrefixSize() int {
	return id.prefixSize
}

// Identify returns the best-matching content type for the prefix and name.
func (id *Identifier) Identify(prefix []byte, name string) model.ContentType {
	id.mu.RLock()
	defer id.mu.RUnlock()

	for _, rule := range id.rules {
		if rule.matches(prefix) {
			return rule.ContentType
		}
	}

	return id.byName(name)
}

// byName applies the name/extension heuristic. The caller holds the read lock.
func (id *Identifier) byName(name string) model.ContentType {
	ext := normalizeExt(path.Ext(name))
	if ext == "" {
		return model.ContentTypeUnknown
	}

	if ct, ok := id.extensions[ext]; ok {
		return ct
	}

	if id.useSystemMIME {
		if mt := mime.TypeByExtension("." + ext); mt != "" {
			if base, _, err := mime.ParseMediaType(mt); err == nil {
				return model.ContentType(base)
			}
		}
	}

	return model.ContentTypeUnknown
}

// IdentifyStream peeks at most PrefixSize bytes from r and identifies them.
// The stream is seeked back to where it was, so the read is restartable and
// the caller sees the full content afterwards.
func (id *Identifier) IdentifyStream(r io.ReadSeeker, name string) (model.ContentType, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return model.ContentTypeUnknown, err
	}

	buf := make([]byte, id.prefixSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return model.ContentTypeUnknown, err
	}

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return model.ContentTypeUnknown, err
	}

	return id.Identify(buf[:n], name), nil
}

// normalizeExt lower-cases an extension and strips the leading dot.
func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
