package source

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/url"

	"github.com/nao1215/deltacrawl/internal/model"
)

// Source is a hierarchical data source.
type Source interface {
	// ID returns the identifier of the source. Ledgers are keyed by it.
	ID() string

	// Enumerate returns a lazy, finite and non-restartable sequence of items.
	// A yielded error wrapping model.ErrSourceFatal ends the sequence.
	Enumerate(ctx context.Context) iter.Seq2[*model.Item, error]

	// Open returns a fresh seekable stream over item's content.
	Open(ctx context.Context, item *model.Item) (io.ReadSeekCloser, error)
}

// LinkExtractor discovers outgoing links in the content of a network item.
type LinkExtractor interface {
	// Name identifies the extractor in logs.
	Name() string

	// Supports reports whether the extractor understands ct.
	Supports(ct model.ContentType) bool

	// Links returns the absolute URLs referenced by r, resolved against base.
	Links(ctx context.Context, base *url.URL, r io.Reader) ([]string, error)
}

// LinkResolver returns the link extractors registered for a content type,
// best first. *registry.Registry[LinkExtractor] satisfies it.
type LinkResolver interface {
	Resolve(ct model.ContentType) []LinkExtractor
}

var (
	// ErrInvalidRoot is returned when a source is created with an unusable root.
	ErrInvalidRoot = errors.New("invalid source root")

	// ErrBodyTooLarge is returned when a response body exceeds the size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// fatal wraps err so that it escalates past the per-item boundary.
func fatal(id string, err error) error {
	return &model.ItemError{
		ItemID:  id,
		Kind:    model.ErrorKindSourceFatal,
		Message: err.Error(),
		Err:     errors.Join(model.ErrSourceFatal, err),
	}
}

// accessError reports an unreadable item.
func accessError(id string, err error) *model.ItemError {
	return &model.ItemError{
		ItemID:  id,
		Kind:    model.ErrorKindAccess,
		Message: err.Error(),
		Err:     errors.Join(model.ErrAccess, err),
	}
}

// readSeekNopCloser gives an in-memory reader a no-op Close.
type readSeekNopCloser struct {
	io.ReadSeeker
}

func (readSeekNopCloser) Close() error { return nil }
