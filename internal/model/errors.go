package model

import (
	"errors"
	"fmt"
)

// Crawl error taxonomy.
// Only ErrSourceFatal escalates past the per-item boundary; every other kind
// is converted into an itemError notification and an errors counter increment.
var (
	// ErrAccess is returned when an item's content cannot be read.
	ErrAccess = errors.New("item not accessible")

	// ErrExtraction is returned when every resolved extractor failed on an item.
	ErrExtraction = errors.New("extraction failed")

	// ErrNoProvider is returned when no extractor is registered for a content type.
	// It is recorded like an extraction failure.
	ErrNoProvider = errors.New("no extractor registered for content type")

	// ErrRecursionLimit is returned for a container entry nested deeper than
	// the configured maximum recursion depth. Its descendants are not enumerated.
	ErrRecursionLimit = errors.New("recursion depth limit exceeded")

	// ErrSourceFatal marks a data source that became unreachable. It aborts the run.
	ErrSourceFatal = errors.New("data source unreachable")
)

// ErrorKind names the taxonomy class of an ItemError.
type ErrorKind string

// Error kinds reported in ItemError.Kind.
const (
	ErrorKindAccess         ErrorKind = "access"
	ErrorKindExtraction     ErrorKind = "extraction"
	ErrorKindRecursionLimit ErrorKind = "recursion_limit"
	ErrorKindSourceFatal    ErrorKind = "source_fatal"
)

// KindOf maps an error to its taxonomy class. Errors outside the taxonomy
// are treated as access errors.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrSourceFatal):
		return ErrorKindSourceFatal
	case errors.Is(err, ErrRecursionLimit):
		return ErrorKindRecursionLimit
	case errors.Is(err, ErrExtraction), errors.Is(err, ErrNoProvider):
		return ErrorKindExtraction
	default:
		return ErrorKindAccess
	}
}

// ItemError is a failure confined to one item.
type ItemError struct {
	// ItemID identifies the failed item.
	ItemID string `json:"item_id"`

	// Kind is the taxonomy class.
	Kind ErrorKind `json:"kind"`

	// Message is the error text, kept for serialized reports.
	Message string `json:"message"`

	// Err is the underlying error. It is not serialized.
	Err error `json:"-"`

	// Subtree marks an item whose descendants could not be listed, such as
	// an unreadable directory.
	Subtree bool `json:"-"`
}

// NewItemError wraps err for the item with the given identifier.
func NewItemError(itemID string, err error) *ItemError {
	return &ItemError{
		ItemID:  itemID,
		Kind:    KindOf(err),
		Message: err.Error(),
		Err:     err,
	}
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %s", e.ItemID, e.Message)
}

// Unwrap returns the underlying error so errors.Is sees the taxonomy sentinel.
func (e *ItemError) Unwrap() error {
	return e.Err
}
