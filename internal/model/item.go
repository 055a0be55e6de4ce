package model

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ContainerSeparator joins a container item's identifier and the internal
// path of one of its entries, e.g. "file:///data/a.zip!/docs/b.txt".
const ContainerSeparator = "!/"

// ContentType is an opaque label identifying a format.
// Labels are MIME-type-like tokens such as "application/zip".
type ContentType string

// ContentTypeUnknown is assigned when neither a signature rule nor a name
// heuristic matched. It is a valid outcome, not an error.
const ContentTypeUnknown ContentType = "application/octet-stream"

// String returns the label as a plain string.
func (c ContentType) String() string {
	return string(c)
}

// Family returns the part before the slash ("text" for "text/html").
func (c ContentType) Family() string {
	family, _, _ := strings.Cut(string(c), "/")
	return family
}

// IsUnknown reports whether the label is empty or ContentTypeUnknown.
func (c ContentType) IsUnknown() bool {
	return c == "" || c == ContentTypeUnknown
}

// Opener opens a fresh, seekable content stream for an item.
// Each call returns an independent stream positioned at offset zero.
type Opener func(ctx context.Context) (io.ReadSeekCloser, error)

// ErrNoContent is returned by Item.Open when the item has no content accessor.
var ErrNoContent = errors.New("item has no content accessor")

// Item is one crawlable unit of a data source.
//
// The crawl engine owns an Item for the duration of one visit. The content
// stream is opened lazily through Open and must be closed before the engine
// moves on to the next item on the same level.
type Item struct {
	// ID is the stable identifier of the item, unique within a source.
	// Items produced by a sub-crawler use the parent ID followed by
	// ContainerSeparator and the entry path.
	ID string `json:"id"`

	// Name is the display name used by the name/extension heuristic
	// of the content identifier (usually the base name of the path).
	Name string `json:"name"`

	// Size is the declared size in bytes. Negative means unknown.
	Size int64 `json:"size"`

	// Marker is the opaque last-modified token (timestamp, hash or version
	// string depending on the source). Two markers are compared with ==.
	Marker string `json:"marker"`

	// Container lists the identifiers of the enclosing containers, outermost
	// first. It is empty for items enumerated directly from a source.
	Container []string `json:"container,omitempty"`

	// ContentType is assigned at most once per visit by the engine.
	ContentType ContentType `json:"content_type,omitempty"`

	// DeclaredType is the type announced by the source, such as an HTTP
	// Content-Type header. It is used only when identification yields unknown.
	DeclaredType ContentType `json:"declared_type,omitempty"`

	// open lazily opens the content stream.
	open Opener
}

// NewItem creates an item enumerated directly from a data source.
func NewItem(id, name string, size int64, marker string, open Opener) *Item {
	return &Item{
		ID:     id,
		Name:   name,
		Size:   size,
		Marker: marker,
		open:   open,
	}
}

// NewChildItem creates a synthetic item for an entry inside the container parent.
// The child inherits the parent's container path plus the parent itself.
func NewChildItem(parent *Item, entryPath string, size int64, marker string, open Opener) *Item {
	entryPath = strings.TrimPrefix(entryPath, "/")

	container := make([]string, 0, len(parent.Container)+1)
	container = append(container, parent.Container...)
	container = append(container, parent.ID)

	return &Item{
		ID:        parent.ID + ContainerSeparator + entryPath,
		Name:      path.Base(entryPath),
		Size:      size,
		Marker:    marker,
		Container: container,
		open:      open,
	}
}

// Depth returns the nesting level: 0 for source items, 1 for entries of a
// top-level container, and so on.
func (i *Item) Depth() int {
	return len(i.Container)
}

// Open opens the content stream. The caller must close it.
func (i *Item) Open(ctx context.Context) (io.ReadSeekCloser, error) {
	if i.open == nil {
		return nil, ErrNoContent
	}
	return i.open(ctx)
}

// HasContent reports whether the item carries a content accessor.
func (i *Item) HasContent() bool {
	return i.open != nil
}

// SetContentType assigns the content type once. Later calls are ignored
// and report false so that a label never changes within one visit.
func (i *Item) SetContentType(ct ContentType) bool {
	if i.ContentType != "" {
		return false
	}
	i.ContentType = ct
	return true
}

// IsWithin reports whether the item is (transitively) contained in containerID.
func (i *Item) IsWithin(containerID string) bool {
	return strings.HasPrefix(i.ID, containerID+ContainerSeparator)
}
