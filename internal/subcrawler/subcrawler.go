package subcrawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"

	"github.com/nao1215/deltacrawl/internal/identify"
	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/registry"
)

// DefaultMaxEntrySize bounds the spooled size of one entry.
const DefaultMaxEntrySize = 64 * 1024 * 1024

var (
	// ErrEntryTooLarge is reported for an entry larger than the spool limit.
	ErrEntryTooLarge = errors.New("container entry exceeds size limit")

	// ErrUnsafePath is reported for an entry whose path escapes the container.
	ErrUnsafePath = errors.New("container entry path is not safe")
)

// SubCrawler expands a container item.
type SubCrawler interface {
	// Name identifies the sub-crawler in logs.
	Name() string

	// Supports reports whether the sub-crawler understands ct.
	Supports(ct model.ContentType) bool

	// Open enumerates the children of parent from r. A yielded error
	// without an item concerns a single entry, or the whole container
	// when it cannot be read at all.
	Open(ctx context.Context, parent *model.Item, r io.ReadSeeker) iter.Seq2[*model.Item, error]
}

// Option configures the built-in sub-crawlers.
type Option func(*settings)

// settings are shared by every built-in sub-crawler.
type settings struct {
	maxEntrySize int64
}

// WithMaxEntrySize sets the spool limit of one entry.
func WithMaxEntrySize(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxEntrySize = n
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{maxEntrySize: DefaultMaxEntrySize}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// RegisterDefaults registers every built-in sub-crawler on reg.
func RegisterDefaults(reg *registry.Registry[SubCrawler], opts ...Option) error {
	entries := []struct {
		ct  model.ContentType
		sub SubCrawler
	}{
		{identify.TypeZip, NewZip(opts...)},
		{identify.TypeTar, NewTar(opts...)},
		{identify.TypeGzip, NewGzip(opts...)},
		{identify.TypeBzip2, NewBzip2(opts...)},
		{identify.TypeZstd, NewZstd(opts...)},
		{identify.TypeBrotli, NewBrotli(opts...)},
		{identify.TypeMbox, NewMbox(opts...)},
	}
	for _, e := range entries {
		if err := reg.Register(e.ct.String(), e.sub, 0); err != nil {
			return fmt.Errorf("failed to register %s sub-crawler: %w", e.sub.Name(), err)
		}
	}
	return nil
}

// spool reads r fully into memory, failing when it exceeds limit bytes.
func spool(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrEntryTooLarge, limit)
	}
	return data, nil
}

// memoryChild creates a child item whose content is data.
func memoryChild(parent *model.Item, entryPath string, data []byte, marker string) *model.Item {
	return model.NewChildItem(parent, entryPath, int64(len(data)), marker, func(ctx context.Context) (io.ReadSeekCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nopCloser{bytes.NewReader(data)}, nil
	})
}

// cleanEntryPath normalizes an archive entry path and rejects paths that
// escape the container.
func cleanEntryPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
		}
	}
	cleaned := path.Clean("/" + name)
	if cleaned == "/" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// entryError reports a failure confined to one entry.
func entryError(parent *model.Item, entryPath string, err error) error {
	id := parent.ID + model.ContainerSeparator + entryPath
	return model.NewItemError(id, errors.Join(model.ErrAccess, err))
}

// containerError reports a container that cannot be read.
func containerError(parent *model.Item, err error) error {
	return model.NewItemError(parent.ID, fmt.Errorf("%w: %v", model.ErrExtraction, err))
}

// nopCloser gives an in-memory reader a no-op Close.
type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }
