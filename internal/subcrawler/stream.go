package subcrawler

import (
	"compress/bzip2"
	"context"
	"io"
	"iter"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/nao1215/deltacrawl/internal/model"
)

// decoder opens a decompressing reader over r.
type decoder func(r io.Reader) (io.ReadCloser, error)

// Stream expands a single-member compressed stream into one child.
// The child inherits the parent marker: the decompressed content changes
// exactly when the compressed content does.
type Stream struct {
	settings
	name    string
	ct      model.ContentType
	suffix  []string
	decoder decoder
}

// Ensure Stream implements SubCrawler.
var _ SubCrawler = (*Stream)(nil)

// NewGzip creates a gzip sub-crawler.
func NewGzip(opts ...Option) *Stream {
	return &Stream{
		settings: newSettings(opts),
		name:     "gzip",
		ct:       "application/gzip",
		suffix:   []string{".gz", ".gzip"},
		decoder: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	}
}

// NewBzip2 creates a bzip2 sub-crawler.
func NewBzip2(opts ...Option) *Stream {
	return &Stream{
		settings: newSettings(opts),
		name:     "bzip2",
		ct:       "application/x-bzip2",
		suffix:   []string{".bz2", ".bzip2"},
		decoder: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(bzip2.NewReader(r)), nil
		},
	}
}

// NewZstd creates a Zstandard sub-crawler.
func NewZstd(opts ...Option) *Stream {
	return &Stream{
		settings: newSettings(opts),
		name:     "zstd",
		ct:       "application/zstd",
		suffix:   []string{".zst", ".zstd"},
		decoder: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	}
}

// NewBrotli creates a brotli sub-crawler.
func NewBrotli(opts ...Option) *Stream {
	return &Stream{
		settings: newSettings(opts),
		name:     "brotli",
		ct:       "application/x-brotli",
		suffix:   []string{".br"},
		decoder: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(brotli.NewReader(r)), nil
		},
	}
}

// Name implements SubCrawler.
func (s *Stream) Name() string {
	return s.name
}

// Supports implements SubCrawler.
func (s *Stream) Supports(ct model.ContentType) bool {
	return ct == s.ct
}

// Open implements SubCrawler.
func (s *Stream) Open(ctx context.Context, parent *model.Item, r io.ReadSeeker) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		dec, err := s.decoder(r)
		if err != nil {
			yield(nil, containerError(parent, err))
			return
		}
		defer dec.Close()

		name := s.entryName(parent.Name)
		data, err := spool(ctx, dec, s.maxEntrySize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			yield(nil, containerError(parent, err))
			return
		}
		yield(memoryChild(parent, name, data, parent.Marker), nil)
	}
}

// entryName derives the decompressed name: "a.txt.gz" becomes "a.txt" and
// "a.tgz" becomes "a.tar".
func (s *Stream) entryName(parentName string) string {
	lower := strings.ToLower(parentName)
	if strings.HasSuffix(lower, ".tgz") {
		return parentName[:len(parentName)-len(".tgz")] + ".tar"
	}
	for _, suffix := range s.suffix {
		if strings.HasSuffix(lower, suffix) && len(parentName) > len(suffix) {
			return parentName[:len(parentName)-len(suffix)]
		}
	}
	return parentName + ".out"
}
