package subcrawler

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sort"

	"github.com/nao1215/deltacrawl/internal/model"
)

// Zip expands zip archives. Entries are yielded in path order.
type Zip struct {
	settings
}

// Ensure Zip implements SubCrawler.
var _ SubCrawler = (*Zip)(nil)

// NewZip creates a zip sub-crawler.
func NewZip(opts ...Option) *Zip {
	return &Zip{settings: newSettings(opts)}
}

// Name implements SubCrawler.
func (z *Zip) Name() string {
	return "zip"
}

// Supports implements SubCrawler.
func (z *Zip) Supports(ct model.ContentType) bool {
	return ct == "application/zip"
}

// Open implements SubCrawler. The child marker combines the entry CRC-32 and
// size, so it follows content rather than archive timestamps.
func (z *Zip) Open(ctx context.Context, parent *model.Item, r io.ReadSeeker) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		ra, size, err := readerAt(r)
		if err != nil {
			yield(nil, containerError(parent, err))
			return
		}
		zr, err := zip.NewReader(ra, size)
		if errors.Is(err, zip.ErrInsecurePath) && zr != nil {
			err = nil
		}
		if err != nil {
			yield(nil, containerError(parent, err))
			return
		}

		files := make([]*zip.File, 0, len(zr.File))
		for _, f := range zr.File {
			if !f.FileInfo().IsDir() {
				files = append(files, f)
			}
		}
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].Name < files[j].Name
		})

		for _, f := range files {
			if ctx.Err() != nil {
				return
			}
			item, err := z.entry(ctx, parent, f)
			if !yield(item, err) {
				return
			}
		}
	}
}

// entry spools one zip entry.
func (z *Zip) entry(ctx context.Context, parent *model.Item, f *zip.File) (*model.Item, error) {
	name, err := cleanEntryPath(f.Name)
	if err != nil {
		return nil, entryError(parent, f.Name, err)
	}
	if f.UncompressedSize64 > uint64(z.maxEntrySize) {
		return nil, entryError(parent, name, fmt.Errorf("%w (%d bytes)", ErrEntryTooLarge, z.maxEntrySize))
	}

	rc, err := f.Open()
	if err != nil {
		return nil, entryError(parent, name, err)
	}
	defer rc.Close()

	data, err := spool(ctx, rc, z.maxEntrySize)
	if err != nil {
		return nil, entryError(parent, name, err)
	}
	return memoryChild(parent, name, data, fmt.Sprintf("%08x-%d", f.CRC32, len(data))), nil
}

// readerAt adapts r to io.ReaderAt, spooling it when needed.
func readerAt(r io.ReadSeeker) (io.ReaderAt, int64, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	if ra, ok := r.(io.ReaderAt); ok {
		return ra, size, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// Tar expands tar archives in stream order.
type Tar struct {
	settings
}

// Ensure Tar implements SubCrawler.
var _ SubCrawler = (*Tar)(nil)

// NewTar creates a tar sub-crawler.
func NewTar(opts ...Option) *Tar {
	return &Tar{settings: newSettings(opts)}
}

// Name implements SubCrawler.
func (t *Tar) Name() string {
	return "tar"
}

// Supports implements SubCrawler.
func (t *Tar) Supports(ct model.ContentType) bool {
	return ct == "application/x-tar"
}

// Open implements SubCrawler. The child marker combines the entry
// modification time and size.
func (t *Tar) Open(ctx context.Context, parent *model.Item, r io.ReadSeeker) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		tr := tar.NewReader(r)
		for {
			if ctx.Err() != nil {
				return
			}
			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, tar.ErrInsecurePath) && hdr != nil {
				err = nil
			}
			if err != nil {
				yield(nil, containerError(parent, err))
				return
			}
			if hdr.Typeflag != tar.TypeReg {
				continue
			}

			item, err := t.entry(ctx, parent, tr, hdr)
			if !yield(item, err) {
				return
			}
		}
	}
}

// entry spools the current tar entry.
func (t *Tar) entry(ctx context.Context, parent *model.Item, tr *tar.Reader, hdr *tar.Header) (*model.Item, error) {
	name, err := cleanEntryPath(hdr.Name)
	if err != nil {
		return nil, entryError(parent, hdr.Name, err)
	}
	if hdr.Size > t.maxEntrySize {
		return nil, entryError(parent, name, fmt.Errorf("%w (%d bytes)", ErrEntryTooLarge, t.maxEntrySize))
	}
	data, err := spool(ctx, tr, t.maxEntrySize)
	if err != nil {
		return nil, entryError(parent, name, err)
	}
	return memoryChild(parent, name, data, fmt.Sprintf("%d-%d", hdr.ModTime.UnixNano(), hdr.Size)), nil
}
