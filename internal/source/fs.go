package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/deltacrawl/internal/model"
)

// MarkerMode selects how FSSource computes item markers.
type MarkerMode string

const (
	// MarkerModTime uses the modification time and the size. It never reads content.
	MarkerModTime MarkerMode = "mtime"

	// MarkerHash uses the SHA3-256 of the content.
	MarkerHash MarkerMode = "hash"
)

// FSSource enumerates the regular files below a root directory.
type FSSource struct {
	// root is the absolute root directory.
	root string

	// id is the file URI of root.
	id string

	// markerMode selects the marker computation.
	markerMode MarkerMode

	// ignorePatterns skip matching files and directories.
	// Patterns are matched against the slash-separated path relative to root
	// (with a leading slash) and against the base name.
	ignorePatterns []string

	// includeHidden controls whether dot files and directories are visited.
	includeHidden bool
}

// Ensure FSSource implements Source.
var _ Source = (*FSSource)(nil)

// FSOption configures an FSSource.
type FSOption func(*FSSource)

// WithMarkerMode sets the marker computation.
func WithMarkerMode(mode MarkerMode) FSOption {
	return func(s *FSSource) {
		s.markerMode = mode
	}
}

// WithFSIgnorePatterns sets glob patterns of files and directories to skip.
func WithFSIgnorePatterns(patterns []string) FSOption {
	return func(s *FSSource) {
		s.ignorePatterns = patterns
	}
}

// WithHidden enables visiting dot files and dot directories.
func WithHidden(include bool) FSOption {
	return func(s *FSSource) {
		s.includeHidden = include
	}
}

// NewFSSource creates a source rooted at dir.
// The root is not accessed until Enumerate is called.
func NewFSSource(dir string, opts ...FSOption) (*FSSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidRoot)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	s := &FSSource{
		root:       abs,
		id:         fileURI(abs),
		markerMode: MarkerModTime,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.markerMode != MarkerModTime && s.markerMode != MarkerHash {
		return nil, fmt.Errorf("%w: unknown marker mode %q", ErrInvalidRoot, s.markerMode)
	}
	return s, nil
}

// ID implements Source.
func (s *FSSource) ID() string {
	return s.id
}

// Root returns the absolute root directory.
func (s *FSSource) Root() string {
	return s.root
}

// Enumerate implements Source. Files are yielded in lexical order.
// An inaccessible root yields a single fatal error.
func (s *FSSource) Enumerate(ctx context.Context) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		info, err := os.Stat(s.root)
		if err != nil {
			yield(nil, fatal(s.id, err))
			return
		}
		if !info.IsDir() {
			yield(nil, fatal(s.id, fmt.Errorf("%s is not a directory", s.root)))
			return
		}

		stopped := false
		walkErr := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if p == s.root {
					return err
				}
				isDir := d != nil && d.IsDir()
				failure := accessError(fileURI(p), err)
				failure.Subtree = isDir
				if !yield(nil, failure) {
					stopped = true
					return filepath.SkipAll
				}
				if isDir {
					return filepath.SkipDir
				}
				return nil
			}
			if p == s.root {
				return nil
			}

			if s.skip(p, d) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			item, err := s.newItem(ctx, p, d)
			if !yield(item, err) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil && !stopped && ctx.Err() == nil {
			yield(nil, fatal(s.id, walkErr))
		}
	}
}

// skip reports whether the ignore rules exclude p.
func (s *FSSource) skip(p string, d fs.DirEntry) bool {
	if !s.includeHidden && strings.HasPrefix(d.Name(), ".") {
		return true
	}
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return false
	}
	return matchAny(s.ignorePatterns, "/"+filepath.ToSlash(rel))
}

// newItem builds the item for the regular file at p.
func (s *FSSource) newItem(ctx context.Context, p string, d fs.DirEntry) (*model.Item, error) {
	id := fileURI(p)
	info, err := d.Info()
	if err != nil {
		return nil, accessError(id, err)
	}

	var marker string
	switch s.markerMode {
	case MarkerHash:
		marker, err = hashFile(ctx, p)
		if err != nil {
			return nil, accessError(id, err)
		}
	default:
		marker = fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())
	}

	return model.NewItem(id, d.Name(), info.Size(), marker, func(ctx context.Context) (io.ReadSeekCloser, error) {
		return openFile(ctx, p)
	}), nil
}

// Open implements Source.
func (s *FSSource) Open(ctx context.Context, item *model.Item) (io.ReadSeekCloser, error) {
	p, err := s.pathOf(item.ID)
	if err != nil {
		return nil, err
	}
	return openFile(ctx, p)
}

// openFile opens p for reading.
func openFile(ctx context.Context, p string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrAccess, err)
	}
	return f, nil
}

// pathOf maps an item identifier back to a path below root.
func (s *FSSource) pathOf(id string) (string, error) {
	u, err := url.Parse(id)
	if err != nil || u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s is not a file URI", model.ErrAccess, id)
	}
	p := filepath.FromSlash(u.Path)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", model.ErrAccess, id, s.root)
	}
	return p, nil
}

// fileURI returns the file URI of an absolute path.
func fileURI(p string) string {
	u := url.URL{Scheme: "file", Path: path.Clean(filepath.ToSlash(p))}
	return u.String()
}

// hashFile returns the hex SHA3-256 of the file at p.
func hashFile(ctx context.Context, p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha3.New256()
	if _, err := io.Copy(h, &ctxReader{ctx: ctx, r: f}); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
