package extractor

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/model"
)

// BasicExtractor records the facts every item has: its name, its size and a
// SHA3-256 digest of its content. It is registered on the global wildcard so
// that items without a format-specific extractor still reach the graph.
type BasicExtractor struct{}

// Ensure BasicExtractor implements Extractor.
var _ Extractor = (*BasicExtractor)(nil)

// NewBasicExtractor creates a BasicExtractor.
func NewBasicExtractor() *BasicExtractor {
	return &BasicExtractor{}
}

// Name implements Extractor.
func (*BasicExtractor) Name() string { return "basic" }

// Supports implements Extractor.
func (*BasicExtractor) Supports(model.ContentType) bool { return true }

// Extract implements Extractor.
func (*BasicExtractor) Extract(ctx context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error) {
	h := sha3.New256()
	n, err := io.Copy(h, &contextReader{ctx: ctx, r: r})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", model.ErrAccess, err)
	}

	f := graph.NewFragment(item.ID)
	f.Add(graph.PredicateName, item.Name)
	f.Add(graph.PredicateSize, strconv.FormatInt(n, 10))
	f.Add(graph.PredicateDigest, "sha3-256:"+hex.EncodeToString(h.Sum(nil)))
	return f, nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
