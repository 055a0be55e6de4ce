package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/identify"
	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/registry"
)

// DefaultMaxReadSize bounds how much content an extractor reads.
const DefaultMaxReadSize = 32 * 1024 * 1024

// ErrContentTooLarge is returned when content exceeds the read limit.
var ErrContentTooLarge = errors.New("content exceeds extractor read limit")

// Extractor turns item content into graph statements.
type Extractor interface {
	// Name identifies the extractor in logs and statements.
	Name() string

	// Supports reports whether the extractor understands ct.
	Supports(ct model.ContentType) bool

	// Extract reads r and describes item. The stream is positioned at
	// the start of the content.
	Extract(ctx context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error)
}

// Registration priorities of the built-in extractors. Specific extractors
// win over the generic text extractor through the exact-match tier; the
// priorities only order providers registered on the same pattern.
const (
	PrioritySpecific = 100
	PriorityGeneric  = 10
	PriorityFallback = 0
)

// RegisterDefaults registers the built-in extractors on reg.
func RegisterDefaults(reg *registry.Registry[Extractor]) error {
	entries := []struct {
		pattern   string
		extractor Extractor
		priority  int
	}{
		{identify.TypeHTML.String(), NewHTMLExtractor(), PrioritySpecific},
		{identify.TypeVCard.String(), NewVCardExtractor(), PrioritySpecific},
		{identify.TypeRFC822.String(), NewMailExtractor(), PrioritySpecific},
		{identify.TypeJPEG.String(), NewEXIFExtractor(), PrioritySpecific},
		{identify.TypeTIFF.String(), NewEXIFExtractor(), PrioritySpecific},
		{identify.TypePDF.String(), NewPDFExtractor(), PrioritySpecific},
		{"text/*", NewTextExtractor(), PriorityGeneric},
		{registry.Wildcard, NewBasicExtractor(), PriorityFallback},
	}
	for _, e := range entries {
		if err := reg.Register(e.pattern, e.extractor, e.priority); err != nil {
			return fmt.Errorf("failed to register %s extractor: %w", e.extractor.Name(), err)
		}
	}
	return nil
}

// readLimited reads r fully, failing when it exceeds limit bytes.
func readLimited(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrAccess, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %w (%d bytes)", model.ErrExtraction, ErrContentTooLarge, limit)
	}
	return data, nil
}

// malformed wraps a parse failure as an extraction error.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrExtraction, fmt.Sprintf(format, args...))
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
