package extractor

import (
	"context"
	"errors"
	"io"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/model"
)

// exifPredicates maps EXIF tags onto the common predicates.
var exifPredicates = map[string]string{
	"Artist":           graph.PredicateAuthor,
	"XPAuthor":         graph.PredicateAuthor,
	"Software":         graph.PredicateProducer,
	"DateTimeOriginal": graph.PredicateCreated,
	"DateTime":         graph.PredicateModified,
	"ImageDescription": graph.PredicateTitle,
}

// EXIFExtractor reads EXIF tags from JPEG and TIFF images.
// Every tag is recorded under the "exif:" predicate prefix; well-known tags
// are additionally mapped onto the common predicates.
type EXIFExtractor struct {
	maxReadSize int64
}

// Ensure EXIFExtractor implements Extractor.
var _ Extractor = (*EXIFExtractor)(nil)

// NewEXIFExtractor creates an EXIFExtractor.
func NewEXIFExtractor() *EXIFExtractor {
	return &EXIFExtractor{maxReadSize: DefaultMaxReadSize}
}

// Name implements Extractor.
func (e *EXIFExtractor) Name() string {
	return "exif"
}

// Supports implements Extractor.
func (e *EXIFExtractor) Supports(ct model.ContentType) bool {
	return ct == "image/jpeg" || ct == "image/tiff"
}

// Extract implements Extractor. An image without EXIF data yields an empty fragment.
func (e *EXIFExtractor) Extract(ctx context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error) {
	data, err := readLimited(ctx, r, e.maxReadSize)
	if err != nil {
		return nil, err
	}

	fragment := graph.NewFragment(item.ID)
	if len(data) == 0 {
		return fragment, nil
	}

	rawExif, err := exif.SearchAndExtractExif(data)
	if errors.Is(err, exif.ErrNoExif) {
		return fragment, nil
	}
	if err != nil {
		return nil, malformed("failed to locate EXIF in %s: %v", item.ID, err)
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, malformed("failed to parse EXIF in %s: %v", item.ID, err)
	}

	for _, entry := range entries {
		if entry.TagName == "" || entry.Formatted == "" {
			continue
		}
		fragment.Add(graph.PredicateEXIFPrefix+entry.TagName, entry.Formatted)
		if predicate, ok := exifPredicates[entry.TagName]; ok {
			fragment.Add(predicate, entry.Formatted)
		}
	}
	return fragment, nil
}
