package crawler

import (
	"fmt"

	"github.com/nao1215/deltacrawl/internal/extractor"
	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/registry"
	"github.com/nao1215/deltacrawl/internal/source"
	"github.com/nao1215/deltacrawl/internal/subcrawler"
)

// Capabilities groups the provider registries the engine consults.
// Registries may be extended while a run is active; a run resolves
// providers against whatever is registered at the time an item is handled.
type Capabilities struct {
	// Extractors turn item content into graph statements.
	Extractors *registry.Registry[extractor.Extractor]

	// SubCrawlers expand container items into child items.
	SubCrawlers *registry.Registry[subcrawler.SubCrawler]

	// Links discover outgoing links for web sources.
	Links *registry.Registry[source.LinkExtractor]
}

// NewCapabilities creates empty registries.
func NewCapabilities() *Capabilities {
	return &Capabilities{
		Extractors:  registry.New[extractor.Extractor](),
		SubCrawlers: registry.New[subcrawler.SubCrawler](),
		Links:       registry.New[source.LinkExtractor](),
	}
}

// DefaultCapabilities creates registries holding every built-in provider.
func DefaultCapabilities(opts ...subcrawler.Option) (*Capabilities, error) {
	caps := NewCapabilities()
	if err := extractor.RegisterDefaults(caps.Extractors); err != nil {
		return nil, err
	}
	if err := subcrawler.RegisterDefaults(caps.SubCrawlers, opts...); err != nil {
		return nil, err
	}
	if err := caps.Links.Register("text/html", extractor.NewHTMLLinkExtractor(), extractor.PrioritySpecific); err != nil {
		return nil, fmt.Errorf("failed to register html link extractor: %w", err)
	}
	return caps, nil
}

// extractorsFor returns, in resolution order, the extractors that accept ct.
func (c *Capabilities) extractorsFor(ct model.ContentType) []extractor.Extractor {
	resolved := c.Extractors.Resolve(ct)
	out := make([]extractor.Extractor, 0, len(resolved))
	for _, e := range resolved {
		if e.Supports(ct) {
			out = append(out, e)
		}
	}
	return out
}

// subCrawlerFor returns the first sub-crawler that accepts ct, or nil.
func (c *Capabilities) subCrawlerFor(ct model.ContentType) subcrawler.SubCrawler {
	for _, s := range c.SubCrawlers.Resolve(ct) {
		if s.Supports(ct) {
			return s
		}
	}
	return nil
}
