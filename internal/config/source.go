package config

import (
	"maps"
	"time"
)

// SourceConfig holds the settings that can be overridden per source.
// Zero values mean "not set" and fall back to the defaults section and
// then to the command line.
type SourceConfig struct {
	// IgnorePatterns are glob patterns of paths to skip.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict an HTTP crawl to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// MarkerMode overrides the marker mode of a directory source.
	MarkerMode string `yaml:"markerMode,omitempty"`

	// MaxDepth overrides the container depth.
	MaxDepth int `yaml:"maxDepth,omitempty"`

	// IncludeHidden crawls dot files when set to true.
	IncludeHidden *bool `yaml:"includeHidden,omitempty"`

	// HTTPDepth overrides the link depth of an HTTP source.
	HTTPDepth int `yaml:"httpDepth,omitempty"`

	// MaxPages overrides the page cap of an HTTP source.
	MaxPages int `yaml:"maxPages,omitempty"`

	// CrawlDelay overrides the request delay of an HTTP source.
	CrawlDelay time.Duration `yaml:"crawlDelay,omitempty"`

	// UserAgent overrides the User-Agent of an HTTP source.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Labels are free-form key/value pairs recorded with the source.
	Labels map[string]string `yaml:"labels,omitempty"`
}

// File represents the structure of the .deltacrawl configuration file.
type File struct {
	// Defaults applies to every source unless overridden.
	Defaults SourceConfig `yaml:"defaults,omitempty"`

	// Sources maps a target, as written on the command line or as a source
	// ID (file:// URI or URL), to its overrides.
	Sources map[string]SourceConfig `yaml:"sources,omitempty"`
}

// GetSourceConfig returns the defaults merged with the overrides of the
// first key that has an entry.
func (f *File) GetSourceConfig(keys ...string) SourceConfig {
	result := f.Defaults
	result.IgnorePatterns = append([]string(nil), f.Defaults.IgnorePatterns...)
	result.Labels = maps.Clone(f.Defaults.Labels)

	for _, key := range keys {
		sc, ok := f.Sources[key]
		if !ok {
			continue
		}
		result.merge(sc)
		break
	}
	return result
}

// merge overrides r with the set fields of o. Ignore patterns accumulate.
func (r *SourceConfig) merge(o SourceConfig) {
	r.IgnorePatterns = append(r.IgnorePatterns, o.IgnorePatterns...)
	if len(o.FollowPatterns) > 0 {
		r.FollowPatterns = o.FollowPatterns
	}
	if o.MarkerMode != "" {
		r.MarkerMode = o.MarkerMode
	}
	if o.MaxDepth != 0 {
		r.MaxDepth = o.MaxDepth
	}
	if o.IncludeHidden != nil {
		r.IncludeHidden = o.IncludeHidden
	}
	if o.HTTPDepth != 0 {
		r.HTTPDepth = o.HTTPDepth
	}
	if o.MaxPages != 0 {
		r.MaxPages = o.MaxPages
	}
	if o.CrawlDelay != 0 {
		r.CrawlDelay = o.CrawlDelay
	}
	if o.UserAgent != "" {
		r.UserAgent = o.UserAgent
	}
	if len(o.Labels) > 0 {
		if r.Labels == nil {
			r.Labels = make(map[string]string, len(o.Labels))
		}
		maps.Copy(r.Labels, o.Labels)
	}
}

// ForSource returns a copy of c with the file settings for the given keys
// applied. c itself is not modified.
func (c *Config) ForSource(keys ...string) (*Config, SourceConfig) {
	cp := *c
	if c.SourceConfigs == nil {
		return &cp, SourceConfig{}
	}
	sc := c.SourceConfigs.GetSourceConfig(keys...)
	if sc.MarkerMode != "" {
		cp.MarkerMode = sc.MarkerMode
	}
	if sc.MaxDepth != 0 {
		cp.MaxDepth = sc.MaxDepth
	}
	if sc.IncludeHidden != nil {
		cp.IncludeHidden = *sc.IncludeHidden
	}
	if sc.HTTPDepth != 0 {
		cp.HTTPDepth = sc.HTTPDepth
	}
	if sc.MaxPages != 0 {
		cp.MaxPages = sc.MaxPages
	}
	if sc.CrawlDelay != 0 {
		cp.CrawlDelay = sc.CrawlDelay
	}
	if sc.UserAgent != "" {
		cp.UserAgent = sc.UserAgent
	}
	return &cp, sc
}
