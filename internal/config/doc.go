// Package config provides configuration structures and utilities for deltacrawl.
// It defines the crawl settings shared by every command, the per-source
// overrides read from the .deltacrawl file, and the XDG directories used for
// persisted state.
package config
