package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "deltacrawl"

	// DefaultWorkers is the number of concurrent extractions per run.
	DefaultWorkers = 4

	// DefaultMaxDepth is how many container levels are expanded.
	// Archives nested deeper are reported with a recursion-limit error.
	DefaultMaxDepth = 5

	// DefaultItemTimeout bounds identification and extraction of one item.
	DefaultItemTimeout = 2 * time.Minute

	// DefaultConcurrency is the number of sources crawled at once.
	DefaultConcurrency = 4

	// DefaultMarkerMode derives file markers from modification time and size.
	DefaultMarkerMode = MarkerModeMTime

	// DefaultLedgerBackend stores access records in the SQLite database.
	DefaultLedgerBackend = LedgerSQLite

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDelay is the delay between HTTP requests to one host.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultHTTPDepth is the link depth followed from the start URL.
	DefaultHTTPDepth = 3

	// DefaultMaxPages caps the pages fetched per HTTP source.
	DefaultMaxPages = 500

	// DefaultUserAgent identifies deltacrawl in HTTP requests.
	DefaultUserAgent = "deltacrawl/1.0 (+https://github.com/nao1215/deltacrawl)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxEntrySize limits the spooled size of one archive entry.
	DefaultMaxEntrySize = 64 * 1024 * 1024 // 64MB

	// DefaultWatchDebounce is the quiet period before watch re-crawls.
	DefaultWatchDebounce = 2 * time.Second
)

// Marker modes for filesystem sources.
const (
	// MarkerModeMTime uses modification time and size.
	MarkerModeMTime = "mtime"
	// MarkerModeHash uses a SHA3-256 digest of the content.
	MarkerModeHash = "hash"
)

// Ledger backends.
const (
	// LedgerSQLite keeps access records in the SQLite database.
	LedgerSQLite = "sqlite"
	// LedgerFile keeps one JSON lines file per source.
	LedgerFile = "file"
	// LedgerMemory keeps nothing between runs. Every item is NEW.
	LedgerMemory = "memory"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds every option of a crawl. It is populated from CLI flags and
// the configuration file and passed down explicitly.
type Config struct {
	// Targets are directories or http(s) URLs to crawl.
	Targets []string

	// Workers is the number of concurrent extractions per run.
	Workers int

	// MaxDepth is the number of container levels expanded. Zero disables
	// container expansion.
	MaxDepth int

	// ItemTimeout bounds the work on one item. Zero means no limit.
	ItemTimeout time.Duration

	// Concurrency is the number of sources crawled at once.
	Concurrency int

	// ForceFull ignores the previous run: every item is NEW and nothing is
	// reported deleted.
	ForceFull bool

	// ForceExtract re-extracts unchanged items.
	ForceExtract bool

	// MarkerMode is MarkerModeMTime or MarkerModeHash.
	MarkerMode string

	// IncludeHidden crawls dot files and directories.
	IncludeHidden bool

	// MaxEntrySize limits the spooled size of one archive entry.
	MaxEntrySize int64

	// Verbose enables debug logging and unchanged-item progress lines.
	Verbose bool

	// LogFormat is LogFormatText or LogFormatJSON.
	LogFormat string

	// ConfigFilePath is the configuration file. If empty, .deltacrawl is
	// searched in the current and home directories.
	ConfigFilePath string

	// SourceConfigs holds the per-source overrides loaded from the
	// configuration file.
	SourceConfigs *File

	// JSONReport writes the report as JSON. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes the report as Markdown.
	MarkdownReport bool

	// ReportFile is the output file for the report. Empty means stdout.
	ReportFile string

	// Quiet suppresses per-item progress lines.
	Quiet bool

	// DBDir is the directory of the SQLite database and ledger files.
	// Defaults to the XDG data directory.
	DBDir string

	// LedgerBackend is LedgerSQLite, LedgerFile or LedgerMemory.
	LedgerBackend string

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for HTTP sources.
	ProxyAddress string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// CrawlDelay is the delay between HTTP requests to one host.
	CrawlDelay time.Duration

	// HTTPDepth is the link depth followed from the start URL.
	HTTPDepth int

	// MaxPages caps the pages fetched per HTTP source.
	MaxPages int

	// UserAgent is sent with every HTTP request.
	UserAgent string

	// MaxBodySize limits the response body read per page.
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:       DefaultWorkers,
		MaxDepth:      DefaultMaxDepth,
		ItemTimeout:   DefaultItemTimeout,
		Concurrency:   DefaultConcurrency,
		MarkerMode:    DefaultMarkerMode,
		MaxEntrySize:  DefaultMaxEntrySize,
		LogFormat:     LogFormatText,
		DBDir:         XDGDataDir(),
		LedgerBackend: DefaultLedgerBackend,
		Timeout:       DefaultTimeout,
		CrawlDelay:    DefaultCrawlDelay,
		HTTPDepth:     DefaultHTTPDepth,
		MaxPages:      DefaultMaxPages,
		UserAgent:     DefaultUserAgent,
		MaxBodySize:   DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for deltacrawl.
// On Linux: ~/.local/share/deltacrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for deltacrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// LedgerDir returns the directory of the file ledger backend.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.DBDir, "ledger")
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.ItemTimeout < 0 {
		return ErrInvalidItemTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MarkerMode != MarkerModeMTime && c.MarkerMode != MarkerModeHash {
		return ErrInvalidMarkerMode
	}
	switch c.LedgerBackend {
	case LedgerSQLite, LedgerFile, LedgerMemory:
	default:
		return ErrInvalidLedgerBackend
	}
	if c.LedgerBackend != LedgerMemory && c.DBDir == "" {
		return ErrNoDBDir
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 || c.MaxEntrySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
