package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no directory or URL is given.
	ErrNoTarget = errors.New("no target specified: provide a directory or an http(s) URL")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxDepth is returned for a negative container depth.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidItemTimeout is returned for a negative item timeout.
	ErrInvalidItemTimeout = errors.New("invalid item timeout: must be non-negative")

	// ErrInvalidConcurrency is returned when the source concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMarkerMode is returned for a marker mode other than mtime or hash.
	ErrInvalidMarkerMode = errors.New("invalid marker mode: must be mtime or hash")

	// ErrInvalidLedgerBackend is returned for an unknown ledger backend.
	ErrInvalidLedgerBackend = errors.New("invalid ledger backend: must be sqlite, file or memory")

	// ErrNoDBDir is returned when a persistent backend has no directory.
	ErrNoDBDir = errors.New("no database directory: set --db-dir or use --ledger memory")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidTimeout is returned when the HTTP timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when a size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid size limit: must be non-negative")
)
