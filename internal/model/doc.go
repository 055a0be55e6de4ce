// Package model defines the core data structures shared by the crawl engine,
// the capability providers and the report writers.
//
// This package contains the following main types:
//   - Item: One crawlable unit with a lazily opened, seekable content stream
//   - Classification: NEW, CHANGED, UNCHANGED or DELETED for one run
//   - Status: The crawl state machine (IDLE, RUNNING and the terminal states)
//   - CrawlReport: Counters and terminal status of one crawl run
//   - ItemError: A per-item failure attached to a lifecycle notification
//
// Models live in their own package so that the crawler, the sources, the
// providers and the report writers can share them without import cycles.
// CrawlReport is serializable to JSON for report output and database storage.
package model
