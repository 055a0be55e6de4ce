// Package database provides SQLite-based storage for deltacrawl.
//
// CrawlDB stores three things in one database file:
//   - the access ledger of every source (implements ledger.Store)
//   - the statements extracted for every item (implements graph.Store)
//   - finished crawl reports, for run history
//
// The database uses modernc.org/sqlite, a CGO-free driver, in WAL mode with
// a single connection, so every write is serialized.
package database
