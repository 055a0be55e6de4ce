// Package source provides the data sources an incremental crawl walks.
//
// A Source enumerates its items lazily and opens their content on demand.
// Two connectors are provided:
//
//   - FSSource walks a directory tree in lexical order.
//   - HTTPSource crawls the pages of one web host breadth-first, optionally
//     through a SOCKS5 proxy, discovering further pages with the registered
//     link extractors.
//
// # Markers
//
// Every item carries a marker used by the access ledger to detect change
// without reading full content. FSSource uses modification time and size, or
// a SHA3-256 content hash when MarkerHash is selected. HTTPSource prefers the
// ETag header, then Last-Modified, then a SHA3-256 hash of the body.
//
// # Errors
//
// An enumeration error wrapping model.ErrSourceFatal means the source itself
// is unreachable and ends the run. Any other enumeration error concerns a
// single item and is reported as a *model.ItemError.
package source
