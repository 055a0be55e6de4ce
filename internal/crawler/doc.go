// Package crawler implements the incremental crawl engine.
//
// # Architecture
//
// An Engine walks one data source per Run. Enumeration, classification and
// container expansion happen on a single goroutine, so the access ledger is
// mutated in enumeration order. Extraction of classified, non-container
// items runs on a bounded worker group; the coordinator blocks when every
// worker is busy, which bounds memory however deeply archives nest.
//
// Containers are expanded through an explicit stack of frames. Each frame
// pulls the children of one container from its sub-crawler, so the depth
// limit and the cancellation check apply the same way at every level, and a
// container's stream is closed before the engine moves on to its next
// sibling.
//
// # Per-item algorithm
//
//  1. Stop if the context is cancelled.
//  2. Classify against the ledger (NEW, CHANGED or UNCHANGED).
//  3. Skip UNCHANGED items unless extraction is forced. The records of an
//     unchanged container's entries are carried forward.
//  4. Identify the content type from a bounded prefix.
//  5. Expand containers through the first supporting sub-crawler, or record
//     a recursion limit error when the item is nested too deep.
//  6. Otherwise try the resolved extractors in order until one succeeds.
//  7. Stage the updated access record.
//
// # Errors
//
// Only an enumeration error wrapping model.ErrSourceFatal ends a run
// (ABORTED). Every other failure is reported through Sink.ItemError and
// counted in the report.
package crawler
