// Package ledger implements the access ledger and the diff algorithm of an
// incremental crawl.
//
// A Ledger maps item identifiers to the marker observed by the previous run
// of one data source. BeginRun opens a working view, Classify compares the
// current marker of every visited item against it, Commit stages the updated
// record, and Finalize computes the deleted identifiers and atomically
// replaces the persisted records with the staged set.
package ledger
