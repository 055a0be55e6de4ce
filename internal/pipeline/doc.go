// Package pipeline runs crawls and the steps that follow them.
//
// A Pipeline executes post-run steps (persist the report, render it) on a
// finished model.CrawlReport. A BatchProcessor crawls several sources
// concurrently, each with its own engine and ledger, and runs a fresh
// pipeline on every report.
package pipeline
