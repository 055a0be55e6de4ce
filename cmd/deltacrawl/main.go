// Package main provides the entry point for the deltacrawl CLI.
//
// deltacrawl walks directories and web sites, extracts metadata from every
// item it finds (including the entries of archives), and reports what is
// new, changed, unchanged or deleted since the previous run.
//
// Usage:
//
//	deltacrawl crawl <dir|url>...
//	deltacrawl watch <dir>...
//	deltacrawl history [dir|url]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
