// Package subcrawler expands container items into synthetic child items.
//
// Archives (zip, tar) yield one child per regular entry; compressed streams
// (gzip, bzip2, zstd, brotli) yield a single child holding the decompressed
// content; mailboxes yield one child per message. A child's identifier is
// the parent identifier followed by "!/" and the entry path, so nested
// containers produce identifiers such as "file:///a.zip!/b.tar!/c.txt".
//
// Entry content is spooled into memory, bounded by a per-entry limit, so
// every child can be reopened and identified without touching the parent
// stream again.
package subcrawler
