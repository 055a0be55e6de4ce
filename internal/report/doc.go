// Package report renders crawl reports and provides the reporting sinks the
// crawl engine notifies while a run is active.
//
// Writers render a finished model.CrawlReport (or a run history) in one of
// three formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown with a mermaid chart
//
// Sinks implement crawler.Sink:
//   - LogSink logs lifecycle notifications through slog
//   - ProgressSink prints one line per change to an io.Writer
//   - CollectingSink keeps every notification in memory
package report
