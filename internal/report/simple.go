package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/deltacrawl/internal/model"
)

// defaultErrorLimit is the number of item errors SimpleWriter lists when
// verbose output is off.
const defaultErrorLimit = 10

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every recorded item error instead of the first few.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	report = report.Snapshot()
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeErrors(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteHistory outputs one line per run.
func (w *SimpleWriter) WriteHistory(reports []*model.CrawlReport) (int, error) {
	var sb strings.Builder
	if len(reports) == 0 {
		sb.WriteString("No crawl runs recorded.\n")
		return io.WriteString(w.output, sb.String())
	}

	fmt.Fprintf(&sb, "%-23s  %-9s  %6s  %7s  %9s  %7s  %6s  %s\n",
		"STARTED", "STATUS", "NEW", "CHANGED", "UNCHANGED", "DELETED", "ERRORS", "SOURCE")
	for _, r := range reports {
		r = r.Snapshot()
		fmt.Fprintf(&sb, "%-23s  %-9s  %6d  %7d  %9d  %7d  %6d  %s\n",
			r.StartedAt.Format(timeLayout), r.Status, r.New, r.Changed, r.Unchanged, r.Deleted, r.Errors, r.Source)
	}
	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         DELTACRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Source:    %s\n", report.Source)
	fmt.Fprintf(sb, "Run ID:    %s\n", report.RunID)
	if !report.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:   %s\n", report.StartedAt.Format(timeLayout))
	}
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:  %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Status:    %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the change counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CHANGE SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  NEW:       %d\n", report.New)
	fmt.Fprintf(sb, "  CHANGED:   %d\n", report.Changed)
	fmt.Fprintf(sb, "  UNCHANGED: %d\n", report.Unchanged)
	fmt.Fprintf(sb, "  DELETED:   %d\n", report.Deleted)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  VISITED:   %d items\n", report.Total())
	fmt.Fprintf(sb, "  ERRORS:    %d\n", report.Errors)
	sb.WriteString("\n")
}

// writeErrors lists item errors.
func (w *SimpleWriter) writeErrors(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.ItemErrors) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ERRORS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	shown := report.ItemErrors
	if !w.verbose && len(shown) > defaultErrorLimit {
		shown = shown[:defaultErrorLimit]
	}
	for _, e := range shown {
		fmt.Fprintf(sb, "  [%s] %s\n", e.Kind, e.ItemID)
		if w.verbose {
			fmt.Fprintf(sb, "    %s\n", e.Message)
		}
	}
	if hidden := report.Errors - len(shown); hidden > 0 {
		fmt.Fprintf(sb, "  ... and %d more\n", hidden)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// statusText describes the terminal status of a run.
func statusText(report *model.CrawlReport) string {
	switch report.Status {
	case model.StatusStopped:
		return "STOPPED (partial results, deletions not detected)"
	case model.StatusAborted:
		if report.Fatal != "" {
			return "ABORTED - " + report.Fatal
		}
		return "ABORTED"
	default:
		return report.Status.String()
	}
}
