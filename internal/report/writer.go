package report

import (
	"io"

	"github.com/nao1215/deltacrawl/internal/model"
)

// Writer renders crawl reports.
type Writer interface {
	// Write renders one run. It returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)

	// WriteHistory renders a list of runs, newest first.
	WriteHistory(reports []*model.CrawlReport) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is used for every rendered timestamp.
const timeLayout = "2006-01-02 15:04:05 MST"

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
