package report

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/nao1215/deltacrawl/internal/crawler"
	"github.com/nao1215/deltacrawl/internal/model"
)

// LogSink logs lifecycle notifications. Changes are logged at Info, visits
// and unchanged items at Debug and item errors at Warn.
type LogSink struct {
	logger *slog.Logger
}

// Ensure LogSink implements crawler.Sink.
var _ crawler.Sink = (*LogSink)(nil)

// NewLogSink creates a LogSink. A nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// ItemVisited implements crawler.Sink.
func (s *LogSink) ItemVisited(item *model.Item) {
	s.logger.Debug("visited", "item", item.ID, "size", item.Size)
}

// ItemNew implements crawler.Sink.
func (s *LogSink) ItemNew(item *model.Item) {
	s.logger.Info("new item", "item", item.ID)
}

// ItemChanged implements crawler.Sink.
func (s *LogSink) ItemChanged(item *model.Item) {
	s.logger.Info("changed item", "item", item.ID, "marker", item.Marker)
}

// ItemUnchanged implements crawler.Sink.
func (s *LogSink) ItemUnchanged(item *model.Item) {
	s.logger.Debug("unchanged item", "item", item.ID)
}

// ItemDeleted implements crawler.Sink.
func (s *LogSink) ItemDeleted(id string) {
	s.logger.Info("deleted item", "item", id)
}

// ItemError implements crawler.Sink.
func (s *LogSink) ItemError(err *model.ItemError) {
	s.logger.Warn("item error", "item", err.ItemID, "kind", string(err.Kind), "error", err.Message)
}

// RunFinished implements crawler.Sink.
func (s *LogSink) RunFinished(report *model.CrawlReport) {
	s.logger.Info("run finished",
		"run_id", report.RunID,
		"status", report.Status.String(),
		"visited", report.Total(),
		"deleted", report.Deleted,
		"errors", report.Errors,
	)
}

// ProgressSink prints one line per change to an io.Writer:
//
//	+ new item
//	~ changed item
//	- deleted item
//	! item error
//
// Unchanged items are printed with "=" only when verbose.
type ProgressSink struct {
	mu      sync.Mutex
	output  io.Writer
	verbose bool
	err     error
}

// Ensure ProgressSink implements crawler.Sink.
var _ crawler.Sink = (*ProgressSink)(nil)

// NewProgressSink creates a ProgressSink writing to output.
func NewProgressSink(output io.Writer, verbose bool) *ProgressSink {
	return &ProgressSink{output: output, verbose: verbose}
}

func (s *ProgressSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.output, format, args...)
}

// Err returns the first write error, if any.
func (s *ProgressSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ItemVisited implements crawler.Sink.
func (s *ProgressSink) ItemVisited(*model.Item) {}

// ItemNew implements crawler.Sink.
func (s *ProgressSink) ItemNew(item *model.Item) {
	s.printf("+ %s\n", item.ID)
}

// ItemChanged implements crawler.Sink.
func (s *ProgressSink) ItemChanged(item *model.Item) {
	s.printf("~ %s\n", item.ID)
}

// ItemUnchanged implements crawler.Sink.
func (s *ProgressSink) ItemUnchanged(item *model.Item) {
	if s.verbose {
		s.printf("= %s\n", item.ID)
	}
}

// ItemDeleted implements crawler.Sink.
func (s *ProgressSink) ItemDeleted(id string) {
	s.printf("- %s\n", id)
}

// ItemError implements crawler.Sink.
func (s *ProgressSink) ItemError(err *model.ItemError) {
	s.printf("! %s (%s): %s\n", err.ItemID, err.Kind, err.Message)
}

// RunFinished implements crawler.Sink.
func (s *ProgressSink) RunFinished(report *model.CrawlReport) {
	s.printf("%s: %d new, %d changed, %d unchanged, %d deleted, %d errors\n",
		report.Status, report.New, report.Changed, report.Unchanged, report.Deleted, report.Errors)
}

// CollectingSink keeps every notification in memory.
type CollectingSink struct {
	mu        sync.Mutex
	visited   []string
	new       []string
	changed   []string
	unchanged []string
	deleted   []string
	errors    []model.ItemError
	report    *model.CrawlReport
}

// Ensure CollectingSink implements crawler.Sink.
var _ crawler.Sink = (*CollectingSink)(nil)

// NewCollectingSink creates an empty CollectingSink.
func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

// ItemVisited implements crawler.Sink.
func (s *CollectingSink) ItemVisited(item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = append(s.visited, item.ID)
}

// ItemNew implements crawler.Sink.
func (s *CollectingSink) ItemNew(item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.new = append(s.new, item.ID)
}

// ItemChanged implements crawler.Sink.
func (s *CollectingSink) ItemChanged(item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = append(s.changed, item.ID)
}

// ItemUnchanged implements crawler.Sink.
func (s *CollectingSink) ItemUnchanged(item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unchanged = append(s.unchanged, item.ID)
}

// ItemDeleted implements crawler.Sink.
func (s *CollectingSink) ItemDeleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
}

// ItemError implements crawler.Sink.
func (s *CollectingSink) ItemError(err *model.ItemError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, *err)
}

// RunFinished implements crawler.Sink.
func (s *CollectingSink) RunFinished(report *model.CrawlReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
}

// Visited returns the identifiers of visited items in notification order.
func (s *CollectingSink) Visited() []string { return s.copyOf(&s.visited) }

// New returns the identifiers classified NEW.
func (s *CollectingSink) New() []string { return s.copyOf(&s.new) }

// Changed returns the identifiers classified CHANGED.
func (s *CollectingSink) Changed() []string { return s.copyOf(&s.changed) }

// Unchanged returns the identifiers classified UNCHANGED.
func (s *CollectingSink) Unchanged() []string { return s.copyOf(&s.unchanged) }

// Deleted returns the identifiers reported deleted.
func (s *CollectingSink) Deleted() []string { return s.copyOf(&s.deleted) }

// Errors returns the reported item errors.
func (s *CollectingSink) Errors() []model.ItemError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ItemError(nil), s.errors...)
}

// Report returns the finished report, or nil while the run is active.
func (s *CollectingSink) Report() *model.CrawlReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func (s *CollectingSink) copyOf(ids *[]string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), (*ids)...)
}
