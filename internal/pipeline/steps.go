package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/report"
)

// ErrRunFailed is returned by FailOnStatusStep for aborted runs.
var ErrRunFailed = errors.New("crawl run aborted")

// ReportSaver persists finished reports. database.CrawlDB implements it.
type ReportSaver interface {
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) error
}

// SaveReportStep stores the report for run history.
type SaveReportStep struct {
	saver  ReportSaver
	logger *slog.Logger
}

// Ensure SaveReportStep implements Step.
var _ Step = (*SaveReportStep)(nil)

// NewSaveReportStep creates a step that stores reports through saver.
func NewSaveReportStep(saver ReportSaver, logger *slog.Logger) *SaveReportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveReportStep{saver: saver, logger: logger}
}

// Name returns the step name.
func (s *SaveReportStep) Name() string {
	return "save-report"
}

// Do stores the report.
func (s *SaveReportStep) Do(ctx context.Context, r *model.CrawlReport) error {
	if err := s.saver.SaveCrawlReport(ctx, r); err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.RunID, err)
	}
	s.logger.Debug("report saved", "run_id", r.RunID, "source", r.Source)
	return nil
}

// WriteReportStep renders the report with a report.Writer.
type WriteReportStep struct {
	writer report.Writer
}

// Ensure WriteReportStep implements Step.
var _ Step = (*WriteReportStep)(nil)

// NewWriteReportStep creates a step that renders reports with writer.
func NewWriteReportStep(writer report.Writer) *WriteReportStep {
	return &WriteReportStep{writer: writer}
}

// Name returns the step name.
func (s *WriteReportStep) Name() string {
	return "write-report"
}

// Do renders the report.
func (s *WriteReportStep) Do(_ context.Context, r *model.CrawlReport) error {
	if _, err := s.writer.Write(r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// FailOnStatusStep turns an aborted run into a step error, so a batch can
// report which sources failed. It is usually the last step.
type FailOnStatusStep struct{}

// Ensure FailOnStatusStep implements Step.
var _ Step = FailOnStatusStep{}

// Name returns the step name.
func (FailOnStatusStep) Name() string {
	return "check-status"
}

// Do fails for ABORTED reports.
func (FailOnStatusStep) Do(_ context.Context, r *model.CrawlReport) error {
	if r.Status == model.StatusAborted {
		return fmt.Errorf("%w: %s: %s", ErrRunFailed, r.Source, r.Fatal)
	}
	return nil
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	name string
	fn   func(ctx context.Context, report *model.CrawlReport) error
}

// Ensure StepFunc implements Step.
var _ Step = (*StepFunc)(nil)

// NewStepFunc creates a named step from fn.
func NewStepFunc(name string, fn func(ctx context.Context, report *model.CrawlReport) error) *StepFunc {
	return &StepFunc{name: name, fn: fn}
}

// Name returns the step name.
func (s *StepFunc) Name() string {
	return s.name
}

// Do calls the wrapped function.
func (s *StepFunc) Do(ctx context.Context, r *model.CrawlReport) error {
	return s.fn(ctx, r)
}
