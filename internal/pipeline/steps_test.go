package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/report"
)

type fakeSaver struct {
	saved []*model.CrawlReport
	err   error
}

func (f *fakeSaver) SaveCrawlReport(_ context.Context, r *model.CrawlReport) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, r)
	return nil
}

func TestSaveReportStep(t *testing.T) {
	t.Parallel()

	t.Run("saves", func(t *testing.T) {
		t.Parallel()
		saver := &fakeSaver{}
		step := NewSaveReportStep(saver, nil)
		if step.Name() != "save-report" {
			t.Errorf("Name() = %q", step.Name())
		}
		r := testReport()
		if err := step.Do(t.Context(), r); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(saver.saved) != 1 || saver.saved[0] != r {
			t.Errorf("saved = %v, want the report", saver.saved)
		}
	})

	t.Run("wraps errors", func(t *testing.T) {
		t.Parallel()
		errDisk := errors.New("disk full")
		step := NewSaveReportStep(&fakeSaver{err: errDisk}, nil)
		err := step.Do(t.Context(), testReport())
		if !errors.Is(err, errDisk) {
			t.Fatalf("Do() error = %v, want %v", err, errDisk)
		}
		if !strings.Contains(err.Error(), "run-1") {
			t.Errorf("error %q should name the run", err)
		}
	})
}

func TestWriteReportStep(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	step := NewWriteReportStep(report.NewSimpleWriter(&buf))
	if step.Name() != "write-report" {
		t.Errorf("Name() = %q", step.Name())
	}
	if err := step.Do(t.Context(), testReport()); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !strings.Contains(buf.String(), "DELTACRAWL REPORT") {
		t.Errorf("output %q should contain the report header", buf.String())
	}
}

func TestFailOnStatusStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  model.Status
		wantErr bool
	}{
		{name: "completed", status: model.StatusCompleted, wantErr: false},
		{name: "stopped", status: model.StatusStopped, wantErr: false},
		{name: "aborted", status: model.StatusAborted, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := model.NewCrawlReport("run", "src")
			r.Start()
			if tt.status == model.StatusAborted {
				r.SetFatal(errors.New("source vanished"))
			}
			r.Finalize(tt.status)

			err := FailOnStatusStep{}.Do(t.Context(), r)
			if tt.wantErr != errors.Is(err, ErrRunFailed) {
				t.Errorf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), "source vanished") {
				t.Errorf("error %q should carry the fatal message", err)
			}
		})
	}
}
