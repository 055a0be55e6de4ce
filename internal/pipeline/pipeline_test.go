package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/deltacrawl/internal/model"
)

// recorder returns a step that appends its name to calls.
func recorder(name string, calls *[]string, err error) Step {
	return NewStepFunc(name, func(context.Context, *model.CrawlReport) error {
		*calls = append(*calls, name)
		return err
	})
}

func testReport() *model.CrawlReport {
	r := model.NewCrawlReport("run-1", "file:///data")
	r.Start()
	r.Count(model.ClassNew)
	r.Finalize(model.StatusCompleted)
	return r
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		p := New()
		if p.logger == nil {
			t.Error("logger should default to slog.Default")
		}
		if p.continueOnError {
			t.Error("continueOnError should default to false")
		}
		if p.StepCount() != 0 {
			t.Errorf("StepCount() = %d, want 0", p.StepCount())
		}
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()
		logger := slog.New(slog.DiscardHandler)
		p := New(WithLogger(logger), WithContinueOnError(true))
		if p.logger != logger {
			t.Error("custom logger not applied")
		}
		if !p.continueOnError {
			t.Error("continueOnError not applied")
		}
	})
}

func TestPipelineSteps(t *testing.T) {
	t.Parallel()

	var calls []string
	p := New()
	p.AddStep(recorder("first", &calls, nil))
	p.AddSteps(recorder("second", &calls, nil), recorder("third", &calls, nil))

	want := []string{"first", "second", "third"}
	if got := p.StepNames(); !slices.Equal(got, want) {
		t.Errorf("StepNames() = %v, want %v", got, want)
	}
	if err := p.Execute(t.Context(), testReport()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestPipelineErrors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	errBang := errors.New("bang")

	tests := []struct {
		name            string
		continueOnError bool
		wantCalls       []string
	}{
		{
			name:            "stop at first failure",
			continueOnError: false,
			wantCalls:       []string{"a", "b"},
		},
		{
			name:            "continue after failure",
			continueOnError: true,
			wantCalls:       []string{"a", "b", "c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls []string
			p := New(
				WithLogger(slog.New(slog.DiscardHandler)),
				WithContinueOnError(tt.continueOnError),
			)
			p.AddSteps(
				recorder("a", &calls, nil),
				recorder("b", &calls, errBoom),
				recorder("c", &calls, nil),
				recorder("d", &calls, errBang),
			)

			err := p.Execute(t.Context(), testReport())
			if !errors.Is(err, errBoom) {
				t.Errorf("Execute() error = %v, want %v", err, errBoom)
			}
			if tt.continueOnError != errors.Is(err, errBang) {
				t.Errorf("errors.Is(err, errBang) = %v, want %v", !tt.continueOnError, tt.continueOnError)
			}
			if !strings.Contains(err.Error(), "b: boom") {
				t.Errorf("error %q should name the failing step", err)
			}
			if !slices.Equal(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
		})
	}
}

func TestPipelineCancellation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(t.Context())

	var calls []string
	p := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	p.AddSteps(
		NewStepFunc("cancel", func(context.Context, *model.CrawlReport) error {
			calls = append(calls, "cancel")
			cancel()
			return nil
		}),
		recorder("never", &calls, nil),
	)

	err := p.Execute(ctx, testReport())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
	if !slices.Equal(calls, []string{"cancel"}) {
		t.Errorf("calls = %v, want [cancel]", calls)
	}
	if !strings.Contains(buf.String(), "pipeline cancelled") {
		t.Errorf("log output %q should mention the cancellation", buf.String())
	}
}
