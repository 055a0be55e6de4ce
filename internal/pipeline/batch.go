package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/deltacrawl/internal/crawler"
	"github.com/nao1215/deltacrawl/internal/ledger"
	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/source"
)

// DefaultConcurrency is the number of sources crawled at once.
const DefaultConcurrency = 4

// Target is one source to crawl in a batch.
type Target struct {
	// Source is the data source to enumerate.
	Source source.Source

	// Ledger holds the source's access records. Its source ID must match.
	Ledger *ledger.Ledger

	// Sink receives the run's notifications. Nil means crawler.NopSink.
	Sink crawler.Sink

	// Options are passed to Engine.Run unchanged.
	Options crawler.RunOptions
}

// Result is the outcome of crawling one Target.
type Result struct {
	// Index is the target's position in the batch.
	Index int

	// Report is nil only when the run could not start.
	Report *model.CrawlReport

	// Err joins the run error and the pipeline error.
	Err error
}

// BatchProcessor crawls several sources concurrently. Each target gets its
// own engine, because an engine runs one crawl at a time, and a fresh
// pipeline for the post-run steps.
type BatchProcessor struct {
	// engineFactory creates the engine for one target.
	engineFactory func() *crawler.Engine

	// pipelineFactory creates the post-run pipeline for one target.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep DefaultConcurrency.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. A nil pipelineFactory
// runs no post-run steps.
func NewBatchProcessor(engineFactory func() *crawler.Engine, pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		engineFactory:   engineFactory,
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	if bp.pipelineFactory == nil {
		bp.pipelineFactory = func() *Pipeline { return New(WithLogger(bp.logger)) }
	}
	return bp
}

// ProcessBatch crawls every target and returns the results in target order.
// A failing target does not cancel the others; cancelling ctx stops every
// running crawl, and the stopped reports still go through the pipeline.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	bp.ProcessBatchWithCallback(ctx, targets, func(r Result) {
		results[r.Index] = r
	})
	return results
}

// ProcessBatchWithCallback crawls every target and calls callback as each
// one finishes. Calls to callback are not serialized.
func (bp *BatchProcessor) ProcessBatchWithCallback(ctx context.Context, targets []Target, callback func(Result)) {
	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	start := time.Now()
	bp.logger.Info("starting batch crawl",
		"targets", len(targets),
		"concurrency", bp.concurrency,
	)

	for i, target := range targets {
		g.Go(func() error {
			callback(bp.process(ctx, i, target))
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // process never returns errors to the group

	bp.logger.Info("batch crawl completed",
		"targets", len(targets),
		"duration", time.Since(start),
	)
}

// process crawls one target and runs the pipeline on its report.
func (bp *BatchProcessor) process(ctx context.Context, index int, target Target) Result {
	result := Result{Index: index}
	sink := target.Sink
	if sink == nil {
		sink = crawler.NopSink{}
	}

	report, err := bp.engineFactory().Run(ctx, target.Source, target.Ledger, sink, target.Options)
	result.Report = report
	if report == nil {
		bp.logger.Error("crawl did not start", "index", index, "error", err)
		result.Err = err
		return result
	}

	// The report of a stopped run is still saved and rendered.
	perr := bp.pipelineFactory().Execute(context.WithoutCancel(ctx), report)
	result.Err = errors.Join(err, perr)
	if result.Err != nil {
		bp.logger.Warn("crawl finished with errors",
			"source", report.Source,
			"status", report.Status,
			"error", result.Err,
		)
	}
	return result
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	failed := make([]Result, 0)
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
