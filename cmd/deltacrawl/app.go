package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/deltacrawl/internal/config"
	"github.com/nao1215/deltacrawl/internal/crawler"
	"github.com/nao1215/deltacrawl/internal/database"
	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/ledger"
	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/pipeline"
	"github.com/nao1215/deltacrawl/internal/report"
	"github.com/nao1215/deltacrawl/internal/source"
	"github.com/nao1215/deltacrawl/internal/subcrawler"
)

// app holds what every crawl of one command invocation shares: the
// provider registries, the stores and the report output.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	caps   *crawler.Capabilities

	ledgers ledger.Store
	graph   graph.Store

	// db is nil unless the sqlite backend is used.
	db *database.CrawlDB

	writer   report.Writer
	progress crawler.Sink
	closers  []io.Closer
}

// newApp opens the stores and the report output selected by cfg.
func newApp(cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) (*app, error) {
	caps, err := crawler.DefaultCapabilities(subcrawler.WithMaxEntrySize(cfg.MaxEntrySize))
	if err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		caps:   caps,
	}

	switch cfg.LedgerBackend {
	case config.LedgerSQLite:
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.db = db
		a.ledgers = db
		a.graph = db
		a.closers = append(a.closers, db)
		logger.Debug("database opened", "path", db.Path())
	case config.LedgerFile:
		a.ledgers = ledger.NewFileStore(cfg.LedgerDir())
		a.graph = graph.NopStore{}
	default:
		a.ledgers = ledger.NewMemoryStore()
		a.graph = graph.NewMemoryStore()
	}

	output := stdout
	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, f)
		output = f
	}
	a.writer = &lockedWriter{w: newReportWriter(cfg, output)}

	a.progress = crawler.NopSink{}
	if !cfg.Quiet {
		a.progress = report.NewProgressSink(stderr, cfg.Verbose)
	}
	return a, nil
}

// Close releases the database and the report file.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// crawl runs one crawl of every raw target and returns the results in
// target order.
func (a *app) crawl(ctx context.Context, raw []string) ([]pipeline.Result, error) {
	targets := make([]pipeline.Target, 0, len(raw))
	seen := make(map[string]string, len(raw))
	for _, t := range raw {
		target, err := a.target(t)
		if err != nil {
			return nil, err
		}
		id := target.Source.ID()
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("%q and %q name the same source %s", prev, t, id)
		}
		seen[id] = t
		targets = append(targets, target)
	}

	bp := pipeline.NewBatchProcessor(
		a.newEngine,
		a.newPipeline,
		pipeline.WithConcurrency(a.cfg.Concurrency),
		pipeline.WithBatchLogger(a.logger),
	)
	return bp.ProcessBatch(ctx, targets), nil
}

// target builds the source, ledger and run options for one raw target.
func (a *app) target(raw string) (pipeline.Target, error) {
	// The source ID is a lookup key for per-source settings, so a first
	// source is built with the global settings only.
	base, err := newSource(a.cfg, config.SourceConfig{}, raw, a.caps.Links)
	if err != nil {
		return pipeline.Target{}, err
	}
	cfg, sc := a.cfg.ForSource(raw, base.ID())
	src, err := newSource(cfg, sc, raw, a.caps.Links)
	if err != nil {
		return pipeline.Target{}, err
	}

	return pipeline.Target{
		Source: src,
		Ledger: ledger.New(a.ledgers, src.ID()),
		Sink:   crawler.MultiSink{report.NewLogSink(a.logger), a.progress},
		Options: crawler.RunOptions{
			ForceFull:    cfg.ForceFull,
			ForceExtract: cfg.ForceExtract,
			MaxDepth:     cfg.MaxDepth,
			ItemTimeout:  cfg.ItemTimeout,
		},
	}, nil
}

func (a *app) newEngine() *crawler.Engine {
	return crawler.New(a.caps,
		crawler.WithLogger(a.logger),
		crawler.WithWorkers(a.cfg.Workers),
		crawler.WithGraphStore(a.graph),
	)
}

func (a *app) newPipeline() *pipeline.Pipeline {
	p := pipeline.New(
		pipeline.WithLogger(a.logger),
		pipeline.WithContinueOnError(true),
	)
	if a.db != nil {
		p.AddStep(pipeline.NewSaveReportStep(a.db, a.logger))
	}
	p.AddSteps(
		pipeline.NewWriteReportStep(a.writer),
		pipeline.FailOnStatusStep{},
	)
	return p
}

// failures joins the errors of failed results.
func failures(results []pipeline.Result) error {
	failed := pipeline.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, r := range failed {
		errs = append(errs, r.Err)
	}
	return fmt.Errorf("%d of %d sources failed: %w", len(failed), len(results), errors.Join(errs...))
}

// isURL reports whether target names an http(s) source.
func isURL(target string) bool {
	u, err := url.Parse(target)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// newSource creates the source for target: an HTTPSource for http(s) URLs,
// an FSSource otherwise.
func newSource(cfg *config.Config, sc config.SourceConfig, target string, links source.LinkResolver) (source.Source, error) {
	if isURL(target) {
		opts := []source.HTTPOption{
			source.WithLinkExtractors(links),
			source.WithMaxDepth(cfg.HTTPDepth),
			source.WithMaxPages(cfg.MaxPages),
			source.WithMaxBodySize(cfg.MaxBodySize),
			source.WithUserAgent(cfg.UserAgent),
			source.WithTimeout(cfg.Timeout),
			source.WithHTTPIgnorePatterns(sc.IgnorePatterns),
			source.WithFollowPatterns(sc.FollowPatterns),
		}
		if cfg.CrawlDelay > 0 {
			opts = append(opts, source.WithRateLimit(1, cfg.CrawlDelay))
		}
		if cfg.ProxyAddress != "" {
			opts = append(opts, source.WithProxy(cfg.ProxyAddress))
		}
		return source.NewHTTPSource(target, opts...)
	}
	return source.NewFSSource(target,
		source.WithMarkerMode(source.MarkerMode(cfg.MarkerMode)),
		source.WithFSIgnorePatterns(sc.IgnorePatterns),
		source.WithHidden(cfg.IncludeHidden),
	)
}

// sourceID returns the ledger key of target without crawling it.
func sourceID(target string) (string, error) {
	src, err := newSource(config.NewConfig(), config.SourceConfig{}, target, nil)
	if err != nil {
		return "", err
	}
	return src.ID(), nil
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// createReportFile creates the report file and its parent directories.
// Reports may name private paths, so the file is readable by the owner only.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// lockedWriter serializes reports of sources crawled concurrently.
type lockedWriter struct {
	mu sync.Mutex
	w  report.Writer
}

func (l *lockedWriter) Write(r *model.CrawlReport) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(r)
}

func (l *lockedWriter) WriteHistory(reports []*model.CrawlReport) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.WriteHistory(reports)
}
