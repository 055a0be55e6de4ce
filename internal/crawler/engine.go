package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/deltacrawl/internal/extractor"
	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/identify"
	"github.com/nao1215/deltacrawl/internal/ledger"
	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/source"
	"github.com/nao1215/deltacrawl/internal/subcrawler"
)

// DefaultMaxDepth is the container nesting depth used by callers that do not
// configure one.
const DefaultMaxDepth = 5

// Engine runs incremental crawls. One Engine runs at most one crawl at a
// time; it may be reused once a run has ended.
type Engine struct {
	// caps holds the extractor, sub-crawler and link registries.
	caps *Capabilities

	// identifier assigns content types.
	identifier *identify.Identifier

	// graph receives extracted statements.
	graph graph.Store

	// logger is used for run and item level logging.
	logger *slog.Logger

	// workers bounds concurrent extractions.
	workers int

	mu    sync.Mutex
	state model.Status
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers sets the number of concurrent extractions.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithIdentifier replaces the default content identifier.
func WithIdentifier(id *identify.Identifier) Option {
	return func(e *Engine) {
		if id != nil {
			e.identifier = id
		}
	}
}

// WithGraphStore sets where extracted statements are written.
func WithGraphStore(store graph.Store) Option {
	return func(e *Engine) {
		if store != nil {
			e.graph = store
		}
	}
}

// New creates an Engine using the given capabilities.
func New(caps *Capabilities, opts ...Option) *Engine {
	if caps == nil {
		caps = NewCapabilities()
	}
	e := &Engine{
		caps:       caps,
		identifier: identify.Default(),
		graph:      graph.NopStore{},
		logger:     slog.Default(),
		workers:    runtime.NumCPU(),
		state:      model.StatusIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capabilities returns the registries the engine consults.
func (e *Engine) Capabilities() *Capabilities {
	return e.caps
}

// State returns the status of the current or last run.
func (e *Engine) State() model.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RunOptions tunes one crawl run.
type RunOptions struct {
	// RunID identifies the run. A random UUID is used when empty.
	RunID string

	// ForceFull classifies every item against an empty ledger view.
	ForceFull bool

	// ForceExtract extracts UNCHANGED items as well.
	ForceExtract bool

	// MaxDepth is the deepest nesting level whose containers are still
	// expanded. Zero disables container expansion.
	MaxDepth int

	// ItemTimeout bounds the extraction of one item. Zero means no limit.
	ItemTimeout time.Duration
}

// Run crawls src once, classifying items against led and reporting to sink.
//
// Cancelling ctx stops the run: enumeration ends, extractions already in
// flight finish, and the report is STOPPED. A stopped run is not an error.
// Run returns an error only when the run could not start or was ABORTED; the
// report is returned in both terminal cases.
func (e *Engine) Run(ctx context.Context, src source.Source, led *ledger.Ledger, sink Sink, opts RunOptions) (*model.CrawlReport, error) {
	if src == nil || led == nil {
		return nil, ErrNilSource
	}
	if led.SourceID() != src.ID() {
		return nil, fmt.Errorf("%w: ledger %s, source %s", ErrSourceMismatch, led.SourceID(), src.ID())
	}
	if sink == nil {
		sink = NopSink{}
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	e.mu.Lock()
	if e.state == model.StatusRunning {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.state = model.StatusRunning
	e.mu.Unlock()

	report := model.NewCrawlReport(opts.RunID, src.ID())
	status := model.StatusAborted
	defer func() {
		e.mu.Lock()
		e.state = status
		e.mu.Unlock()
	}()

	lrun, err := led.BeginRun(ctx, opts.ForceFull)
	if err != nil {
		return nil, err
	}

	report.Start()
	e.logger.Info("crawl started",
		"run_id", opts.RunID,
		"source", src.ID(),
		"full", opts.ForceFull,
		"workers", e.workers,
	)

	r := &runner{
		engine: e,
		ctx:    ctx,
		src:    src,
		run:    lrun,
		report: report,
		sink:   &serialSink{sink: sink},
		opts:   opts,
	}
	r.group.SetLimit(e.workers)

	status, err = r.crawl()
	report.Finalize(status)
	r.sink.finished(report)

	e.logger.Info("crawl finished",
		"run_id", opts.RunID,
		"source", src.ID(),
		"status", status.String(),
		"new", report.New,
		"changed", report.Changed,
		"unchanged", report.Unchanged,
		"deleted", report.Deleted,
		"errors", report.Errors,
		"duration", report.Duration(),
	)
	return report, err
}

// runner holds the state of one run.
type runner struct {
	engine *Engine
	ctx    context.Context
	src    source.Source
	run    *ledger.Run
	report *model.CrawlReport
	sink   *serialSink
	opts   RunOptions

	// group runs extractions; its limit provides back-pressure.
	group errgroup.Group
}

// frame is one level of the enumeration stack: the source itself or one
// expanded container.
type frame struct {
	// parent is the container being expanded, nil for the source frame.
	parent *model.Item

	next func() (*model.Item, error, bool)
	stop func()

	// stream is the parent's content, closed when the frame is popped.
	stream io.Closer

	// failure is the kind of the container-level error, if one occurred.
	failure model.ErrorKind
}

func (f *frame) close() {
	f.stop()
	if f.stream != nil {
		_ = f.stream.Close()
	}
}

func newFrame(parent *model.Item, seq iter.Seq2[*model.Item, error], stream io.Closer) *frame {
	next, stop := iter.Pull2(seq)
	return &frame{parent: parent, next: next, stop: stop, stream: stream}
}

// crawl drives enumeration until the source is exhausted, the context is
// cancelled or the source fails fatally.
func (r *runner) crawl() (model.Status, error) {
	stack := []*frame{newFrame(nil, r.src.Enumerate(r.ctx), nil)}
	closeAll := func() {
		for i := len(stack) - 1; i >= 0; i-- {
			stack[i].close()
		}
		stack = nil
	}

	var fatal error
	for len(stack) > 0 {
		if r.ctx.Err() != nil {
			break
		}

		top := stack[len(stack)-1]
		item, err, ok := top.next()
		if !ok {
			stack = stack[:len(stack)-1]
			top.close()
			if top.parent != nil && r.ctx.Err() == nil && top.failure != model.ErrorKindAccess {
				r.run.Commit(top.parent.ID, top.parent.Marker)
			}
			continue
		}

		if err != nil {
			if r.ctx.Err() != nil {
				break
			}
			if errors.Is(err, model.ErrSourceFatal) {
				fatal = err
				break
			}
			ie := itemErrorOf(top, err)
			if top.parent != nil && ie.ItemID == top.parent.ID {
				top.failure = ie.Kind
			}
			// The item exists but could not be read: keep its records.
			if ie.Kind == model.ErrorKindAccess && ie.ItemID != "" {
				r.run.Keep(ie.ItemID, ie.Subtree)
			}
			r.record(ie)
			continue
		}

		if child := r.visit(item); child != nil {
			stack = append(stack, child)
		}
	}
	closeAll()

	// In-flight extractions always complete so their records are staged.
	_ = r.group.Wait()

	if fatal != nil {
		r.run.Discard()
		r.report.SetFatal(fatal)
		r.engine.logger.Error("crawl aborted", "source", r.src.ID(), "error", fatal)
		return model.StatusAborted, fmt.Errorf("crawl of %s aborted: %w", r.src.ID(), fatal)
	}

	complete := r.ctx.Err() == nil
	finalizeCtx := context.WithoutCancel(r.ctx)
	deleted, err := r.run.Finalize(finalizeCtx, complete)
	if err != nil {
		r.run.Discard()
		r.report.SetFatal(err)
		return model.StatusAborted, err
	}

	for _, id := range deleted {
		r.report.Count(model.ClassDeleted)
		r.sink.deleted(id)
		if err := r.engine.graph.Remove(finalizeCtx, id); err != nil {
			r.engine.logger.Warn("failed to remove statements", "item", id, "error", err)
		}
	}

	if !complete {
		return model.StatusStopped, nil
	}
	return model.StatusCompleted, nil
}

// visit runs the per-item algorithm. It returns a frame when item is a
// container to expand.
func (r *runner) visit(item *model.Item) *frame {
	class := r.run.Classify(item)
	r.report.Count(class)
	r.sink.classified(item, class)
	r.engine.logger.Debug("item visited", "item", item.ID, "class", class.String())

	if class == model.ClassUnchanged && !r.opts.ForceExtract {
		if n := r.run.Retain(item.ID); n > 0 {
			r.report.CountN(model.ClassUnchanged, n)
			r.engine.logger.Debug("container entries retained", "item", item.ID, "entries", n)
		}
		r.run.Commit(item.ID, item.Marker)
		return nil
	}

	stream, err := r.open(item)
	if err != nil {
		r.fail(item.ID, accessErr(err))
		return nil
	}

	ct, err := r.engine.identifier.IdentifyStream(stream, item.Name)
	if err != nil {
		_ = stream.Close()
		r.fail(item.ID, accessErr(err))
		return nil
	}
	if ct.IsUnknown() && !item.DeclaredType.IsUnknown() {
		ct = item.DeclaredType
	}
	item.SetContentType(ct)

	if sub := r.engine.caps.subCrawlerFor(ct); sub != nil {
		return r.expand(item, sub, stream)
	}

	extractors := r.engine.caps.extractorsFor(ct)
	if len(extractors) == 0 {
		_ = stream.Close()
		r.fail(item.ID, fmt.Errorf("%w: %s", model.ErrNoProvider, ct))
		r.run.Commit(item.ID, item.Marker)
		return nil
	}

	r.group.Go(func() error {
		r.extract(item, stream, extractors)
		return nil
	})
	return nil
}

// expand opens a frame over the children of a container, or records a
// recursion limit error when item is nested too deep.
func (r *runner) expand(item *model.Item, sub subcrawler.SubCrawler, stream io.ReadSeekCloser) *frame {
	if item.Depth() >= r.opts.MaxDepth {
		_ = stream.Close()
		r.fail(item.ID, fmt.Errorf("%w: %s at depth %d (max %d)",
			model.ErrRecursionLimit, item.ID, item.Depth(), r.opts.MaxDepth))
		r.run.Commit(item.ID, item.Marker)
		return nil
	}
	if r.ctx.Err() != nil {
		_ = stream.Close()
		return nil
	}

	r.engine.logger.Debug("expanding container", "item", item.ID, "crawler", sub.Name(), "depth", item.Depth())
	r.engine.putFragment(r.ctx, containerFragment(item, sub.Name()))
	return newFrame(item, sub.Open(r.ctx, item, stream), stream)
}

// extract tries extractors in order until one succeeds. It runs on the worker
// group and always closes stream.
func (r *runner) extract(item *model.Item, stream io.ReadSeekCloser, extractors []extractor.Extractor) {
	defer stream.Close()

	// Items queued before a stop are left for the next run.
	if r.ctx.Err() != nil {
		return
	}

	ctx := context.WithoutCancel(r.ctx)
	if r.opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.ItemTimeout)
		defer cancel()
	}

	errs := make([]error, 0, len(extractors))
	transient := true
	for _, ex := range extractors {
		if _, err := stream.Seek(0, io.SeekStart); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ex.Name(), accessErr(err)))
			continue
		}

		fragment, err := ex.Extract(ctx, item, stream)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ex.Name(), err))
			if !isTransient(err) {
				transient = false
			}
			r.engine.logger.Debug("extractor failed", "item", item.ID, "extractor", ex.Name(), "error", err)
			continue
		}

		if fragment == nil {
			fragment = graph.NewFragment(item.ID)
		}
		annotate(fragment, item, ex.Name())
		if err := r.engine.graph.Put(ctx, fragment); err != nil {
			r.fail(item.ID, fmt.Errorf("%w: failed to store statements: %w", model.ErrAccess, err))
			return
		}
		r.run.Commit(item.ID, item.Marker)
		return
	}

	joined := errors.Join(errs...)
	if transient {
		r.fail(item.ID, fmt.Errorf("%w: %w", model.ErrAccess, joined))
		return
	}
	r.fail(item.ID, fmt.Errorf("%w: %w", model.ErrExtraction, joined))
	r.run.Commit(item.ID, item.Marker)
}

// open returns the item's content stream, falling back to the source.
func (r *runner) open(item *model.Item) (io.ReadSeekCloser, error) {
	if item.HasContent() {
		return item.Open(r.ctx)
	}
	return r.src.Open(r.ctx, item)
}

// fail records a per-item error.
func (r *runner) fail(id string, err error) {
	r.record(model.NewItemError(id, err))
}

func (r *runner) record(ie *model.ItemError) {
	r.report.AddError(ie)
	r.sink.itemError(ie)
	r.engine.logger.Warn("item failed", "item", ie.ItemID, "kind", string(ie.Kind), "error", ie.Message)
}

func (e *Engine) putFragment(ctx context.Context, f *graph.Fragment) {
	if err := e.graph.Put(ctx, f); err != nil {
		e.logger.Warn("failed to store statements", "item", f.Subject, "error", err)
	}
}

// itemErrorOf converts an enumeration error into an ItemError.
func itemErrorOf(f *frame, err error) *model.ItemError {
	var ie *model.ItemError
	if errors.As(err, &ie) {
		return ie
	}
	id := ""
	if f.parent != nil {
		id = f.parent.ID
	}
	return model.NewItemError(id, err)
}

// accessErr tags err as an access error unless it already has a kind.
func accessErr(err error) error {
	if errors.Is(err, model.ErrAccess) || errors.Is(err, model.ErrExtraction) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrAccess, err)
}

// isTransient reports whether a failure may succeed on a later run.
func isTransient(err error) bool {
	if errors.Is(err, model.ErrExtraction) {
		return false
	}
	return errors.Is(err, model.ErrAccess) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// annotate adds the engine-level statements to an extractor's fragment.
func annotate(f *graph.Fragment, item *model.Item, extractorName string) {
	f.Add(graph.PredicateContentType, item.ContentType.String())
	f.Add(graph.PredicateExtractor, extractorName)
	if n := len(item.Container); n > 0 {
		f.Add(graph.PredicateContainedIn, item.Container[n-1])
	}
}

// containerFragment describes a container the engine expands.
func containerFragment(item *model.Item, crawlerName string) *graph.Fragment {
	f := graph.NewFragment(item.ID)
	f.Add(graph.PredicateName, item.Name)
	annotate(f, item, crawlerName)
	return f
}
