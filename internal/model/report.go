package model

import (
	"sync"
	"time"
)

// MaxReportedErrors bounds the number of ItemError entries kept in a report.
// The Errors counter keeps counting past the bound.
const MaxReportedErrors = 1000

// CrawlReport holds the counters and terminal status of one crawl run.
//
// A report is created at crawl start with all counters zero and the status
// IDLE, mutated only by the crawl engine, and finalized exactly once when the
// run ends. The mutex guards the counters because extraction runs on a
// bounded worker pool.
type CrawlReport struct {
	// RunID uniquely identifies the crawl run.
	RunID string `json:"run_id"`

	// Source identifies the crawled data source.
	Source string `json:"source"`

	// StartedAt is when the run entered RUNNING.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the terminal status was set.
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// New counts items without a previous access record.
	New int `json:"new"`

	// Changed counts items whose marker differs from the stored one.
	Changed int `json:"changed"`

	// Unchanged counts items whose marker equals the stored one.
	Unchanged int `json:"unchanged"`

	// Deleted counts previously recorded items not visited by a complete run.
	Deleted int `json:"deleted"`

	// Errors counts per-item errors. Items with errors are still counted
	// in the classification counters.
	Errors int `json:"errors"`

	// Status is the run state; terminal once Finalize succeeded.
	Status Status `json:"status"`

	// Fatal holds the message of the error that aborted the run, if any.
	Fatal string `json:"fatal,omitempty"`

	// ItemErrors holds up to MaxReportedErrors per-item failures.
	ItemErrors []ItemError `json:"item_errors,omitempty"`

	mu        sync.Mutex
	finalized bool
}

// NewCrawlReport creates an empty report for the given run and source.
func NewCrawlReport(runID, source string) *CrawlReport {
	return &CrawlReport{
		RunID:      runID,
		Source:     source,
		Status:     StatusIdle,
		ItemErrors: make([]ItemError, 0),
	}
}

// Start moves the report into RUNNING and records the start time.
func (r *CrawlReport) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = StatusRunning
	r.StartedAt = time.Now()
}

// Count increments the counter matching the classification.
func (r *CrawlReport) Count(c Classification) {
	r.CountN(c, 1)
}

// CountN adds n to the counter matching the classification.
func (r *CrawlReport) CountN(c Classification, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch c {
	case ClassNew:
		r.New += n
	case ClassChanged:
		r.Changed += n
	case ClassUnchanged:
		r.Unchanged += n
	case ClassDeleted:
		r.Deleted += n
	}
}

// AddError records a per-item error.
func (r *CrawlReport) AddError(e *ItemError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors++
	if len(r.ItemErrors) < MaxReportedErrors {
		r.ItemErrors = append(r.ItemErrors, *e)
	}
}

// Finalize sets the terminal status. Only the first call has an effect;
// it returns false when the report was already finalized or the status is
// not terminal.
func (r *CrawlReport) Finalize(status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || !status.IsTerminal() {
		return false
	}
	r.finalized = true
	r.Status = status
	r.FinishedAt = time.Now()
	return true
}

// IsFinalized reports whether a terminal status has been set.
func (r *CrawlReport) IsFinalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}

// Total returns the number of visited items (new + changed + unchanged).
func (r *CrawlReport) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.New + r.Changed + r.Unchanged
}

// Duration returns the elapsed run time, or zero while the run is active.
func (r *CrawlReport) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Snapshot returns a copy of the report that is safe to read without locking.
func (r *CrawlReport) Snapshot() *CrawlReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := &CrawlReport{
		RunID:      r.RunID,
		Source:     r.Source,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		New:        r.New,
		Changed:    r.Changed,
		Unchanged:  r.Unchanged,
		Deleted:    r.Deleted,
		Errors:     r.Errors,
		Status:     r.Status,
		Fatal:      r.Fatal,
		ItemErrors: append([]ItemError(nil), r.ItemErrors...),
		finalized:  r.finalized,
	}
	return cp
}

// SetFatal records the message of the error that aborted the run.
func (r *CrawlReport) SetFatal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.Fatal = err.Error()
	}
}
