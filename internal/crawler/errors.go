package crawler

import "errors"

var (
	// ErrAlreadyRunning is returned when Run is called while another run is active.
	ErrAlreadyRunning = errors.New("crawl engine is already running")

	// ErrSourceMismatch is returned when the ledger belongs to another source.
	ErrSourceMismatch = errors.New("ledger does not belong to the data source")

	// ErrNilSource is returned when Run is called without a source or ledger.
	ErrNilSource = errors.New("source and ledger are required")
)
