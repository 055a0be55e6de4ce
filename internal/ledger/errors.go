package ledger

import "errors"

var (
	// ErrRunActive is returned by BeginRun while another run holds the ledger.
	ErrRunActive = errors.New("a crawl run is already active on this ledger")

	// ErrRunFinalized is returned when a finalized or discarded run is used again.
	ErrRunFinalized = errors.New("crawl run already finalized")

	// ErrCorruptLedger is returned when a persisted ledger cannot be decoded.
	ErrCorruptLedger = errors.New("corrupt ledger file")
)
