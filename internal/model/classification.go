package model

import "fmt"

// Classification is the per-run verdict for one item, derived by comparing
// the item's marker against the access ledger. It is never persisted; only
// the resulting access record is.
type Classification int

const (
	// ClassNew means the ledger holds no record for the item.
	ClassNew Classification = iota

	// ClassChanged means the stored marker differs from the current one.
	ClassChanged

	// ClassUnchanged means the stored marker equals the current one.
	ClassUnchanged

	// ClassDeleted means the item was recorded by the previous run but was
	// not visited by a run that finished enumeration.
	ClassDeleted
)

// String returns the upper-case name of the classification.
func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "NEW"
	case ClassChanged:
		return "CHANGED"
	case ClassUnchanged:
		return "UNCHANGED"
	case ClassDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// Status is the state of a crawl run.
// IDLE is initial, RUNNING is entered on start, and the remaining states are terminal.
type Status int

const (
	// StatusIdle is the state before a run starts.
	StatusIdle Status = iota

	// StatusRunning is the state while items are enumerated and processed.
	StatusRunning

	// StatusCompleted means enumeration finished naturally.
	StatusCompleted

	// StatusStopped means the run was cancelled. Counts are partial.
	StatusStopped

	// StatusAborted means an unrecoverable condition, such as the root of
	// the data source becoming inaccessible, ended the run.
	StatusAborted
)

// String returns the upper-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusStopped:
		return "STOPPED"
	case StatusAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the status ends a run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusAborted
}

// MarshalText encodes the status by name so that reports stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{StatusIdle, StatusRunning, StatusCompleted, StatusStopped, StatusAborted} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown crawl status %q", string(text))
}
