package domain

// LedgerStatus is a terminal per-resource outcome.
type LedgerStatus string

const (
	LedgerCompleted LedgerStatus = "completed"
	LedgerFailed    LedgerStatus = "failed"
)

// LedgerEntry records the terminal outcome for one resource key.
type LedgerEntry struct {
	Key    string
	Status LedgerStatus
	Reason string
}

// Ledger is the durable memory of per-resource outcomes, used to skip
// completed resources and to avoid retrying known failures across runs.
//
// Implementations must serialize writes while allowing concurrent reads.
// A Completed entry is never overwritten. A Failed entry is cleared only by
// external edits to the backing store, never by the running process.
type Ledger interface {
	// Status reports the recorded outcome for key, if any.
	Status(key string) (LedgerStatus, bool)

	// RecordCompleted durably marks key as downloaded. The entry must be
	// flushed before the call returns.
	RecordCompleted(key string) error

	// RecordFailed durably marks key as failed with a short reason. A
	// pre-existing Completed entry wins and is left untouched.
	RecordFailed(key, reason string) error

	// Close flushes and releases the backing store.
	Close() error
}
