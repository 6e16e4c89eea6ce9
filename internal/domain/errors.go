package domain

import (
	"errors"
	"fmt"
)

// FetchError means a page or resource could not be retrieved. Status is the
// HTTP status code, or 0 for network-level failures (dial, reset, timeout).
type FetchError struct {
	URL     string
	Status  int
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ResolutionError means a reference could not be turned into a usable
// download URL. Never retried.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ExtractionError means an album page stream ended abnormally mid-parse.
// Found counts the references that were emitted before the failure; they
// remain valid and should still be processed.
type ExtractionError struct {
	URL   string
	Found int
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: stream ended after %d references: %v", e.URL, e.Found, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError means a disk write or rename failed for one resource.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// LedgerError means the durable outcome record could not be read or written.
// Fatal for the whole run: continuing would risk duplicate downloads or lost
// failure memory.
type LedgerError struct {
	Path string
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Path, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// Transient reports whether err is worth retrying: network-level failures,
// timeouts, throttling and server errors. Client errors (404, 403) and
// resolution failures are permanent.
func Transient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status == 0 || fe.Status == 429 || fe.Status >= 500
	}
	return false
}
