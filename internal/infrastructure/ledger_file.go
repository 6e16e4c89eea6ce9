package infrastructure

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yourusername/albumgrab-go/internal/domain"
)

const (
	// LedgerFileName is the per-output-root record of terminal outcomes.
	LedgerFileName = "already_downloaded.txt"
	failedTag      = "[FAILED]"
	reasonSep      = " -- "
)

// FileLedger implements domain.Ledger on a line-oriented append-only text
// file. Completed entries are the bare resource key; failed entries carry a
// literal tag and reason:
//
//	https://host/f/abcd1234
//	[FAILED] https://host/f/efgh5678 -- status 404
//
// The file is only ever appended to while running. An operator deletes a
// line by hand to force a retry on the next run.
type FileLedger struct {
	path string
	f    *os.File

	mu      sync.RWMutex
	entries map[string]domain.LedgerEntry
}

var _ domain.Ledger = (*FileLedger)(nil)

// OpenFileLedger opens (creating if needed) the ledger under dir and loads
// all existing entries.
func OpenFileLedger(dir string) (*FileLedger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &domain.LedgerError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, LedgerFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &domain.LedgerError{Path: path, Err: err}
	}

	l := &FileLedger{
		path:    path,
		f:       f,
		entries: make(map[string]domain.LedgerEntry),
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if entry, ok := parseLine(sc.Text()); ok {
			// A Completed entry is never displaced, even by a later
			// (hand-edited, inconsistent) Failed line for the same key.
			if prev, exists := l.entries[entry.Key]; exists && prev.Status == domain.LedgerCompleted {
				continue
			}
			l.entries[entry.Key] = entry
		}
	}
	if err := sc.Err(); err != nil {
		f.Close()
		return nil, &domain.LedgerError{Path: path, Err: err}
	}

	return l, nil
}

func parseLine(line string) (domain.LedgerEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return domain.LedgerEntry{}, false
	}
	if rest, ok := strings.CutPrefix(line, failedTag); ok {
		rest = strings.TrimSpace(rest)
		key, reason, _ := strings.Cut(rest, reasonSep)
		key = strings.TrimSpace(key)
		if key == "" {
			return domain.LedgerEntry{}, false
		}
		return domain.LedgerEntry{Key: key, Status: domain.LedgerFailed, Reason: strings.TrimSpace(reason)}, true
	}
	return domain.LedgerEntry{Key: line, Status: domain.LedgerCompleted}, true
}

// Path returns the backing file path.
func (l *FileLedger) Path() string { return l.path }

// Status reports the recorded outcome for key, if any. Concurrent with
// writers.
func (l *FileLedger) Status(key string) (domain.LedgerStatus, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[key]
	if !ok {
		return "", false
	}
	return e.Status, true
}

// RecordCompleted appends a completed line for key and syncs it to disk
// before returning.
func (l *FileLedger) RecordCompleted(key string) error {
	return l.record(domain.LedgerEntry{Key: key, Status: domain.LedgerCompleted})
}

// RecordFailed appends a failed line for key. An existing Completed entry
// wins and the call is a no-op.
func (l *FileLedger) RecordFailed(key, reason string) error {
	return l.record(domain.LedgerEntry{Key: key, Status: domain.LedgerFailed, Reason: reason})
}

func (l *FileLedger) record(entry domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.entries[entry.Key]; ok {
		if prev.Status == domain.LedgerCompleted || prev.Status == entry.Status {
			return nil
		}
	}

	var line string
	switch entry.Status {
	case domain.LedgerFailed:
		if entry.Reason != "" {
			line = fmt.Sprintf("%s %s%s%s\n", failedTag, entry.Key, reasonSep, entry.Reason)
		} else {
			line = fmt.Sprintf("%s %s\n", failedTag, entry.Key)
		}
	default:
		line = entry.Key + "\n"
	}

	if _, err := l.f.WriteString(line); err != nil {
		return &domain.LedgerError{Path: l.path, Err: err}
	}
	if err := l.f.Sync(); err != nil {
		return &domain.LedgerError{Path: l.path, Err: err}
	}

	l.entries[entry.Key] = entry
	return nil
}

// Len returns the number of loaded entries.
func (l *FileLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close flushes and closes the backing file.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.f.Close(); err != nil {
		return &domain.LedgerError{Path: l.path, Err: err}
	}
	return nil
}
