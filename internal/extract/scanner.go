// Package extract implements incremental discovery of resource references
// from a streamed page body. The page is never materialized: the scanner
// holds one chunk plus a bounded carry of bytes that may belong to a match
// straddling a chunk boundary.
package extract

import (
	"context"
	"io"

	"github.com/yourusername/albumgrab-go/internal/domain"
)

// DefaultChunkSize is the read size used by Run when none is configured.
const DefaultChunkSize = 8 * 1024

// Scanner is the resumable extraction state: the carry buffer, its absolute
// position in the stream, and the high-water mark of already-emitted
// matches. Feed it chunks from any source, push or pull.
//
// The carry never exceeds the matcher's MaxLen, so auxiliary memory is O(1)
// in the page size: a partial match that outgrows MaxLen is silently
// abandoned and scanning resumes past it.
type Scanner struct {
	m Matcher

	carry []byte
	// base is the absolute stream offset of carry[0].
	base int64
	// done is the absolute offset up to which matches have been emitted.
	// Matches starting before it were already seen in a previous Feed and
	// are suppressed when the carry is rescanned.
	done int64

	count   int
	onCount func(n int)
}

// NewScanner creates a scanner for one stream. onCount, if non-nil, is
// invoked with the running reference count after each emission; it must not
// block.
func NewScanner(m Matcher, onCount func(n int)) *Scanner {
	return &Scanner{m: m, onCount: onCount}
}

// Feed scans one chunk, emitting every complete reference it finishes.
// References are emitted in page order. A match ending flush against the
// buffer is held back: the next chunk may extend it (an open-ended pattern
// like a bare URL has no terminator), so it is emitted by a later Feed or
// by Flush, whichever settles it first.
func (s *Scanner) Feed(chunk []byte, emit func(raw string)) {
	if len(chunk) == 0 {
		return
	}

	buf := make([]byte, 0, len(s.carry)+len(chunk))
	buf = append(buf, s.carry...)
	buf = append(buf, chunk...)

	s.scan(buf, false, emit)

	keep := s.m.MaxLen()
	if keep > len(buf) {
		keep = len(buf)
	}
	s.carry = append(s.carry[:0], buf[len(buf)-keep:]...)
	s.base += int64(len(buf) - keep)
}

// Flush emits a match that was held back because it touched the end of the
// last chunk. Call exactly once, at stream end.
func (s *Scanner) Flush(emit func(raw string)) {
	if len(s.carry) > 0 {
		s.scan(s.carry, true, emit)
	}
	s.done = s.base + int64(len(s.carry))
}

func (s *Scanner) scan(buf []byte, final bool, emit func(raw string)) {
	for _, loc := range s.m.FindAll(buf) {
		start := s.base + int64(loc[0])
		if start < s.done {
			// Rescan of carried bytes; already emitted.
			continue
		}
		if !final && loc[1] == len(buf) {
			// The match frontier is the buffer end, so more bytes could
			// still extend it. Leave done where it is; the carry rescan
			// picks the match up once it is settled.
			break
		}
		s.done = s.base + int64(loc[1])
		raw, ok := s.m.Refine(buf[loc[0]:loc[1]])
		if !ok {
			continue
		}
		s.count++
		emit(raw)
		if s.onCount != nil {
			s.onCount(s.count)
		}
	}
}

// Count returns the number of references emitted so far.
func (s *Scanner) Count() int { return s.count }

// Feed pairs a scanner with the sink for its references. Several feeds can
// share one pass over the stream (e.g. file links and the album title).
type Feed struct {
	Scanner *Scanner
	Emit    func(raw string)
}

// Run drives one or more feeds from r in chunkSize reads until EOF. Every
// feed sees every chunk. On a mid-stream read failure the references found
// so far have already been emitted; the failure is reported as an
// *domain.ExtractionError carrying the count from the first feed.
func Run(ctx context.Context, r io.Reader, chunkSize int, url string, feeds ...Feed) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			for _, f := range feeds {
				f.Scanner.Feed(buf[:n], f.Emit)
			}
		}
		if err == io.EOF {
			for _, f := range feeds {
				f.Scanner.Flush(f.Emit)
			}
			return nil
		}
		if err != nil {
			found := 0
			if len(feeds) > 0 {
				found = feeds[0].Scanner.Count()
			}
			return &domain.ExtractionError{URL: url, Found: found, Err: err}
		}
	}
}
