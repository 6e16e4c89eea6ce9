package extract

import (
	"regexp"

	"mvdan.cc/xurls/v2"
)

// Matcher identifies resource-bearing markup in a byte buffer. A matcher is
// site-specific; the scanner drives it without knowing what it matches.
type Matcher interface {
	// FindAll returns the start/end offsets of every complete match in buf,
	// left to right, non-overlapping.
	FindAll(buf []byte) [][]int

	// Refine converts matched bytes into the raw reference value. It returns
	// false when the match should be discarded (a false positive the offset
	// pass could not rule out).
	Refine(match []byte) (string, bool)

	// MaxLen bounds the length of any match the matcher can produce. The
	// scanner uses it to cap the carry buffer, so it also bounds how long a
	// partial match may straddle chunk boundaries before being discarded.
	MaxLen() int
}

// RegexpMatcher matches references with a compiled pattern. When group > 0
// the reference is that capture group, otherwise the whole match.
type RegexpMatcher struct {
	re     *regexp.Regexp
	group  int
	maxLen int
}

// NewRegexpMatcher builds a matcher from pattern. maxLen must be at least as
// long as any reference the pattern can match; longer partial candidates are
// abandoned at chunk boundaries.
func NewRegexpMatcher(pattern string, group, maxLen int) *RegexpMatcher {
	return &RegexpMatcher{
		re:     regexp.MustCompile(pattern),
		group:  group,
		maxLen: maxLen,
	}
}

func (m *RegexpMatcher) FindAll(buf []byte) [][]int {
	return m.re.FindAllIndex(buf, -1)
}

func (m *RegexpMatcher) Refine(match []byte) (string, bool) {
	if m.group == 0 {
		return string(match), true
	}
	groups := m.re.FindSubmatch(match)
	if groups == nil || len(groups) <= m.group || groups[m.group] == nil {
		return "", false
	}
	return string(groups[m.group]), true
}

func (m *RegexpMatcher) MaxLen() int { return m.maxLen }

// NewURLMatcher matches absolute URLs anywhere in the markup. Used by the
// generic site adapter when no site-specific pattern applies.
func NewURLMatcher(maxLen int) *RegexpMatcher {
	return &RegexpMatcher{
		re:     xurls.Strict(),
		group:  0,
		maxLen: maxLen,
	}
}
