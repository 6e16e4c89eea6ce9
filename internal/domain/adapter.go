package domain

import "context"

// SiteAdapter is the per-site capability set: resolving an album page into
// resource references and turning a reference into a downloadable URL.
// One flat interface per supported hosting site; selection by URL host is
// the registry's job, not the adapter's.
type SiteAdapter interface {
	// Host returns the site identifier the adapter serves (e.g. "bunkr").
	Host() string

	// Resolve fetches albumURL and streams every discovered reference to
	// emit, in page order. For a direct single-resource URL it emits exactly
	// one reference without fetching the page. A mid-stream failure after
	// some references were emitted returns an *ExtractionError; references
	// emitted before the failure remain valid.
	Resolve(ctx context.Context, albumURL string, emit func(ResourceReference)) (*AlbumInfo, error)

	// DirectURL exchanges a reference for the actual download URL. This may
	// involve a network call (token exchange) or a pure transform. Returns a
	// *ResolutionError when the exchange fails or the result is not a
	// well-formed URL.
	DirectURL(ctx context.Context, ref ResourceReference) (string, error)

	// SuggestedFileName derives a sanitized file name for the reference.
	SuggestedFileName(ref ResourceReference) string
}
