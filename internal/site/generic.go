package site

import (
	"context"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/domain"
	"github.com/yourusername/albumgrab-go/internal/extract"
	"github.com/yourusername/albumgrab-go/internal/httpx"
)

// downloadableExts is what the generic adapter considers a binary resource
// worth fetching from an arbitrary page.
var downloadableExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".mp4": {}, ".webm": {}, ".mkv": {}, ".mov": {}, ".avi": {},
	".mp3": {}, ".flac": {}, ".wav": {}, ".m4a": {},
	".zip": {}, ".rar": {}, ".7z": {}, ".pdf": {},
}

const genericTitleRe = `<title>\s*([^<]{1,200}?)\s*</title>`

// GenericAdapter handles hosts with no dedicated adapter: every absolute
// URL on the page with a recognizable binary extension becomes a reference,
// and references download as-is.
type GenericAdapter struct {
	client    *httpx.Client
	logger    *zap.Logger
	chunkSize int
}

var _ domain.SiteAdapter = (*GenericAdapter)(nil)

// NewGenericAdapter creates the fallback adapter.
func NewGenericAdapter(client *httpx.Client, chunkSize int, logger *zap.Logger) *GenericAdapter {
	if chunkSize <= 0 {
		chunkSize = extract.DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenericAdapter{
		client:    client,
		logger:    logger.Named("generic"),
		chunkSize: chunkSize,
	}
}

func (a *GenericAdapter) Host() string { return "generic" }

// Resolve streams the page and emits every downloadable-looking absolute
// URL found anywhere in the markup.
func (a *GenericAdapter) Resolve(ctx context.Context, albumURL string, emit func(domain.ResourceReference)) (*domain.AlbumInfo, error) {
	albumURL = ensureScheme(albumURL)

	rsp, err := a.client.Get(ctx, albumURL)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()

	var (
		found int
		seen  = map[string]struct{}{}
		title string
	)

	urls := extract.NewScanner(extract.NewURLMatcher(2048), nil)
	titles := extract.NewScanner(extract.NewRegexpMatcher(genericTitleRe, 1, 512), nil)

	runErr := extract.Run(ctx, rsp.Body, a.chunkSize, albumURL,
		extract.Feed{Scanner: urls, Emit: func(raw string) {
			if !isDownloadable(raw) {
				return
			}
			if _, dup := seen[raw]; dup {
				return
			}
			seen[raw] = struct{}{}
			found++
			emit(domain.ResourceReference{Raw: raw, PageURL: raw, Host: a.Host()})
		}},
		extract.Feed{Scanner: titles, Emit: func(text string) {
			if title == "" {
				title = text
			}
		}},
	)

	info := &domain.AlbumInfo{Name: SanitizeFileName(title), Found: found}
	if runErr != nil {
		a.logger.Warn("page stream ended early",
			zap.String("url", albumURL),
			zap.Int("found", found),
			zap.Error(runErr))
		return info, runErr
	}
	return info, nil
}

func isDownloadable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	_, ok := downloadableExts[ext]
	return ok
}

// DirectURL is the identity for generic references.
func (a *GenericAdapter) DirectURL(_ context.Context, ref domain.ResourceReference) (string, error) {
	if _, err := url.Parse(ref.PageURL); err != nil {
		return "", &domain.ResolutionError{Ref: ref.PageURL, Err: err}
	}
	return ref.PageURL, nil
}

// SuggestedFileName uses the URL basename.
func (a *GenericAdapter) SuggestedFileName(ref domain.ResourceReference) string {
	u, err := url.Parse(ref.PageURL)
	if err != nil {
		return ""
	}
	return SanitizeFileName(path.Base(u.Path))
}
