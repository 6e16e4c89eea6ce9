package site

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/domain"
	"github.com/yourusername/albumgrab-go/internal/extract"
	"github.com/yourusername/albumgrab-go/internal/httpx"
)

var (
	cyberdropAnchorRe = regexp.MustCompile(`<a\s[^>]{0,400}?>`)
	cyberdropHrefRe   = regexp.MustCompile(`href="([^"]+)"`)
	cyberdropClassRe  = regexp.MustCompile(`class="[^"]*\bimage\b[^"]*"`)
	cyberdropTitleRe  = `<title>\s*([^<]{1,200}?)\s*</title>`
	cyberdropPrefixRe = regexp.MustCompile(`^Cyberdrop\.me\s*-\s*`)
)

// cyberdropLinkMatcher matches anchor tags and keeps only those carrying
// the "image" class, which is how cyberdrop marks its file links. The class
// and href attributes appear in either order, so the offset pass matches the
// whole tag and Refine decides.
type cyberdropLinkMatcher struct{}

func (cyberdropLinkMatcher) FindAll(buf []byte) [][]int {
	return cyberdropAnchorRe.FindAllIndex(buf, -1)
}

func (cyberdropLinkMatcher) Refine(match []byte) (string, bool) {
	if !cyberdropClassRe.Match(match) {
		return "", false
	}
	m := cyberdropHrefRe.FindSubmatch(match)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

func (cyberdropLinkMatcher) MaxLen() int { return 512 }

// CyberdropAdapter resolves cyberdrop albums. File links on the page are
// already direct download URLs, modulo a missing scheme.
type CyberdropAdapter struct {
	client    *httpx.Client
	logger    *zap.Logger
	chunkSize int
}

var _ domain.SiteAdapter = (*CyberdropAdapter)(nil)

// NewCyberdropAdapter creates the cyberdrop adapter.
func NewCyberdropAdapter(client *httpx.Client, chunkSize int, logger *zap.Logger) *CyberdropAdapter {
	if chunkSize <= 0 {
		chunkSize = extract.DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CyberdropAdapter{
		client:    client,
		logger:    logger.Named("cyberdrop"),
		chunkSize: chunkSize,
	}
}

func (a *CyberdropAdapter) Host() string { return "cyberdrop" }

// Resolve streams the album page, emitting a reference per file link.
func (a *CyberdropAdapter) Resolve(ctx context.Context, albumURL string, emit func(domain.ResourceReference)) (*domain.AlbumInfo, error) {
	albumURL = ensureScheme(albumURL)

	base, err := url.Parse(albumURL)
	if err != nil {
		return nil, &domain.ResolutionError{Ref: albumURL, Err: err}
	}

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

	links := extract.NewScanner(cyberdropLinkMatcher{}, nil)
	titles := extract.NewScanner(extract.NewRegexpMatcher(cyberdropTitleRe, 1, 512), nil)

	runErr := extract.Run(ctx, rsp.Body, a.chunkSize, albumURL,
		extract.Feed{Scanner: links, Emit: func(href string) {
			pageURL := resolveHref(base, href)
			if pageURL == "" {
				return
			}
			if _, dup := seen[pageURL]; dup {
				return
			}
			seen[pageURL] = struct{}{}
			found++
			emit(domain.ResourceReference{Raw: href, PageURL: pageURL, Host: a.Host()})
		}},
		extract.Feed{Scanner: titles, Emit: func(text string) {
			if title == "" {
				title = cyberdropPrefixRe.ReplaceAllString(text, "")
			}
		}},
	)

	info := &domain.AlbumInfo{Name: SanitizeFileName(title), Found: found}
	if runErr != nil {
		a.logger.Warn("album stream ended early",
			zap.String("url", albumURL),
			zap.Int("found", found),
			zap.Error(runErr))
		return info, runErr
	}
	return info, nil
}

// resolveHref makes href absolute against the album page URL.
func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// DirectURL is a pure transform: the reference already points at the file,
// it may just lack a scheme.
func (a *CyberdropAdapter) DirectURL(_ context.Context, ref domain.ResourceReference) (string, error) {
	direct := ensureScheme(ref.PageURL)
	if _, err := url.Parse(direct); err != nil {
		return "", &domain.ResolutionError{Ref: ref.PageURL, Err: err}
	}
	return direct, nil
}

// SuggestedFileName uses the URL basename.
func (a *CyberdropAdapter) SuggestedFileName(ref domain.ResourceReference) string {
	u, err := url.Parse(ensureScheme(ref.PageURL))
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return SanitizeFileName(strings.TrimSpace(name))
}
