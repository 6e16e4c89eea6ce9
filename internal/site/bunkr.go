package site

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/domain"
	"github.com/yourusername/albumgrab-go/internal/extract"
	"github.com/yourusername/albumgrab-go/internal/httpx"
)

const (
	// bunkrBase is the canonical host. The site rotates through several
	// domains pointing at the same content; all are rewritten to this one.
	bunkrBase = "https://bunkr.sk"

	// bunkrAPIURL exchanges a file slug for the encrypted download URL.
	bunkrAPIURL = "https://bunkr.cr/api/vs"

	// bunkrKeyBase is the static portion of the XOR key; the API response
	// timestamp contributes the hourly salt.
	bunkrKeyBase = "SECRET_KEY_"

	// bunkrMaintenanceURL is what the CDN serves when the file host is down.
	// Downloading it would record a bogus completion, so it is a hard stop.
	bunkrMaintenanceURL = "https://bnkr.b-cdn.net/maintenance.mp4"
)

// ErrMaintenance is returned when resolution lands on the maintenance
// placeholder instead of the real file.
var ErrMaintenance = errors.New("file host is down for maintenance")

var (
	bunkrHrefRe  = `href="(/(?:f|d)/[A-Za-z0-9_.-]{3,64})"`
	bunkrTitleRe = `<h1[^>]*>\s*([^<]{1,200}?)\s*</h1>`
	bunkrOGRe    = `<meta\s+property="og:title"\s+content="([^"]{1,200})"`
	bunkrSlugRe  = regexp.MustCompile(`/(?:f|d)/([^/?#]+)`)
	bunkrAlbumRe = regexp.MustCompile(`/a/([A-Za-z0-9_-]{3,})`)
)

// BunkrAdapter resolves bunkr albums. File pages hide the real CDN URL
// behind a slug-exchange API whose response is XOR-encrypted with an
// hourly-rotating key.
type BunkrAdapter struct {
	client    *httpx.Client
	logger    *zap.Logger
	chunkSize int
	apiURL    string
}

var _ domain.SiteAdapter = (*BunkrAdapter)(nil)

// NewBunkrAdapter creates the bunkr adapter.
func NewBunkrAdapter(client *httpx.Client, chunkSize int, logger *zap.Logger) *BunkrAdapter {
	if chunkSize <= 0 {
		chunkSize = extract.DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BunkrAdapter{
		client:    client,
		logger:    logger.Named("bunkr"),
		chunkSize: chunkSize,
		apiURL:    bunkrAPIURL,
	}
}

func (a *BunkrAdapter) Host() string { return "bunkr" }

// normalizeBunkrURL rewrites the rotating domains to the canonical one and
// adds a scheme where missing.
func normalizeBunkrURL(rawURL string) string {
	rawURL = ensureScheme(rawURL)
	for _, alias := range []string{"bunkr.la", "bunkr.is", "bunkr.cr"} {
		rawURL = strings.Replace(rawURL, alias, "bunkr.sk", 1)
	}
	return rawURL
}

// Resolve streams the album page and emits a reference per file link. A URL
// that already points at a single file page emits one reference without any
// fetch.
func (a *BunkrAdapter) Resolve(ctx context.Context, albumURL string, emit func(domain.ResourceReference)) (*domain.AlbumInfo, error) {
	albumURL = normalizeBunkrURL(albumURL)

	if bunkrSlugRe.MatchString(albumURL) {
		emit(domain.ResourceReference{Raw: albumURL, PageURL: albumURL, Host: a.Host()})
		return &domain.AlbumInfo{Found: 1}, nil
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

	links := extract.NewScanner(extract.NewRegexpMatcher(bunkrHrefRe, 1, 512), nil)
	h1 := extract.NewScanner(extract.NewRegexpMatcher(bunkrTitleRe, 1, 512), nil)
	og := extract.NewScanner(extract.NewRegexpMatcher(bunkrOGRe, 1, 512), nil)

	runErr := extract.Run(ctx, rsp.Body, a.chunkSize, albumURL,
		extract.Feed{Scanner: links, Emit: func(href string) {
			pageURL := bunkrBase + href
			if _, dup := seen[pageURL]; dup {
				return
			}
			seen[pageURL] = struct{}{}
			found++
			emit(domain.ResourceReference{Raw: href, PageURL: pageURL, Host: a.Host()})
		}},
		extract.Feed{Scanner: h1, Emit: func(text string) {
			if title == "" {
				title = text
			}
		}},
		extract.Feed{Scanner: og, Emit: func(text string) {
			if title == "" {
				title, _, _ = strings.Cut(text, " - ")
			}
		}},
	)

	info := &domain.AlbumInfo{Name: SanitizeFileName(title), Found: found}
	if info.Name == "" {
		info.Name = bunkrAlbumNameFromURL(albumURL)
	}
	if runErr != nil {
		a.logger.Warn("album stream ended early",
			zap.String("url", albumURL),
			zap.Int("found", found),
			zap.Error(runErr))
		return info, runErr
	}
	return info, nil
}

// bunkrAlbumNameFromURL derives a stable fallback name from the album ID in
// the URL path.
func bunkrAlbumNameFromURL(albumURL string) string {
	if m := bunkrAlbumRe.FindStringSubmatch(albumURL); m != nil {
		return "bunkr_album_" + m[1]
	}
	return ""
}

// bunkrVSResponse is the slug-exchange API payload. URL is either a
// plaintext URL or base64 ciphertext keyed by Timestamp.
type bunkrVSResponse struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// DirectURL exchanges the reference's slug for the CDN URL, decrypting the
// response when the API returns ciphertext.
func (a *BunkrAdapter) DirectURL(ctx context.Context, ref domain.ResourceReference) (string, error) {
	m := bunkrSlugRe.FindStringSubmatch(ref.PageURL)
	if m == nil {
		return "", &domain.ResolutionError{Ref: ref.PageURL, Err: errors.New("no file slug in reference")}
	}
	slug := m[1]

	var rsp bunkrVSResponse
	if err := a.client.PostJSON(ctx, a.apiURL, map[string]string{"slug": slug}, &rsp); err != nil {
		return "", &domain.ResolutionError{Ref: ref.PageURL, Err: err}
	}
	if rsp.URL == "" {
		return "", &domain.ResolutionError{Ref: ref.PageURL, Err: errors.New("empty url in api response")}
	}

	direct := rsp.URL
	if !strings.HasPrefix(direct, "http") {
		decrypted, err := decryptBunkrURL(rsp.URL, rsp.Timestamp)
		if err != nil {
			return "", &domain.ResolutionError{Ref: ref.PageURL, Err: err}
		}
		direct = decrypted
	}

	if direct == bunkrMaintenanceURL {
		return "", &domain.ResolutionError{Ref: ref.PageURL, Err: ErrMaintenance}
	}
	return direct, nil
}

// decryptBunkrURL reverses the API's obfuscation: base64, then XOR with
// bunkrKeyBase plus the hour derived from the response timestamp.
func decryptBunkrURL(encoded string, timestamp int64) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode url ciphertext: %w", err)
	}

	key := []byte(bunkrKeyBase + strconv.FormatInt(timestamp/3600, 10))
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = b ^ key[i%len(key)]
	}

	decrypted := string(out)
	if !strings.HasPrefix(decrypted, "http") {
		return "", fmt.Errorf("decrypted value is not a url")
	}
	return decrypted, nil
}

// SuggestedFileName falls back to the slug when the direct URL exposes no
// usable basename.
func (a *BunkrAdapter) SuggestedFileName(ref domain.ResourceReference) string {
	if m := bunkrSlugRe.FindStringSubmatch(ref.PageURL); m != nil {
		return SanitizeFileName(m[1])
	}
	u, err := url.Parse(ref.PageURL)
	if err != nil {
		return ""
	}
	return SanitizeFileName(path.Base(u.Path))
}
