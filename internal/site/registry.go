// Package site holds the per-site adapters: how an album page is turned
// into resource references and how a reference becomes a downloadable URL.
package site

import (
	"net/url"
	"strings"

	"github.com/flytam/filenamify"
	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/domain"
	"github.com/yourusername/albumgrab-go/internal/httpx"
)

// Registry selects the adapter for a URL by host. Unknown hosts fall back
// to the generic adapter.
type Registry struct {
	adapters []domain.SiteAdapter
	fallback domain.SiteAdapter
}

// NewRegistry creates a registry with the built-in adapters registered.
func NewRegistry(client *httpx.Client, chunkSize int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		adapters: []domain.SiteAdapter{
			NewBunkrAdapter(client, chunkSize, logger),
			NewCyberdropAdapter(client, chunkSize, logger),
		},
		fallback: NewGenericAdapter(client, chunkSize, logger),
	}
}

// Register adds a custom adapter. It takes precedence over the built-ins
// when hosts overlap.
func (r *Registry) Register(a domain.SiteAdapter) {
	r.adapters = append([]domain.SiteAdapter{a}, r.adapters...)
}

// ForURL returns the adapter serving rawURL's host.
func (r *Registry) ForURL(rawURL string) domain.SiteAdapter {
	host := hostOf(rawURL)
	for _, a := range r.adapters {
		if matchesHost(host, a.Host()) {
			return a
		}
	}
	return r.fallback
}

// matchesHost reports whether host belongs to a registered site name. Names
// match whole labels only: "bunkr" claims bunkr.la and media.bunkr.sk but
// not notbunkr.example.
func matchesHost(host, name string) bool {
	if host == name || strings.HasSuffix(host, "."+name) {
		return true
	}
	for _, label := range strings.Split(host, ".") {
		if label == name {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ensureScheme prepends https where the input omitted it.
func ensureScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	return "https://" + rawURL
}

// SanitizeFileName makes a string safe to use as a file or directory name.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	out, err := filenamify.Filenamify(name, filenamify.Options{Replacement: "_"})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
