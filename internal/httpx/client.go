// Package httpx wraps the outbound HTTP client: rotating User-Agent,
// optional proxy, per-request timeouts and streamed bodies. All failures
// surface as *domain.FetchError so callers can classify them.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yourusername/albumgrab-go/internal/domain"
)

// defaultUserAgents is the rotation pool used when the configuration
// provides none.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Options configures a Client.
type Options struct {
	// Proxy is an optional proxy URL (http, https or socks5).
	Proxy string
	// Timeout bounds the time to the response headers of each request. The
	// body may stream for longer.
	Timeout time.Duration
	// UserAgents overrides the default rotation pool.
	UserAgents []string
}

// Client is the HTTP collaborator shared by adapters and the orchestrator.
type Client struct {
	hc         *http.Client
	userAgents []string

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a client. An unparsable proxy URL is an error; everything
// else falls back to defaults.
func New(opts Options) (*Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	if opts.Timeout <= 0 {
		transport.ResponseHeaderTimeout = 30 * time.Second
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	agents := opts.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}

	return &Client{
		hc:         &http.Client{Transport: transport},
		userAgents: agents,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// UserAgent returns a random agent from the rotation pool.
func (c *Client) UserAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userAgents[c.rng.Intn(len(c.userAgents))]
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent())
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", fmt.Sprintf("%s://%s/", req.URL.Scheme, req.URL.Host))
	}
}

// Get performs a streamed GET. The caller owns the response body. Non-2xx
// statuses and network failures are returned as *domain.FetchError; the
// body is closed in the error cases.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	c.decorate(req)

	rsp, err := c.hc.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Timeout: isTimeout(err), Err: err}
	}
	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		rsp.Body.Close()
		return nil, &domain.FetchError{URL: rawURL, Status: rsp.StatusCode, Err: fmt.Errorf("unexpected status %s", rsp.Status)}
	}
	return rsp, nil
}

// PostJSON sends a JSON payload and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return &domain.FetchError{URL: rawURL, Err: err}
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/json")

	rsp, err := c.hc.Do(req)
	if err != nil {
		return &domain.FetchError{URL: rawURL, Timeout: isTimeout(err), Err: err}
	}
	defer rsp.Body.Close()

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		return &domain.FetchError{URL: rawURL, Status: rsp.StatusCode, Err: fmt.Errorf("unexpected status %s", rsp.Status)}
	}

	if err := json.NewDecoder(io.LimitReader(rsp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
