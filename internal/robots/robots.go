// Package robots answers "may we fetch this URL" from the host's
// robots.txt. Parsed files are cached per host; a robots.txt that cannot be
// fetched or parsed is treated as permissive.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/httpx"
)

// Policy checks robots.txt once per host. Safe for concurrent use.
type Policy struct {
	client  *httpx.Client
	logger  *zap.Logger
	respect bool

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// New creates a policy. With respect=false every check passes without any
// network traffic.
func New(client *httpx.Client, respect bool, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		client:  client,
		logger:  logger,
		respect: respect,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether rawURL may be fetched.
func (p *Policy) IsAllowed(ctx context.Context, rawURL string) bool {
	if !p.respect {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	data := p.dataFor(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, p.client.UserAgent())
}

func (p *Policy) dataFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	p.mu.Lock()
	data, ok := p.cache[u.Host]
	p.mu.Unlock()
	if ok {
		return data
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	rsp, err := p.client.Get(ctx, robotsURL)
	if err != nil {
		p.logger.Debug("robots.txt unavailable, allowing",
			zap.String("host", u.Host),
			zap.Error(err))
		p.store(u.Host, nil)
		return nil
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(rsp.Body, 512*1024))
	if err != nil {
		p.store(u.Host, nil)
		return nil
	}

	data, err = robotstxt.FromBytes(body)
	if err != nil {
		p.logger.Debug("robots.txt unparsable, allowing",
			zap.String("host", u.Host),
			zap.Error(err))
		data = nil
	}
	p.store(u.Host, data)
	return data
}

func (p *Policy) store(host string, data *robotstxt.RobotsData) {
	p.mu.Lock()
	p.cache[host] = data
	p.mu.Unlock()
}
