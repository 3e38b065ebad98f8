package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/kylin1020/spinneret/internal/model"
)

// robotsFetchTimeout bounds one robots.txt download.
const robotsFetchTimeout = 10 * time.Second

// Robots drops requests that a site's robots.txt disallows for our user
// agent. Robots files are fetched once per scheme://host and cached for
// the lifetime of the middleware; concurrent requests for the same host
// share a single fetch. When a robots.txt cannot be fetched or parsed,
// the host is treated as permissive.
type Robots struct {
	Nop
	client    *http.Client
	userAgent string

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobots returns the robots.txt filter. A nil client gets a default
// one with a fetch timeout; pass the engine's client to route robots
// fetches through the same proxy as everything else.
func NewRobots(client *http.Client, userAgent string) *Robots {
	if client == nil {
		client = &http.Client{Timeout: robotsFetchTimeout}
	}
	return &Robots{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Name identifies the middleware in logs.
func (m *Robots) Name() string { return "robots" }

// ProcessRequest drops the request when robots.txt disallows its path.
func (m *Robots) ProcessRequest(ctx context.Context, req *model.Request) (*model.Request, *model.Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		// Unparsable URLs fail at fetch time with a better error.
		return nil, nil, nil
	}

	robots, err := m.robotsFor(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return nil, nil, err
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	if !robots.TestAgent(path, m.userAgent) {
		return nil, nil, fmt.Errorf("disallowed by robots.txt: %w", ErrDropRequest)
	}
	return nil, nil, nil
}

// robotsFor returns the cached robots data for a scheme://host origin,
// fetching it once on a miss.
func (m *Robots) robotsFor(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	m.mu.RLock()
	data, ok := m.cache[origin]
	m.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, _ := m.group.Do(origin, func() (any, error) {
		m.mu.RLock()
		data, ok := m.cache[origin]
		m.mu.RUnlock()
		if ok {
			return data, nil
		}

		data = m.fetch(ctx, origin)

		m.mu.Lock()
		m.cache[origin] = data
		m.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

// fetch downloads and parses one robots.txt. Failures of any kind
// produce permissive rules.
func (m *Robots) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	permissive, _ := robotstxt.FromString("")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return permissive
	}
	if m.userAgent != "" {
		httpReq.Header.Set("User-Agent", m.userAgent)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return permissive
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil || data == nil {
		return permissive
	}
	return data
}
