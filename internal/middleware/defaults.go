package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/kylin1020/spinneret/internal/config"
	"github.com/kylin1020/spinneret/internal/model"
)

// Default registration priorities for the built-in middlewares.
const (
	// PrioritySetDefaults is where SetDefaults registers.
	PrioritySetDefaults = 100
	// PriorityUserAgent is where UserAgent registers.
	PriorityUserAgent = 200
	// PriorityAllowedCodes is where AllowedCodes registers.
	PriorityAllowedCodes = 300
)

// SetDefaults fills request gaps from the settings: a missing method
// becomes GET and configured default headers are added where the
// request has none of its own.
type SetDefaults struct {
	Nop
	settings *config.Settings
}

// NewSetDefaults returns the defaults-filling middleware.
func NewSetDefaults(settings *config.Settings) *SetDefaults {
	return &SetDefaults{settings: settings}
}

// Name identifies the middleware in logs.
func (m *SetDefaults) Name() string { return "set_defaults" }

// ProcessRequest fills the method and default headers.
func (m *SetDefaults) ProcessRequest(_ context.Context, req *model.Request) (*model.Request, *model.Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if len(m.settings.DefaultHeaders) > 0 {
		if req.Header == nil {
			req.Header = make(http.Header, len(m.settings.DefaultHeaders))
		}
		for k, v := range m.settings.DefaultHeaders {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
	}
	return req, nil, nil
}

// UserAgent sets the User-Agent header on requests that lack one,
// either a fixed value or round-robin rotation through a pool.
type UserAgent struct {
	Nop
	agents []string
	next   atomic.Uint64
}

// NewUserAgent returns the user agent middleware. A non-empty
// Settings.UserAgents pool enables rotation; otherwise the single
// Settings.UserAgent value is used.
func NewUserAgent(settings *config.Settings) *UserAgent {
	agents := settings.UserAgents
	if len(agents) == 0 {
		agent := settings.UserAgent
		if agent == "" {
			agent = config.DefaultUserAgent
		}
		agents = []string{agent}
	}
	return &UserAgent{agents: agents}
}

// Name identifies the middleware in logs.
func (m *UserAgent) Name() string { return "user_agent" }

// ProcessRequest sets User-Agent when the request has none.
func (m *UserAgent) ProcessRequest(_ context.Context, req *model.Request) (*model.Request, *model.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return req, nil, nil
	}
	if req.Header == nil {
		req.Header = make(http.Header, 1)
	}
	idx := (m.next.Add(1) - 1) % uint64(len(m.agents))
	req.Header.Set("User-Agent", m.agents[idx])
	return req, nil, nil
}

// AllowedCodes retries responses whose status is neither 2xx nor in the
// configured allow list. Redirect and error statuses a spider wants to
// parse belong in Settings.AllowedCodes.
type AllowedCodes struct {
	Nop
	allowed map[int]struct{}
}

// NewAllowedCodes returns the status filter middleware.
func NewAllowedCodes(settings *config.Settings) *AllowedCodes {
	allowed := make(map[int]struct{}, len(settings.AllowedCodes))
	for _, code := range settings.AllowedCodes {
		allowed[code] = struct{}{}
	}
	return &AllowedCodes{allowed: allowed}
}

// Name identifies the middleware in logs.
func (m *AllowedCodes) Name() string { return "allowed_codes" }

// ProcessResponse signals a retry for statuses outside the allowed set.
func (m *AllowedCodes) ProcessResponse(_ context.Context, _ *model.Request, resp *model.Response) (*model.Response, error) {
	if resp.OK() {
		return nil, nil
	}
	if _, ok := m.allowed[resp.StatusCode]; ok {
		return nil, nil
	}
	return nil, fmt.Errorf("status %d outside allowed set: %w", resp.StatusCode, ErrRetryRequest)
}
