package model

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Request validation errors.
var (
	// ErrEmptyURL is returned when a request URL is empty.
	ErrEmptyURL = errors.New("request url cannot be empty")
	// ErrInvalidURL is returned when a request URL cannot be parsed or is
	// not absolute.
	ErrInvalidURL = errors.New("request url must be absolute")
)

// Request represents one unit of fetch work. Requests are created by
// spiders, deduplicated and ordered by the scheduler, and dispatched by
// the engine. A Request must survive a JSON round-trip unchanged because
// the shared store moves it between processes.
type Request struct {
	// ID uniquely identifies this request across all crawl processes.
	// Assigned by NewRequest; retries keep the original ID.
	ID string `json:"id"`

	// URL is the absolute URL to fetch.
	URL string `json:"url"`

	// Method is the HTTP method. NewRequest defaults it to GET.
	Method string `json:"method"`

	// Header contains HTTP headers to send with the request.
	Header http.Header `json:"header,omitempty"`

	// Body is the request body for POST/PUT style requests.
	Body []byte `json:"body,omitempty"`

	// Priority orders dispatch. Higher priorities are popped from the
	// frontier before lower ones; equal priorities dispatch FIFO.
	Priority int `json:"priority,omitempty"`

	// Retries counts how many times this request has been re-enqueued
	// after a transient failure.
	Retries int `json:"retries,omitempty"`

	// MaxRetries overrides the configured retry budget for this request.
	// Zero means use the settings default.
	MaxRetries int `json:"max_retries,omitempty"`

	// Timeout overrides the configured download timeout for this request.
	// Zero means use the settings default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Force bypasses duplicate filtering, letting an already-seen URL be
	// scheduled again. Retries set this so the seen set does not swallow
	// them.
	Force bool `json:"force,omitempty"`

	// Callback names the spider parse routine for this request. Spiders
	// that route all responses through Parse can leave it empty.
	Callback string `json:"callback,omitempty"`

	// Meta carries user data across the request/response cycle. Values
	// survive the store round-trip and are visible to middlewares and to
	// the spider when the response comes back.
	Meta map[string]string `json:"meta,omitempty"`
}

// RequestOption configures a Request built by NewRequest.
type RequestOption func(*Request)

// WithMethod sets the HTTP method.
func WithMethod(method string) RequestOption {
	return func(r *Request) {
		r.Method = method
	}
}

// WithHeader adds a header value to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Add(key, value)
	}
}

// WithBody sets the request body.
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		r.Body = body
	}
}

// WithPriority sets the dispatch priority. Higher dispatches first.
func WithPriority(priority int) RequestOption {
	return func(r *Request) {
		r.Priority = priority
	}
}

// WithTimeout overrides the download timeout for this request.
func WithTimeout(timeout time.Duration) RequestOption {
	return func(r *Request) {
		r.Timeout = timeout
	}
}

// WithMaxRetries overrides the retry budget for this request.
func WithMaxRetries(n int) RequestOption {
	return func(r *Request) {
		r.MaxRetries = n
	}
}

// WithForce marks the request to bypass duplicate filtering.
func WithForce() RequestOption {
	return func(r *Request) {
		r.Force = true
	}
}

// WithCallback names the spider parse routine for this request.
func WithCallback(name string) RequestOption {
	return func(r *Request) {
		r.Callback = name
	}
}

// WithMeta attaches a metadata key/value pair to the request.
func WithMeta(key, value string) RequestOption {
	return func(r *Request) {
		if r.Meta == nil {
			r.Meta = make(map[string]string)
		}
		r.Meta[key] = value
	}
}

// NewRequest creates a Request for the given URL. The URL must be
// absolute. The method defaults to GET and the ID is assigned here.
func NewRequest(rawURL string, opts ...RequestOption) (*Request, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, rawURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	r := &Request{
		ID:     uuid.NewString(),
		URL:    rawURL,
		Method: http.MethodGet,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	return r, nil
}

// MustNewRequest creates a Request or panics if the URL is invalid.
// Use only for known-valid URLs in tests or initialization.
func MustNewRequest(rawURL string, opts ...RequestOption) *Request {
	r, err := NewRequest(rawURL, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Retry returns a copy of the request prepared for re-enqueueing after a
// transient failure. The copy keeps the original identity (ID, URL,
// method, body) with Retries incremented and Force set, so the duplicate
// filter does not drop it on the way back into the frontier.
func (r *Request) Retry() *Request {
	next := r.Clone()
	next.Retries++
	next.Force = true
	return next
}

// Clone returns a deep copy of the request. Header, Body, and Meta are
// copied so mutations on the clone never alias the original.
func (r *Request) Clone() *Request {
	next := *r
	if r.Header != nil {
		next.Header = r.Header.Clone()
	}
	if r.Body != nil {
		next.Body = append([]byte(nil), r.Body...)
	}
	if r.Meta != nil {
		next.Meta = make(map[string]string, len(r.Meta))
		for k, v := range r.Meta {
			next.Meta[k] = v
		}
	}
	return &next
}

// Host returns the host component of the request URL, or an empty string
// if the URL does not parse.
func (r *Request) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

// String returns a compact description for logging.
func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL)
}
