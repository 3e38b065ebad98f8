package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These are chosen for polite clearnet crawling; deployments tune them
// per target through a settings file or direct field assignment.
const (
	// DefaultConcurrentRequests is the number of request workers, which is
	// also the upper bound on simultaneously in-flight fetches. Ten workers
	// keep a single host busy without overwhelming it.
	DefaultConcurrentRequests = 10

	// DefaultConcurrentWords is the number of seed-word workers. Word
	// expansion is cheap compared to fetching, so two workers are enough
	// to keep the frontier fed.
	DefaultConcurrentWords = 2

	// DefaultDownloadTimeout is the per-fetch timeout. Individual requests
	// may override it via Request.Timeout.
	DefaultDownloadTimeout = 30 * time.Second

	// DefaultMaxRetries is how many times a request is re-enqueued after
	// transient failures before it is terminally failed.
	DefaultMaxRetries = 3

	// DefaultMaxBodySize limits the response body size read per fetch.
	// 5MB is sufficient for HTML pages while preventing memory exhaustion
	// from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultPollInterval is how long a worker waits before polling the
	// frontier again after finding it empty. It bounds idle churn when
	// ProcessDelay is zero.
	DefaultPollInterval = 200 * time.Millisecond

	// DefaultShutdownGrace is how long in-flight units may keep running
	// after a shutdown signal before they are abandoned.
	DefaultShutdownGrace = 30 * time.Second

	// DefaultIdlePolls is the number of consecutive idle observations
	// (empty frontier, empty word queue, nothing in flight, no pending
	// retries) required before the engine declares the crawl finished.
	DefaultIdlePolls = 3

	// DefaultUserAgent identifies spinneret in HTTP requests. A descriptive
	// User-Agent lets operators recognize crawler traffic in their logs.
	DefaultUserAgent = "spinneret/1.0 (+https://github.com/kylin1020/spinneret)"

	// DefaultKeyPrefix namespaces all shared-store keys so multiple crawls
	// can share one Redis instance.
	DefaultKeyPrefix = "spinneret"

	// AppName is the application name used for XDG directory paths.
	AppName = "spinneret"
)

// Settings holds all configuration options for a crawl.
// The struct is populated at startup (from defaults, a YAML file, or direct
// assignment) and passed by reference into the engine, scheduler, and
// middleware constructors. It must not be mutated after the engine starts.
type Settings struct {
	// ConcurrentRequests bounds how many fetch units run simultaneously.
	// Each unit occupies one worker for its full middleware+fetch+parse
	// sequence, so this is the global in-flight-request limit.
	ConcurrentRequests int

	// ConcurrentWords bounds how many seed-word expansions run
	// simultaneously. Word workers pop words from the scheduler and turn
	// them into requests via the spider's MakeRequest.
	ConcurrentWords int

	// DownloadDelay is the minimum interval between fetches, enforced
	// globally across all request workers. Zero disables throttling.
	// It is also the inter-attempt delay before a retry is re-enqueued.
	DownloadDelay time.Duration

	// ProcessDelay is an unconditional pause applied before each dequeued
	// unit is processed, throttling downstream consumers. Zero disables it.
	ProcessDelay time.Duration

	// PollInterval is how long workers wait before re-polling an empty
	// frontier or word queue. Must be positive; it prevents busy-spinning
	// when ProcessDelay is zero.
	PollInterval time.Duration

	// DownloadTimeout is the default per-fetch timeout. A request may
	// override it with its own Timeout field.
	DownloadTimeout time.Duration

	// MaxRetries is the default number of retry attempts for transient
	// fetch failures. A request may override it with its MaxRetries field.
	// After the budget is exhausted the request is terminally failed and
	// reported, never silently dropped.
	MaxRetries int

	// MaxBodySize limits the response body size in bytes read per fetch.
	// Larger bodies are truncated.
	MaxBodySize int64

	// UserAgent is the User-Agent header value applied by the built-in
	// user-agent middleware when a request does not set its own.
	UserAgent string

	// UserAgents optionally provides a rotation pool. When non-empty, the
	// built-in user-agent middleware picks one entry per request instead
	// of the fixed UserAgent value.
	UserAgents []string

	// DefaultHeaders are applied to every request that does not already
	// set the corresponding header. Populated by the built-in defaults
	// middleware.
	DefaultHeaders map[string]string

	// AllowedCodes lists response status codes accepted in addition to the
	// 2xx class. Responses outside the allowed set trigger the retry
	// policy via the built-in allowed-codes middleware.
	AllowedCodes []int

	// RedisURL is the shared queue store connection string
	// (e.g. "redis://localhost:6379/0"). When set, the engine coordinates
	// the crawl through Redis so multiple worker processes can cooperate;
	// when empty, a process-local in-memory store is used.
	RedisURL string

	// KeyPrefix namespaces shared-store keys. Combined with the spider
	// name, it isolates concurrent crawls on one store.
	KeyPrefix string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	// All fetches are routed through it when set.
	ProxyAddress string

	// ShutdownGrace is how long in-flight units may continue after a
	// shutdown signal before their contexts are cancelled.
	ShutdownGrace time.Duration

	// StopWhenIdle makes the engine stop once the frontier, the word
	// queue, in-flight work, and pending retries have all been observed
	// empty for IdlePolls consecutive checks. Distributed workers that
	// should keep polling a shared store set this to false and run until
	// signalled.
	StopWhenIdle bool

	// IdlePolls is the number of consecutive idle observations required
	// before StopWhenIdle takes effect. Values above one guard against
	// declaring an empty instant between a pop and the resulting enqueue
	// as the end of the crawl.
	IdlePolls int

	// Verbose enables debug-level log output.
	Verbose bool
}

// NewSettings returns Settings populated with defaults.
// Many defaults are non-zero, so construct through this function rather
// than relying on the zero value.
func NewSettings() *Settings {
	return &Settings{
		ConcurrentRequests: DefaultConcurrentRequests,
		ConcurrentWords:    DefaultConcurrentWords,
		PollInterval:       DefaultPollInterval,
		DownloadTimeout:    DefaultDownloadTimeout,
		MaxRetries:         DefaultMaxRetries,
		MaxBodySize:        DefaultMaxBodySize,
		UserAgent:          DefaultUserAgent,
		KeyPrefix:          DefaultKeyPrefix,
		ShutdownGrace:      DefaultShutdownGrace,
		StopWhenIdle:       true,
		IdlePolls:          DefaultIdlePolls,
	}
}

// Validate checks the settings and returns a sentinel error describing the
// first invalid field found. It is called once by the engine constructor
// before any crawling begins, so misconfiguration fails fast with a clear
// diagnostic.
func (s *Settings) Validate() error {
	if s.ConcurrentRequests <= 0 {
		return ErrInvalidConcurrency
	}
	if s.ConcurrentWords <= 0 {
		return ErrInvalidWordConcurrency
	}
	if s.DownloadDelay < 0 || s.ProcessDelay < 0 {
		return ErrNegativeDelay
	}
	if s.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if s.DownloadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if s.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if s.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if s.ShutdownGrace < 0 {
		return ErrInvalidShutdownGrace
	}
	if s.IdlePolls <= 0 {
		return ErrInvalidIdlePolls
	}
	if s.KeyPrefix == "" {
		return ErrEmptyKeyPrefix
	}
	return nil
}

// XDGDataDir returns the XDG data directory for spinneret.
// On Linux: ~/.local/share/spinneret
// On macOS: ~/Library/Application Support/spinneret
// On Windows: %LOCALAPPDATA%\spinneret
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for spinneret.
// On Linux: ~/.config/spinneret
// On macOS: ~/Library/Application Support/spinneret
// On Windows: %APPDATA%\spinneret
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
