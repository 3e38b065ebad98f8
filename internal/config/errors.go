package config

import "errors"

// Configuration validation errors.
// These are returned by Settings.Validate() so callers can match them with
// errors.Is while still getting a human-readable diagnostic.
var (
	// ErrInvalidConcurrency is returned when ConcurrentRequests is not
	// positive. Zero request workers would dispatch nothing.
	ErrInvalidConcurrency = errors.New("invalid concurrent requests: must be positive")

	// ErrInvalidWordConcurrency is returned when ConcurrentWords is not
	// positive. Zero word workers would leave the seed queue unconsumed.
	ErrInvalidWordConcurrency = errors.New("invalid concurrent words: must be positive")

	// ErrNegativeDelay is returned when DownloadDelay or ProcessDelay is
	// negative. Use 0 to disable a delay.
	ErrNegativeDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidPollInterval is returned when PollInterval is not positive.
	// Workers rely on it to avoid busy-spinning on an empty frontier.
	ErrInvalidPollInterval = errors.New("invalid poll interval: must be positive")

	// ErrInvalidTimeout is returned when DownloadTimeout is not positive.
	// A zero timeout would fail every fetch immediately.
	ErrInvalidTimeout = errors.New("invalid download timeout: must be positive")

	// ErrInvalidMaxRetries is returned when MaxRetries is negative.
	// Use 0 to disable retries entirely.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidMaxBodySize is returned when MaxBodySize is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidShutdownGrace is returned when ShutdownGrace is negative.
	// Use 0 to abandon in-flight work immediately on shutdown.
	ErrInvalidShutdownGrace = errors.New("invalid shutdown grace: must be non-negative")

	// ErrInvalidIdlePolls is returned when IdlePolls is not positive.
	ErrInvalidIdlePolls = errors.New("invalid idle polls: must be positive")

	// ErrEmptyKeyPrefix is returned when KeyPrefix is empty. Shared-store
	// keys must be namespaced so concurrent crawls do not collide.
	ErrEmptyKeyPrefix = errors.New("invalid key prefix: must not be empty")
)
