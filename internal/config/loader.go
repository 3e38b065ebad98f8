package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".spinneret.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .spinneret.yaml configuration file.
// All fields are optional; absent fields keep the built-in defaults.
// Duration fields accept Go duration strings ("250ms") or numeric seconds.
type File struct {
	// ConcurrentRequests overrides the maximum in-flight request count.
	ConcurrentRequests int `yaml:"concurrentRequests,omitempty"`

	// ConcurrentWords overrides the maximum concurrently expanded words.
	ConcurrentWords int `yaml:"concurrentWords,omitempty"`

	// DownloadDelay overrides the minimum delay between fetches.
	DownloadDelay *Duration `yaml:"downloadDelay,omitempty"`

	// ProcessDelay overrides the pause before each scheduling unit.
	ProcessDelay *Duration `yaml:"processDelay,omitempty"`

	// PollInterval overrides the empty-queue polling interval.
	PollInterval *Duration `yaml:"pollInterval,omitempty"`

	// DownloadTimeout overrides the per-request fetch timeout.
	DownloadTimeout *Duration `yaml:"downloadTimeout,omitempty"`

	// MaxRetries overrides the retry budget per request.
	MaxRetries *int `yaml:"maxRetries,omitempty"`

	// MaxBodySize overrides the response body size cap in bytes.
	MaxBodySize int64 `yaml:"maxBodySize,omitempty"`

	// UserAgent overrides the default User-Agent header value.
	UserAgent string `yaml:"userAgent,omitempty"`

	// UserAgents supplies a rotation pool for the user agent middleware.
	UserAgents []string `yaml:"userAgents,omitempty"`

	// DefaultHeaders are headers applied to every outgoing request.
	DefaultHeaders map[string]string `yaml:"defaultHeaders,omitempty"`

	// AllowedCodes lists extra HTTP status codes to accept as success.
	AllowedCodes []int `yaml:"allowedCodes,omitempty"`

	// RedisURL selects the shared Redis store when non-empty.
	RedisURL string `yaml:"redisURL,omitempty"`

	// KeyPrefix overrides the shared store key namespace.
	KeyPrefix string `yaml:"keyPrefix,omitempty"`

	// ProxyAddress routes fetches through a SOCKS5 proxy when non-empty.
	ProxyAddress string `yaml:"proxyAddress,omitempty"`

	// ShutdownGrace overrides how long in-flight work may run after stop.
	ShutdownGrace *Duration `yaml:"shutdownGrace,omitempty"`

	// StopWhenIdle overrides whether the engine exits once all queues drain.
	StopWhenIdle *bool `yaml:"stopWhenIdle,omitempty"`

	// IdlePolls overrides how many consecutive empty checks count as idle.
	IdlePolls *int `yaml:"idlePolls,omitempty"`

	// Verbose enables debug logging.
	Verbose *bool `yaml:"verbose,omitempty"`
}

// LoadFile loads settings overrides from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Apply merges the file overrides into s. Zero values and nil pointers
// leave the corresponding setting untouched, so a sparse file only
// changes what it names.
func (cf *File) Apply(s *Settings) {
	if cf.ConcurrentRequests > 0 {
		s.ConcurrentRequests = cf.ConcurrentRequests
	}
	if cf.ConcurrentWords > 0 {
		s.ConcurrentWords = cf.ConcurrentWords
	}
	if cf.DownloadDelay != nil {
		s.DownloadDelay = cf.DownloadDelay.Duration
	}
	if cf.ProcessDelay != nil {
		s.ProcessDelay = cf.ProcessDelay.Duration
	}
	if cf.PollInterval != nil {
		s.PollInterval = cf.PollInterval.Duration
	}
	if cf.DownloadTimeout != nil {
		s.DownloadTimeout = cf.DownloadTimeout.Duration
	}
	if cf.MaxRetries != nil {
		s.MaxRetries = *cf.MaxRetries
	}
	if cf.MaxBodySize > 0 {
		s.MaxBodySize = cf.MaxBodySize
	}
	if cf.UserAgent != "" {
		s.UserAgent = cf.UserAgent
	}
	if len(cf.UserAgents) > 0 {
		s.UserAgents = cf.UserAgents
	}
	if len(cf.DefaultHeaders) > 0 {
		if s.DefaultHeaders == nil {
			s.DefaultHeaders = make(map[string]string, len(cf.DefaultHeaders))
		}
		for k, v := range cf.DefaultHeaders {
			s.DefaultHeaders[k] = v
		}
	}
	if len(cf.AllowedCodes) > 0 {
		s.AllowedCodes = cf.AllowedCodes
	}
	if cf.RedisURL != "" {
		s.RedisURL = cf.RedisURL
	}
	if cf.KeyPrefix != "" {
		s.KeyPrefix = cf.KeyPrefix
	}
	if cf.ProxyAddress != "" {
		s.ProxyAddress = cf.ProxyAddress
	}
	if cf.ShutdownGrace != nil {
		s.ShutdownGrace = cf.ShutdownGrace.Duration
	}
	if cf.StopWhenIdle != nil {
		s.StopWhenIdle = *cf.StopWhenIdle
	}
	if cf.IdlePolls != nil {
		s.IdlePolls = *cf.IdlePolls
	}
	if cf.Verbose != nil {
		s.Verbose = *cf.Verbose
	}
}

// Load builds Settings from defaults overlaid with the configuration file
// at path. An empty path triggers the FindConfigFile search; a missing
// file in that case is not an error and the defaults are returned as is.
func Load(path string) (*Settings, error) {
	s := NewSettings()

	explicit := path != ""
	if !explicit {
		path = FindConfigFile("")
		if path == "" {
			return s, nil
		}
	}

	cf, err := LoadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, ErrConfigNotFound) {
			return s, nil
		}
		return nil, err
	}

	cf.Apply(s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .spinneret.yaml in the current directory
// 3. Look for .spinneret.yaml in the XDG config directory
// 4. Look for .spinneret.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	// Check XDG config directory
	xdgConfig := filepath.Join(XDGConfigDir(), DefaultConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
