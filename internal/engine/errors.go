package engine

import "errors"

var (
	// ErrNilSpider is returned by New when no spider is given.
	ErrNilSpider = errors.New("engine: spider is nil")

	// ErrUnnamedSpider is returned by New when the spider's name is
	// empty. The name namespaces store keys, so it cannot be blank.
	ErrUnnamedSpider = errors.New("engine: spider name is empty")

	// ErrAlreadyStarted is returned by Run when the engine has run
	// before. Engines are single use; build a new one per crawl.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrInvalidProxyAddress is returned when the configured SOCKS5
	// proxy address is not in "host:port" form.
	ErrInvalidProxyAddress = errors.New("engine: proxy address must be host:port")
)
