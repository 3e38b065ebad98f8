// Package spinneret is the public API of the spinneret crawl framework.
//
// A crawl is a Spider (seed words, request construction, response
// parsing) handed to an Engine, which schedules requests through a
// deduplicating priority frontier, fetches them concurrently, routes
// every hop through the middleware chain, and queues parsed items for
// export. The store behind the frontier is in-memory by default and
// Redis when Settings.RedisURL is set, which lets several processes
// share one crawl.
//
// Minimal use:
//
//	settings := spinneret.NewSettings()
//	eng, err := spinneret.NewEngine(settings, mySpider)
//	if err != nil {
//	    // invalid settings, unreachable store, bad middleware
//	}
//	if err := eng.Run(ctx); err != nil {
//	    // crawl aborted
//	}
//
// Everything below re-exports the internal packages so consumers only
// ever import this one.
package spinneret

import (
	"github.com/kylin1020/spinneret/internal/config"
	"github.com/kylin1020/spinneret/internal/engine"
	"github.com/kylin1020/spinneret/internal/export"
	"github.com/kylin1020/spinneret/internal/fingerprint"
	"github.com/kylin1020/spinneret/internal/log"
	"github.com/kylin1020/spinneret/internal/middleware"
	"github.com/kylin1020/spinneret/internal/model"
	"github.com/kylin1020/spinneret/internal/scheduler"
	"github.com/kylin1020/spinneret/internal/spider"
	"github.com/kylin1020/spinneret/internal/stats"
	"github.com/kylin1020/spinneret/internal/store"
)

// Configuration types.
type (
	Settings = config.Settings
	File     = config.File
	Duration = config.Duration
)

// Configuration functions.
var (
	NewSettings    = config.NewSettings
	LoadFile       = config.LoadFile
	Load           = config.Load
	FindConfigFile = config.FindConfigFile
)

// DefaultConfigFile is the file name searched for by FindConfigFile.
const DefaultConfigFile = config.DefaultConfigFile

// Configuration errors.
var (
	ErrConfigNotFound         = config.ErrConfigNotFound
	ErrInvalidConcurrency     = config.ErrInvalidConcurrency
	ErrInvalidWordConcurrency = config.ErrInvalidWordConcurrency
	ErrNegativeDelay          = config.ErrNegativeDelay
	ErrInvalidPollInterval    = config.ErrInvalidPollInterval
	ErrInvalidTimeout         = config.ErrInvalidTimeout
	ErrInvalidMaxRetries      = config.ErrInvalidMaxRetries
	ErrInvalidMaxBodySize     = config.ErrInvalidMaxBodySize
	ErrInvalidShutdownGrace   = config.ErrInvalidShutdownGrace
	ErrInvalidIdlePolls       = config.ErrInvalidIdlePolls
	ErrEmptyKeyPrefix         = config.ErrEmptyKeyPrefix
)

// Crawl data types.
type (
	Request       = model.Request
	RequestOption = model.RequestOption
	Response      = model.Response
	Item          = model.Item
	ParseResult   = model.ParseResult
)

// Request construction.
var (
	NewRequest     = model.NewRequest
	MustNewRequest = model.MustNewRequest
	WithMethod     = model.WithMethod
	WithHeader     = model.WithHeader
	WithBody       = model.WithBody
	WithPriority   = model.WithPriority
	WithTimeout    = model.WithTimeout
	WithMaxRetries = model.WithMaxRetries
	WithForce      = model.WithForce
	WithCallback   = model.WithCallback
	WithMeta       = model.WithMeta
)

// Item serialization.
var (
	MarshalItem   = model.MarshalItem
	UnmarshalItem = model.UnmarshalItem
)

// Request validation errors.
var (
	ErrEmptyURL   = model.ErrEmptyURL
	ErrInvalidURL = model.ErrInvalidURL
)

// Spider contract.
type (
	Spider       = spider.Spider
	ErrorHandler = spider.ErrorHandler
)

// Middleware types.
type (
	Middleware   = middleware.Middleware
	Nop          = middleware.Nop
	Chain        = middleware.Chain
	SetDefaults  = middleware.SetDefaults
	UserAgent    = middleware.UserAgent
	AllowedCodes = middleware.AllowedCodes
	Robots       = middleware.Robots
)

// Middleware constructors.
var (
	NewChain        = middleware.NewChain
	NewSetDefaults  = middleware.NewSetDefaults
	NewUserAgent    = middleware.NewUserAgent
	NewAllowedCodes = middleware.NewAllowedCodes
	NewRobots       = middleware.NewRobots
)

// Middleware chain signals and registration bounds.
var (
	ErrDropRequest        = middleware.ErrDropRequest
	ErrRetryRequest       = middleware.ErrRetryRequest
	ErrDropItem           = middleware.ErrDropItem
	ErrPriorityOutOfRange = middleware.ErrPriorityOutOfRange
)

// Registration priorities of the built-in middlewares, and the accepted
// priority range.
const (
	MinPriority          = middleware.MinPriority
	MaxPriority          = middleware.MaxPriority
	PrioritySetDefaults  = middleware.PrioritySetDefaults
	PriorityUserAgent    = middleware.PriorityUserAgent
	PriorityAllowedCodes = middleware.PriorityAllowedCodes
)

// Store types. The Engine picks the store from Settings.RedisURL;
// direct construction is for exporter processes and custom wiring.
type (
	Store       = store.Store
	MemoryStore = store.Memory
	RedisStore  = store.Redis
)

// Store constructors.
var (
	NewMemoryStore = store.NewMemory
	NewRedisStore  = store.NewRedis
)

// ErrEmpty reports an empty queue on pop operations.
var ErrEmpty = store.ErrEmpty

// Scheduler types.
type (
	Scheduler     = scheduler.Scheduler
	FailureRecord = scheduler.FailureRecord
)

// NewScheduler wraps a Store with fingerprint dedup and the named
// queues.
var NewScheduler = scheduler.New

// Engine types.
type (
	Engine      = engine.Engine
	Option      = engine.Option
	Fetcher     = engine.Fetcher
	HTTPFetcher = engine.HTTPFetcher
)

// Engine construction.
var (
	NewEngine                 = engine.New
	NewHTTPFetcher            = engine.NewHTTPFetcher
	WithMiddleware            = engine.WithMiddleware
	WithoutDefaultMiddlewares = engine.WithoutDefaultMiddlewares
	WithLogger                = engine.WithLogger
	WithFetcher               = engine.WithFetcher
	WithStore                 = engine.WithStore
	WithExporter              = engine.WithExporter
)

// IsTransient reports whether a fetch error is worth retrying.
var IsTransient = engine.IsTransient

// Engine errors.
var (
	ErrNilSpider           = engine.ErrNilSpider
	ErrUnnamedSpider       = engine.ErrUnnamedSpider
	ErrAlreadyStarted      = engine.ErrAlreadyStarted
	ErrInvalidProxyAddress = engine.ErrInvalidProxyAddress
)

// Export types.
type (
	Exporter       = export.Exporter
	CSVExporter    = export.CSV
	CSVOption      = export.CSVOption
	SQLiteExporter = export.SQLite
	Runner         = export.Runner
	RunnerOption   = export.RunnerOption
)

// Export constructors.
var (
	NewCSV             = export.NewCSV
	NewCSVFile         = export.NewCSVFile
	WithDelimiter      = export.WithDelimiter
	OpenSQLite         = export.OpenSQLite
	DefaultDatabaseDir = export.DefaultDatabaseDir
	NewRunner          = export.NewRunner
	WithRunnerLogger   = export.WithRunnerLogger
)

// ErrExporterClosed reports use of a closed exporter.
var ErrExporterClosed = export.ErrClosed

// Stats types.
type (
	Collector = stats.Collector
	Snapshot  = stats.Snapshot
)

// Stats functions.
var (
	NewCollector  = stats.New
	WriteMarkdown = stats.WriteMarkdown
)

// Logging with credential redaction.
type RedactingHandler = log.RedactingHandler

var (
	NewLogger           = log.NewLogger
	NewJSONLogger       = log.NewJSONLogger
	NewRedactingHandler = log.NewRedactingHandler
)

// MaskValue replaces redacted log attribute values.
const MaskValue = log.MaskValue

// Request identity.
var (
	Fingerprint        = fingerprint.ForRequest
	ComputeFingerprint = fingerprint.Compute
	NormalizeURL       = fingerprint.Normalize
	ErrUnparsableURL   = fingerprint.ErrUnparsableURL
)
