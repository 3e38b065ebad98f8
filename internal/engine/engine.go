package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kylin1020/spinneret/internal/config"
	"github.com/kylin1020/spinneret/internal/export"
	"github.com/kylin1020/spinneret/internal/fingerprint"
	"github.com/kylin1020/spinneret/internal/middleware"
	"github.com/kylin1020/spinneret/internal/model"
	"github.com/kylin1020/spinneret/internal/scheduler"
	"github.com/kylin1020/spinneret/internal/spider"
	"github.com/kylin1020/spinneret/internal/stats"
	"github.com/kylin1020/spinneret/internal/store"
)

// Engine coordinates a crawl. Build one with New, start it with Run,
// and stop it early with Close or by cancelling Run's context.
type Engine struct {
	settings  *config.Settings
	spider    spider.Spider
	store     store.Store
	sched     *scheduler.Scheduler
	chain     *middleware.Chain
	fetcher   Fetcher
	exporter  export.Exporter
	collector *stats.Collector
	logger    *slog.Logger

	// limiter paces fetches globally; nil when DownloadDelay is zero.
	limiter *rate.Limiter

	started        atomic.Bool
	inflight       atomic.Int64
	pendingRetries atomic.Int64
	retryWG        sync.WaitGroup

	closeOnce   sync.Once
	closed      chan struct{}
	closeReason string

	stopMu     sync.Mutex
	stopReason string
}

// registration pairs a middleware with its chain priority until New
// applies it.
type registration struct {
	mw       middleware.Middleware
	priority int
}

// options collects everything Option functions can override.
type options struct {
	middlewares []registration
	noDefaults  bool
	logger      *slog.Logger
	fetcher     Fetcher
	store       store.Store
	exporter    export.Exporter
}

// Option configures an Engine at construction time.
type Option func(*options)

// WithMiddleware registers a middleware at the given chain priority.
// The request stage runs ascending, the response, exception, and item
// stages descending.
func WithMiddleware(mw middleware.Middleware, priority int) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, registration{mw: mw, priority: priority})
	}
}

// WithoutDefaultMiddlewares skips the built-in middlewares, leaving
// only those registered via WithMiddleware.
func WithoutDefaultMiddlewares() Option {
	return func(o *options) {
		o.noDefaults = true
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithStore replaces the store chosen from the settings.
func WithStore(s store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithExporter attaches an exporter. The engine then drains the item
// queue through it while crawling and flushes it before Run returns.
// The caller keeps ownership and closes the exporter after Run.
func WithExporter(e export.Exporter) Option {
	return func(o *options) {
		o.exporter = e
	}
}

// New wires an engine for the given spider. The store comes from the
// settings (Redis when RedisURL is set, in-memory otherwise), the
// middleware chain starts with the built-ins unless disabled, and every
// wiring problem surfaces here rather than mid-crawl.
func New(settings *config.Settings, sp spider.Spider, opts ...Option) (*Engine, error) {
	if settings == nil {
		settings = config.NewSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}
	if sp == nil {
		return nil, ErrNilSpider
	}
	if sp.Name() == "" {
		return nil, ErrUnnamedSpider
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	st := o.store
	if st == nil {
		if settings.RedisURL != "" {
			var err error
			st, err = store.NewRedis(context.Background(), settings.RedisURL, settings.KeyPrefix, sp.Name())
			if err != nil {
				return nil, fmt.Errorf("connect shared store: %w", err)
			}
		} else {
			st = store.NewMemory()
		}
	}

	fetcher := o.fetcher
	if fetcher == nil {
		var err error
		fetcher, err = NewHTTPFetcher(settings)
		if err != nil {
			return nil, fmt.Errorf("build fetcher: %w", err)
		}
	}

	chain := middleware.NewChain()
	if !o.noDefaults {
		builtins := []registration{
			{mw: middleware.NewSetDefaults(settings), priority: middleware.PrioritySetDefaults},
			{mw: middleware.NewUserAgent(settings), priority: middleware.PriorityUserAgent},
			{mw: middleware.NewAllowedCodes(settings), priority: middleware.PriorityAllowedCodes},
		}
		for _, r := range builtins {
			if err := chain.Register(r.mw, r.priority); err != nil {
				return nil, fmt.Errorf("register %s middleware: %w", r.mw.Name(), err)
			}
		}
	}
	for _, r := range o.middlewares {
		if err := chain.Register(r.mw, r.priority); err != nil {
			return nil, fmt.Errorf("register %s middleware: %w", r.mw.Name(), err)
		}
	}

	var limiter *rate.Limiter
	if settings.DownloadDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(settings.DownloadDelay), 1)
	}

	return &Engine{
		settings:  settings,
		spider:    sp,
		store:     st,
		sched:     scheduler.New(st),
		chain:     chain,
		fetcher:   fetcher,
		exporter:  o.exporter,
		collector: stats.New(sp.Name()),
		logger:    o.logger,
		limiter:   limiter,
		closed:    make(chan struct{}),
	}, nil
}

// Scheduler returns the engine's scheduler, giving access to the word,
// item, and failure queues behind the crawl.
func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.sched
}

// Stats returns a snapshot of the crawl counters.
func (e *Engine) Stats() stats.Snapshot {
	return e.collector.Snapshot()
}

// WriteReport renders the current counters as a Markdown report.
func (e *Engine) WriteReport(w io.Writer) error {
	return stats.WriteMarkdown(w, e.collector.Snapshot())
}

// Close asks a running engine to stop gracefully. The reason shows up
// in the stats snapshot and the final log line. Close is safe to call
// at any time, from any goroutine, and more than once.
func (e *Engine) Close(reason string) {
	e.closeOnce.Do(func() {
		e.closeReason = reason
		close(e.closed)
	})
}

// Run seeds the spider's words and crawls until the frontier is
// exhausted (when StopWhenIdle is set), Close is called, or ctx is
// cancelled. On cancellation the workers stop dequeuing immediately,
// in-flight units get ShutdownGrace to finish on a detached context,
// pending retries flush their re-enqueue so the store stays consistent,
// and a configured exporter is drained and flushed before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Units keep running through shutdown until the grace expires.
	unitCtx, unitCancel := context.WithCancel(context.WithoutCancel(runCtx))
	defer unitCancel()
	go func() {
		<-runCtx.Done()
		select {
		case <-unitCtx.Done():
		case <-time.After(e.settings.ShutdownGrace):
			unitCancel()
		}
	}()

	go func() {
		select {
		case <-e.closed:
			e.stop(e.closeReason, cancel)
		case <-runCtx.Done():
		}
	}()

	e.collector.Start()
	e.logger.Info("engine starting",
		"spider", e.spider.Name(),
		"concurrent_requests", e.settings.ConcurrentRequests,
		"concurrent_words", e.settings.ConcurrentWords,
		"stop_when_idle", e.settings.StopWhenIdle)

	if words := e.spider.Words(); len(words) > 0 {
		if err := e.sched.PushWords(runCtx, words...); err != nil {
			e.collector.Finish("error")
			return fmt.Errorf("seed words: %w", err)
		}
		e.logger.Info("seeded words", "count", len(words))
	}

	var pumpWG sync.WaitGroup
	stopPump := func() {}
	if e.exporter != nil {
		pumpCtx, pumpCancel := context.WithCancel(context.WithoutCancel(ctx))
		stopPump = pumpCancel
		runner := export.NewRunner(e.sched, e.exporter, export.WithRunnerLogger(e.logger))
		pumpWG.Add(1)
		go func() {
			defer pumpWG.Done()
			e.pumpItems(pumpCtx, runner)
		}()
	}

	if e.settings.StopWhenIdle {
		go e.idleMonitor(runCtx, cancel)
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < e.settings.ConcurrentWords; i++ {
		g.Go(func() error {
			return e.wordLoop(gctx, unitCtx)
		})
	}
	for i := 0; i < e.settings.ConcurrentRequests; i++ {
		g.Go(func() error {
			return e.requestLoop(gctx, unitCtx)
		})
	}

	err := g.Wait()

	// Release retry timers and the idle monitor, flush retries, then
	// let the exporter pump make its final drain.
	cancel()
	e.retryWG.Wait()
	stopPump()
	pumpWG.Wait()

	reason, runErr := e.finish(err)
	e.collector.Finish(reason)

	snap := e.collector.Snapshot()
	e.logger.Info("engine stopped",
		"spider", e.spider.Name(),
		"reason", reason,
		"requests", snap.Requests,
		"responses", snap.Responses,
		"items", snap.Items,
		"retries", snap.Retries,
		"failures", snap.Failures,
		"elapsed", snap.Elapsed().Round(time.Millisecond))

	return runErr
}

// stop records why the engine is stopping and cancels the run. The
// first reason wins.
func (e *Engine) stop(reason string, cancel context.CancelFunc) {
	e.stopMu.Lock()
	if e.stopReason == "" {
		e.stopReason = reason
	}
	e.stopMu.Unlock()
	cancel()
}

// finish maps the worker group result to the stop reason and Run's
// return value. Idle and Close stops are clean; external cancellation
// and store failures are returned to the caller.
func (e *Engine) finish(err error) (string, error) {
	e.stopMu.Lock()
	reason := e.stopReason
	e.stopMu.Unlock()

	switch {
	case err == nil:
		if reason == "" {
			reason = "finished"
		}
		return reason, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if reason != "" {
			return reason, nil
		}
		return "cancelled", err
	default:
		return "error", err
	}
}

// wordLoop pops seed words and expands them until the run context is
// cancelled. A store failure aborts the run.
func (e *Engine) wordLoop(ctx, unitCtx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		word, err := e.sched.NextWord(ctx)
		if errors.Is(err, store.ErrEmpty) {
			if err := e.pause(ctx, e.settings.PollInterval); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("pop word: %w", err)
		}

		e.inflight.Add(1)
		e.pace(ctx)
		err = e.processWord(unitCtx, word)
		e.inflight.Add(-1)
		if err != nil {
			return err
		}
	}
}

// requestLoop pops scheduled requests and runs one unit of work at a
// time until the run context is cancelled. A store failure aborts the
// run.
func (e *Engine) requestLoop(ctx, unitCtx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := e.sched.Dequeue(ctx)
		if errors.Is(err, store.ErrEmpty) {
			if err := e.pause(ctx, e.settings.PollInterval); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("dequeue request: %w", err)
		}

		e.inflight.Add(1)
		e.pace(ctx)
		err = e.processRequest(ctx, unitCtx, req)
		e.inflight.Add(-1)
		if err != nil {
			return err
		}
	}
}

// pause waits out an empty-queue poll interval or returns the context
// error.
func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pace applies the per-unit process delay. A dequeued unit is already
// committed, so cancellation only cuts the pacing short.
func (e *Engine) pace(ctx context.Context) {
	d := e.settings.ProcessDelay
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// processWord expands one seed word into requests. Failures are
// isolated to the word; only store errors propagate.
func (e *Engine) processWord(ctx context.Context, word string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.collector.ObserveException()
			e.logger.Error("word unit panicked", "word", word, "panic", r)
			err = nil
		}
	}()

	e.collector.ObserveWord()

	reqs, merr := e.spider.MakeRequest(ctx, word)
	if merr != nil {
		e.collector.ObserveException()
		e.logger.Error("make request failed", "word", word, "error", merr)
		return nil
	}

	for _, req := range reqs {
		if req == nil {
			continue
		}
		if err := e.enqueue(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// processRequest runs one unit of work: the request middleware stage,
// the fetch (or a middleware short-circuit), the response stage, and
// the spider callback. Failures are isolated to the unit; only store
// errors propagate.
func (e *Engine) processRequest(ctx, unitCtx context.Context, req *model.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.collector.ObserveException()
			e.logger.Error("request unit panicked", "url", req.URL, "panic", r)
			e.failRequest(unitCtx, req, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	e.collector.ObserveRequest()

	final, shortcut, herr := e.chain.HandleRequest(unitCtx, req)
	if herr != nil {
		return e.routeError(ctx, unitCtx, req, herr)
	}

	resp := shortcut
	if resp == nil {
		if e.limiter != nil {
			// A cancelled wait means shutdown; the unit is committed
			// and proceeds unpaced.
			_ = e.limiter.Wait(ctx)
		}
		var ferr error
		resp, ferr = e.fetcher.Fetch(unitCtx, final)
		if ferr != nil {
			return e.routeError(ctx, unitCtx, final, ferr)
		}
	}

	return e.handleResponse(ctx, unitCtx, final, resp)
}

// handleResponse runs the response middleware stage and hands the
// result to the spider, scheduling follow-up requests and queueing
// items.
func (e *Engine) handleResponse(ctx, unitCtx context.Context, req *model.Request, resp *model.Response) error {
	e.collector.ObserveResponse(resp.StatusCode)
	e.logger.Debug("response received",
		"url", req.URL, "status", resp.StatusCode, "elapsed", resp.Elapsed)

	resp, herr := e.chain.HandleResponse(unitCtx, req, resp)
	if herr != nil {
		return e.routeError(ctx, unitCtx, req, herr)
	}

	result, perr := e.spider.Parse(unitCtx, resp)
	if perr != nil {
		e.collector.ObserveException()
		e.failRequest(unitCtx, req, fmt.Errorf("parse: %w", perr))
		return nil
	}
	if result == nil {
		return nil
	}

	for _, followup := range result.Requests {
		if followup == nil {
			continue
		}
		if err := e.enqueue(unitCtx, followup); err != nil {
			return err
		}
	}
	for _, item := range result.Items {
		if item == nil {
			continue
		}
		if err := e.processItem(unitCtx, req, item); err != nil {
			return err
		}
	}
	return nil
}

// processItem runs the item middleware stage and pushes the survivor
// onto the durable item queue.
func (e *Engine) processItem(ctx context.Context, req *model.Request, item model.Item) error {
	out, herr := e.chain.HandleItem(ctx, item)
	if herr != nil {
		if errors.Is(herr, middleware.ErrDropItem) {
			e.collector.ObserveItemDrop()
			e.logger.Debug("item dropped", "url", req.URL, "error", herr)
			return nil
		}
		e.collector.ObserveException()
		e.logger.Error("item stage failed", "url", req.URL, "error", herr)
		return nil
	}

	if err := e.sched.PushItem(ctx, out); err != nil {
		return fmt.Errorf("queue item: %w", err)
	}
	e.collector.ObserveItem()
	return nil
}

// routeError resolves a unit error: drop and retry signals act
// immediately, everything else goes through the exception middleware
// stage. An unresolved transient error is retried; anything else fails
// the request terminally.
func (e *Engine) routeError(ctx, unitCtx context.Context, req *model.Request, cause error) error {
	switch {
	case errors.Is(cause, middleware.ErrDropRequest):
		e.dropRequest(req, cause)
		return nil
	case errors.Is(cause, middleware.ErrRetryRequest):
		return e.retryOrFail(ctx, unitCtx, req, cause)
	}

	e.collector.ObserveException()
	synthetic, exErr := e.chain.HandleException(unitCtx, req, cause)
	if synthetic != nil {
		// A middleware resolved the exception; its response re-enters
		// the normal response path.
		return e.handleResponse(ctx, unitCtx, req, synthetic)
	}

	switch {
	case exErr == nil:
		return nil
	case errors.Is(exErr, middleware.ErrDropRequest):
		e.dropRequest(req, exErr)
		return nil
	case errors.Is(exErr, middleware.ErrRetryRequest), IsTransient(exErr):
		return e.retryOrFail(ctx, unitCtx, req, exErr)
	default:
		e.failRequest(unitCtx, req, exErr)
		return nil
	}
}

// dropRequest records a middleware-initiated drop.
func (e *Engine) dropRequest(req *model.Request, cause error) {
	e.collector.ObserveMiddlewareDrop()
	e.logger.Debug("request dropped", "url", req.URL, "error", cause)
}

// retryOrFail re-enqueues the request after the download delay, or
// fails it terminally once the retry budget is spent. Retries waiting
// on their timer are flushed immediately at shutdown so they land in
// the store for the next run.
func (e *Engine) retryOrFail(ctx, unitCtx context.Context, req *model.Request, cause error) error {
	budget := req.MaxRetries
	if budget <= 0 {
		budget = e.settings.MaxRetries
	}
	if req.Retries >= budget {
		e.failRequest(unitCtx, req, fmt.Errorf("retry budget exhausted (%d of %d): %w", req.Retries, budget, cause))
		return nil
	}

	e.collector.ObserveRetry()
	retry := req.Retry()
	e.logger.Debug("retry scheduled",
		"url", req.URL, "attempt", retry.Retries, "error", cause)

	delay := e.settings.DownloadDelay
	if delay <= 0 {
		return e.enqueue(unitCtx, retry)
	}

	e.pendingRetries.Add(1)
	e.retryWG.Add(1)
	go func() {
		defer e.retryWG.Done()
		defer e.pendingRetries.Add(-1)

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}

		if err := e.enqueue(unitCtx, retry); err != nil {
			e.logger.Error("retry enqueue failed", "url", retry.URL, "error", err)
		}
	}()
	return nil
}

// failRequest records a terminal failure: the spider's error handler
// may schedule recovery requests, then the failure is written to the
// store's failure list.
func (e *Engine) failRequest(ctx context.Context, req *model.Request, cause error) {
	e.collector.ObserveFailure()
	e.logger.Warn("request failed",
		"url", req.URL, "retries", req.Retries, "error", cause)

	if handler, ok := e.spider.(spider.ErrorHandler); ok {
		for _, followup := range handler.HandleError(ctx, req, cause) {
			if followup == nil {
				continue
			}
			if err := e.enqueue(ctx, followup); err != nil {
				e.logger.Error("errback enqueue failed", "url", followup.URL, "error", err)
			}
		}
	}

	if err := e.sched.RecordFailure(ctx, req, cause.Error()); err != nil {
		e.logger.Error("failure record write failed", "url", req.URL, "error", err)
	}
}

// enqueue schedules a request, counting duplicate drops. Requests the
// scheduler cannot fingerprint are dropped with a warning; only store
// errors are returned.
func (e *Engine) enqueue(ctx context.Context, req *model.Request) error {
	admitted, err := e.sched.Enqueue(ctx, req)
	if err != nil {
		if isRequestError(err) {
			e.collector.ObserveException()
			e.logger.Warn("unschedulable request dropped", "url", req.URL, "error", err)
			return nil
		}
		return fmt.Errorf("enqueue request: %w", err)
	}
	if !admitted {
		e.collector.ObserveDedupDrop()
		e.logger.Debug("duplicate request dropped", "url", req.URL)
		return nil
	}
	e.logger.Debug("request scheduled", "url", req.URL, "priority", req.Priority)
	return nil
}

// isRequestError reports whether an enqueue failure is the request's
// own fault rather than a store problem.
func isRequestError(err error) bool {
	return errors.Is(err, model.ErrEmptyURL) ||
		errors.Is(err, model.ErrInvalidURL) ||
		errors.Is(err, fingerprint.ErrUnparsableURL)
}

// idleMonitor stops the run once the frontier, word queue, in-flight
// units, and pending retries have been empty for IdlePolls consecutive
// checks.
func (e *Engine) idleMonitor(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(e.settings.PollInterval)
	defer ticker.Stop()

	idle := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if e.isIdle(ctx) {
			idle++
		} else {
			idle = 0
		}
		if idle >= e.settings.IdlePolls {
			e.stop("idle", cancel)
			return
		}
	}
}

// isIdle reports whether nothing is queued, in flight, or waiting on a
// retry timer. Store errors read as busy; the worker loops surface
// them.
func (e *Engine) isIdle(ctx context.Context) bool {
	if e.inflight.Load() != 0 || e.pendingRetries.Load() != 0 {
		return false
	}
	frontier, err := e.sched.Size(ctx)
	if err != nil || frontier != 0 {
		return false
	}
	words, err := e.sched.WordCount(ctx)
	if err != nil || words != 0 {
		return false
	}
	return true
}

// pumpItems moves queued items through the exporter while the crawl
// runs. On shutdown it makes a final bounded drain so completed units'
// items are flushed before Run returns.
func (e *Engine) pumpItems(ctx context.Context, runner *export.Runner) {
	ticker := time.NewTicker(e.settings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), e.settings.ShutdownGrace)
			if _, err := runner.DrainOnce(drainCtx); err != nil {
				e.logger.Error("final export drain failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if _, err := runner.DrainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("export drain failed", "error", err)
			}
		}
	}
}
