package stats

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// statusClassCount is the number of HTTP status classes tracked
// individually (1xx through 5xx). Statuses outside 100..599 are counted
// under the "other" bucket.
const statusClassCount = 5

// Collector accumulates counters for one crawl run. All Observe methods
// are safe for concurrent use from any number of workers.
type Collector struct {
	spider string

	words           atomic.Int64
	requests        atomic.Int64
	responses       atomic.Int64
	statusClasses   [statusClassCount]atomic.Int64
	otherStatuses   atomic.Int64
	exceptions      atomic.Int64
	retries         atomic.Int64
	dedupDrops      atomic.Int64
	middlewareDrops atomic.Int64
	items           atomic.Int64
	itemsDropped    atomic.Int64
	failures        atomic.Int64

	// mu guards the run timestamps and finish reason.
	mu       sync.RWMutex
	started  time.Time
	finished time.Time
	reason   string
}

// New returns a Collector for the named spider.
func New(spider string) *Collector {
	return &Collector{spider: spider}
}

// Start records the run start time. Later calls overwrite it; the
// engine calls it exactly once.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
}

// Finish records the run end time and the reason the run stopped.
// The first call wins; later calls are ignored.
func (c *Collector) Finish(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished.IsZero() {
		return
	}
	c.finished = time.Now()
	c.reason = reason
}

// ObserveWord counts a seed word consumed from the word queue.
func (c *Collector) ObserveWord() { c.words.Add(1) }

// ObserveRequest counts a request dispatched to a worker.
func (c *Collector) ObserveRequest() { c.requests.Add(1) }

// ObserveResponse counts a response, bucketed by its status class.
func (c *Collector) ObserveResponse(statusCode int) {
	c.responses.Add(1)
	class := statusCode / 100
	if class >= 1 && class <= statusClassCount {
		c.statusClasses[class-1].Add(1)
		return
	}
	c.otherStatuses.Add(1)
}

// ObserveException counts an error raised while processing a unit.
func (c *Collector) ObserveException() { c.exceptions.Add(1) }

// ObserveRetry counts a request re-enqueued after a transient failure.
func (c *Collector) ObserveRetry() { c.retries.Add(1) }

// ObserveDedupDrop counts a request dropped by the duplicate filter.
func (c *Collector) ObserveDedupDrop() { c.dedupDrops.Add(1) }

// ObserveMiddlewareDrop counts a request dropped by a middleware.
func (c *Collector) ObserveMiddlewareDrop() { c.middlewareDrops.Add(1) }

// ObserveItem counts an item that reached the item queue.
func (c *Collector) ObserveItem() { c.items.Add(1) }

// ObserveItemDrop counts an item discarded by the item stage.
func (c *Collector) ObserveItemDrop() { c.itemsDropped.Add(1) }

// ObserveFailure counts a request that failed terminally.
func (c *Collector) ObserveFailure() { c.failures.Add(1) }

// Snapshot returns a consistent value copy of all counters. The status
// class map is freshly allocated per call, so callers may keep or
// mutate it freely.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	started, finished, reason := c.started, c.finished, c.reason
	c.mu.RUnlock()

	classes := make(map[string]int64, statusClassCount+1)
	for i := range c.statusClasses {
		if n := c.statusClasses[i].Load(); n > 0 {
			classes[statusClassLabel(i+1)] = n
		}
	}
	if n := c.otherStatuses.Load(); n > 0 {
		classes["other"] = n
	}

	return Snapshot{
		Spider:          c.spider,
		Words:           c.words.Load(),
		Requests:        c.requests.Load(),
		Responses:       c.responses.Load(),
		StatusClasses:   classes,
		Exceptions:      c.exceptions.Load(),
		Retries:         c.retries.Load(),
		DedupDrops:      c.dedupDrops.Load(),
		MiddlewareDrops: c.middlewareDrops.Load(),
		Items:           c.items.Load(),
		ItemsDropped:    c.itemsDropped.Load(),
		Failures:        c.failures.Load(),
		Started:         started,
		Finished:        finished,
		Reason:          reason,
	}
}

// statusClassLabel renders a status class index as "2xx", "4xx", etc.
func statusClassLabel(class int) string {
	return strconv.Itoa(class) + "xx"
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	// Spider is the name of the spider that produced the run.
	Spider string

	// Words is the number of seed words consumed.
	Words int64

	// Requests is the number of requests dispatched to workers.
	Requests int64

	// Responses is the total number of responses observed.
	Responses int64

	// StatusClasses maps "1xx".."5xx" (and "other") to response counts.
	// Classes with zero observations are omitted.
	StatusClasses map[string]int64

	// Exceptions is the number of unit processing errors.
	Exceptions int64

	// Retries is the number of re-enqueues after transient failures.
	Retries int64

	// DedupDrops is the number of requests dropped by the duplicate
	// filter.
	DedupDrops int64

	// MiddlewareDrops is the number of requests dropped by middlewares.
	MiddlewareDrops int64

	// Items is the number of items that reached the item queue.
	Items int64

	// ItemsDropped is the number of items discarded by the item stage.
	ItemsDropped int64

	// Failures is the number of terminally failed requests.
	Failures int64

	// Started is when the run began.
	Started time.Time

	// Finished is when the run stopped; zero while still running.
	Finished time.Time

	// Reason describes why the run stopped ("idle", "cancelled", ...).
	Reason string
}

// Elapsed returns the run duration. For a running crawl it measures up
// to the current time.
func (s Snapshot) Elapsed() time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	end := s.Finished
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.Started)
}
