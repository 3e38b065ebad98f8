// Package spider defines the contract between a crawl and the
// user-supplied code that drives it.
//
// A Spider names the crawl, seeds it with words, expands each word into
// initial requests, and parses fetched responses into follow-up requests
// and items. The engine owns everything else: scheduling, deduplication,
// concurrency, retries, and delivery of items to the queue.
//
// Implementations must be safe for concurrent use; MakeRequest and Parse
// are called from many worker goroutines at once.
package spider
