// Package engine runs the crawl: it seeds words, expands them into
// requests, and drives each request through the middleware chain, the
// fetcher, and the spider callback under the configured concurrency
// bounds.
//
// Word workers pop seed words and call the spider's MakeRequest;
// request workers pop scheduled requests and execute one unit of work
// inline, so the worker counts are the concurrency limits. Transient
// fetch failures re-enqueue the request until its retry budget is
// spent; exhausted requests fail terminally and are recorded, never
// silently dropped. With a Redis-backed store several engine processes
// cooperate on one crawl; each sees the same frontier, duplicate
// filter, and item queue.
package engine
