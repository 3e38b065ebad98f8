// Package stats collects crawl run counters and renders them as a
// Markdown report.
//
// A single Collector is shared by every engine worker; the Observe
// methods are lock-free so hot paths never contend. Snapshot returns a
// consistent value copy for reporting, and WriteMarkdown turns a
// snapshot into a human-readable run summary.
package stats
