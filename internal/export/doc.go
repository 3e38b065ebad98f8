// Package export persists scraped items outside the crawl store.
//
// Items accumulate in the scheduler's durable item queue; an Exporter
// writes them to their final destination. CSV writes delimited flat
// files, SQLite writes a queryable database. The Runner connects a
// scheduler's item queue to an Exporter, either inside the crawling
// process or as a separate consumer process draining a shared Redis
// queue.
package export
