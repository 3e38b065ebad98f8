// Package model defines the core data structures passed through the crawl
// pipeline.
//
// This package contains the following main types:
//   - Request: A unit of fetch work with priority, retry state, and metadata
//   - Response: The outcome of fetching a Request
//   - Item: A structured piece of extracted data
//   - ParseResult: The requests and items produced by parsing one response
//
// Requests and items are serialized to JSON when they cross the shared
// queue store, so every process participating in a crawl sees the same
// wire form. The types here have no dependencies on the scheduler, the
// middleware chain, or the engine, which keeps import edges one-way.
package model
