// Package store provides the shared queue backends a crawl runs on.
//
// A Store holds four kinds of state: the seen set used for duplicate
// filtering, the priority-ordered request frontier, the word queue of
// unexpanded seeds, and the durable item and failure lists. All payloads
// cross the Store as opaque bytes; serialization belongs to the caller.
//
// Two implementations exist:
//   - Memory: a process-local store for tests and single-process crawls
//   - Redis: a shared store that lets any number of processes cooperate
//     on one crawl
//
// Both satisfy the same contract: AddSeen is an atomic conditional
// insert, PopRequest returns the highest-priority request with FIFO
// order inside a priority, and empty queues report ErrEmpty rather than
// blocking. Store errors always surface to the caller; there is no
// fallback from a shared store to a local one mid-crawl.
package store
