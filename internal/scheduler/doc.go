// Package scheduler decides which requests enter the frontier and in
// what order they leave it.
//
// On the way in, every request is fingerprinted and checked against the
// crawl-wide seen set; duplicates are dropped unless the request carries
// the force flag. On the way out, requests dequeue in priority order.
// All queue state lives in a store.Store, so a scheduler holds no local
// state and any number of processes can run one against the same
// backend. Store failures propagate to the caller unmodified; a crawl
// must not degrade into a process-local one when coordination is lost.
package scheduler
