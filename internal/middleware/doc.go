// Package middleware implements the extension chain that surrounds every
// fetch.
//
// A Middleware exposes four optional hooks: ProcessRequest before the
// fetch, ProcessResponse after it, ProcessException when the fetch or a
// hook fails, and ProcessItem for extracted data. Embedding Nop gives a
// type pass-through defaults so implementations override only the hooks
// they care about.
//
// Hooks run in priority order, 0 to 1000. The request stage runs in
// ascending priority; the response, exception, and item stages run in
// descending priority, so the chain behaves like an onion: the last
// middleware to see a request on the way out is the first to see its
// response on the way back. Middlewares registered at the same priority
// keep their registration order.
//
// Hooks signal the engine with sentinel errors: ErrDropRequest abandons
// a request, ErrRetryRequest re-enqueues it under the retry policy, and
// ErrDropItem discards an item. Any other hook error is routed to the
// exception stage, where a middleware may synthesize a replacement
// response.
package middleware
