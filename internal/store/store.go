package store

import (
	"context"
	"errors"
)

// ErrEmpty is returned by pop operations when the queue has no entries.
// It is a normal condition, not a failure; callers poll again later.
var ErrEmpty = errors.New("store: queue is empty")

// Store is the shared state a crawl runs on. Implementations must be
// safe for concurrent use by multiple goroutines, and for the Redis
// implementation, by multiple processes.
type Store interface {
	// AddSeen records a fingerprint and reports whether it was new.
	// The insert-and-check is atomic: of all concurrent callers with
	// the same fingerprint, exactly one observes true.
	AddSeen(ctx context.Context, fingerprint string) (bool, error)

	// PushRequest adds a request payload to the frontier at the given
	// priority. Higher priorities pop first.
	PushRequest(ctx context.Context, payload []byte, priority int) error

	// PopRequest removes and returns the highest-priority payload.
	// Payloads with equal priority return in insertion order. Returns
	// ErrEmpty when the frontier is empty.
	PopRequest(ctx context.Context) ([]byte, error)

	// RequestCount returns the number of payloads in the frontier.
	RequestCount(ctx context.Context) (int64, error)

	// PushWords appends seed words to the word queue.
	PushWords(ctx context.Context, words ...string) error

	// PopWord removes and returns the oldest word, or ErrEmpty.
	PopWord(ctx context.Context) (string, error)

	// WordCount returns the number of queued words.
	WordCount(ctx context.Context) (int64, error)

	// PushItem appends a completed item payload to the item queue.
	PushItem(ctx context.Context, payload []byte) error

	// PopItem removes and returns the oldest item payload, or ErrEmpty.
	// A separate exporter process may be the consumer.
	PopItem(ctx context.Context) ([]byte, error)

	// ItemCount returns the number of queued items.
	ItemCount(ctx context.Context) (int64, error)

	// PushFailed appends a terminally failed request record. The list
	// is durable; nothing in the engine consumes it.
	PushFailed(ctx context.Context, payload []byte) error

	// FailedCount returns the number of recorded failures.
	FailedCount(ctx context.Context) (int64, error)

	// Clear removes all state owned by this store's namespace.
	Clear(ctx context.Context) error

	// Close releases any underlying connections.
	Close() error
}
