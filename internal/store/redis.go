package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// pingTimeout bounds the connectivity check at construction time.
const pingTimeout = 5 * time.Second

// ErrBadFrontierMember is returned when a frontier entry does not carry
// the expected sequence prefix. It indicates the key is shared with a
// foreign writer or a different version of this package.
var ErrBadFrontierMember = errors.New("store: malformed frontier member")

// Redis is a Store backed by a Redis server. Every process pointed at
// the same server and namespace cooperates on one crawl: the seen set,
// frontier, word queue, and item and failure lists are all shared.
//
// The frontier is a sorted set scored by negated priority, so ZPOPMIN
// yields the highest priority first. Members carry a zero-padded
// sequence number issued by INCR, which makes ties inside one priority
// pop in global insertion order regardless of which process pushed them.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the server described by redisURL
// (redis://host:port/db) and returns a store namespaced under
// "<keyPrefix>:<name>". It pings the server and fails fast when the
// server is unreachable, so a misconfigured worker stops at startup
// instead of mid-crawl.
func NewRedis(ctx context.Context, redisURL, keyPrefix, name string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{
		client: client,
		prefix: keyPrefix + ":" + name,
	}, nil
}

// key returns the namespaced key for one store segment.
func (r *Redis) key(segment string) string {
	return r.prefix + ":" + segment
}

// AddSeen records a fingerprint and reports whether it was new. SADD's
// return value carries the conditional-insert answer atomically, so
// concurrent workers across processes never both see true.
func (r *Redis) AddSeen(ctx context.Context, fingerprint string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.key("seen"), fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("add seen: %w", err)
	}
	return added == 1, nil
}

// PushRequest adds a payload to the frontier at the given priority.
func (r *Redis) PushRequest(ctx context.Context, payload []byte, priority int) error {
	seq, err := r.client.Incr(ctx, r.key("seq")).Result()
	if err != nil {
		return fmt.Errorf("frontier sequence: %w", err)
	}

	member := fmt.Sprintf("%020d:%s", seq, payload)
	err = r.client.ZAdd(ctx, r.key("requests"), &redis.Z{
		Score:  float64(-priority),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	return nil
}

// PopRequest removes and returns the highest-priority payload. ZPOPMIN
// is atomic, so no two workers ever receive the same request.
func (r *Redis) PopRequest(ctx context.Context) ([]byte, error) {
	members, err := r.client.ZPopMin(ctx, r.key("requests"), 1).Result()
	if err != nil {
		return nil, fmt.Errorf("pop request: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrEmpty
	}

	member, ok := members[0].Member.(string)
	if !ok {
		return nil, ErrBadFrontierMember
	}
	idx := strings.IndexByte(member, ':')
	if idx < 0 {
		return nil, ErrBadFrontierMember
	}
	return []byte(member[idx+1:]), nil
}

// RequestCount returns the number of payloads in the frontier.
func (r *Redis) RequestCount(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, r.key("requests")).Result()
	if err != nil {
		return 0, fmt.Errorf("request count: %w", err)
	}
	return n, nil
}

// PushWords appends seed words to the word queue.
func (r *Redis) PushWords(ctx context.Context, words ...string) error {
	if len(words) == 0 {
		return nil
	}
	values := make([]any, len(words))
	for i, w := range words {
		values[i] = w
	}
	if err := r.client.LPush(ctx, r.key("words"), values...).Err(); err != nil {
		return fmt.Errorf("push words: %w", err)
	}
	return nil
}

// PopWord removes and returns the oldest word.
func (r *Redis) PopWord(ctx context.Context) (string, error) {
	word, err := r.client.RPop(ctx, r.key("words")).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("pop word: %w", err)
	}
	return word, nil
}

// WordCount returns the number of queued words.
func (r *Redis) WordCount(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, r.key("words")).Result()
	if err != nil {
		return 0, fmt.Errorf("word count: %w", err)
	}
	return n, nil
}

// PushItem appends an item payload to the item queue.
func (r *Redis) PushItem(ctx context.Context, payload []byte) error {
	if err := r.client.LPush(ctx, r.key("items"), payload).Err(); err != nil {
		return fmt.Errorf("push item: %w", err)
	}
	return nil
}

// PopItem removes and returns the oldest item payload.
func (r *Redis) PopItem(ctx context.Context) ([]byte, error) {
	item, err := r.client.RPop(ctx, r.key("items")).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop item: %w", err)
	}
	return []byte(item), nil
}

// ItemCount returns the number of queued items.
func (r *Redis) ItemCount(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, r.key("items")).Result()
	if err != nil {
		return 0, fmt.Errorf("item count: %w", err)
	}
	return n, nil
}

// PushFailed appends a terminal failure record.
func (r *Redis) PushFailed(ctx context.Context, payload []byte) error {
	if err := r.client.LPush(ctx, r.key("failed"), payload).Err(); err != nil {
		return fmt.Errorf("push failed record: %w", err)
	}
	return nil
}

// FailedCount returns the number of recorded failures.
func (r *Redis) FailedCount(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, r.key("failed")).Result()
	if err != nil {
		return 0, fmt.Errorf("failed count: %w", err)
	}
	return n, nil
}

// Clear removes all keys in this store's namespace.
func (r *Redis) Clear(ctx context.Context) error {
	keys := []string{
		r.key("seen"),
		r.key("requests"),
		r.key("seq"),
		r.key("words"),
		r.key("items"),
		r.key("failed"),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
