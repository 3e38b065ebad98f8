package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
)

// skipIfNoRedis skips the test unless SPINNERET_REDIS_ADDR points at a
// reachable Redis server. This keeps the suite green on machines and CI
// runners without Redis while still exercising the shared store where
// one is available.
func skipIfNoRedis(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("SPINNERET_REDIS_ADDR")
	if addr == "" {
		t.Skip("skipping integration test: SPINNERET_REDIS_ADDR not set (export host:port of a test Redis to run it)")
	}
	return "redis://" + addr
}

// newTestRedis returns a Redis store in a unique namespace that is
// cleared and closed when the test finishes.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	url := skipIfNoRedis(t)
	ctx := context.Background()

	r, err := NewRedis(ctx, url, "spinneret-test", uuid.NewString())
	if err != nil {
		t.Fatalf("failed to connect to test redis: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Clear(context.Background())
		_ = r.Close()
	})
	return r
}

// TestNewRedisBadURL verifies construction fails fast on an invalid URL.
func TestNewRedisBadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedis(context.Background(), "not-a-redis-url", "p", "n")
	if err == nil {
		t.Error("expected error for invalid redis url")
	}
}

// TestNewRedisUnreachable verifies construction fails fast when the
// server does not answer, instead of deferring the failure to the first
// queue operation mid-crawl.
func TestNewRedisUnreachable(t *testing.T) {
	t.Parallel()

	// TEST-NET-1 address, guaranteed unroutable.
	_, err := NewRedis(context.Background(), "redis://192.0.2.1:6379", "p", "n")
	if err == nil {
		t.Error("expected error for unreachable redis")
	}
}

// TestRedisAddSeen tests the shared conditional insert.
func TestRedisAddSeen(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	added, err := r.AddSeen(ctx, "fp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !added {
		t.Error("expected first insert to report new")
	}

	added, err = r.AddSeen(ctx, "fp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added {
		t.Error("expected duplicate insert to report already seen")
	}
}

// TestRedisFrontier tests priority ordering and FIFO ties through the
// sorted set encoding.
func TestRedisFrontier(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	t.Run("empty frontier returns ErrEmpty", func(t *testing.T) {
		_, err := r.PopRequest(ctx)
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("expected ErrEmpty, got %v", err)
		}
	})

	t.Run("pops higher priority first", func(t *testing.T) {
		if err := r.PushRequest(ctx, []byte("low"), 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := r.PushRequest(ctx, []byte("high"), 9); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		payload, err := r.PopRequest(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(payload) != "high" {
			t.Errorf("expected high first, got %q", payload)
		}

		payload, err = r.PopRequest(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(payload) != "low" {
			t.Errorf("expected low second, got %q", payload)
		}
	})

	t.Run("equal priorities pop in insertion order", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			payload := []byte(fmt.Sprintf("req-%d", i))
			if err := r.PushRequest(ctx, payload, 3); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		for i := 0; i < 5; i++ {
			payload, err := r.PopRequest(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := fmt.Sprintf("req-%d", i)
			if string(payload) != want {
				t.Errorf("position %d: got %q, expected %q", i, payload, want)
			}
		}
	})

	t.Run("payload containing separator survives", func(t *testing.T) {
		raw := []byte(`{"url":"https://example.com/?a=1:2"}`)
		if err := r.PushRequest(ctx, raw, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		payload, err := r.PopRequest(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(payload) != string(raw) {
			t.Errorf("payload corrupted: got %q, want %q", payload, raw)
		}
	})

	t.Run("count reflects frontier size", func(t *testing.T) {
		if err := r.PushRequest(ctx, []byte("x"), 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n, err := r.RequestCount(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected count 1, got %d", n)
		}
		if _, err := r.PopRequest(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

// TestRedisWords tests the shared word queue.
func TestRedisWords(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	if err := r.PushWords(ctx, "alpha", "beta"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := r.WordCount(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 words, got %d", n)
	}

	for _, want := range []string{"alpha", "beta"} {
		word, err := r.PopWord(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if word != want {
			t.Errorf("got %q, expected %q", word, want)
		}
	}

	if _, err := r.PopWord(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

// TestRedisItemsAndFailures tests the durable lists.
func TestRedisItemsAndFailures(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	if err := r.PushItem(ctx, []byte(`{"k":"v"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item, err := r.PopItem(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(item) != `{"k":"v"}` {
		t.Errorf("item corrupted: %q", item)
	}
	if _, err := r.PopItem(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}

	if err := r.PushFailed(ctx, []byte("record")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := r.FailedCount(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 failure, got %d", n)
	}
}

// TestRedisClear tests namespace reset across all segments.
func TestRedisClear(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	if _, err := r.AddSeen(ctx, "fp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.PushRequest(ctx, []byte("r"), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.PushWords(ctx, "w"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n, _ := r.RequestCount(ctx); n != 0 {
		t.Errorf("expected empty frontier, got %d", n)
	}
	if n, _ := r.WordCount(ctx); n != 0 {
		t.Errorf("expected empty word queue, got %d", n)
	}

	added, err := r.AddSeen(ctx, "fp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !added {
		t.Error("expected fingerprint to be new after Clear")
	}
}

// TestRedisNamespacing verifies two stores with different names never
// see each other's state even on the same server.
func TestRedisNamespacing(t *testing.T) {
	url := skipIfNoRedis(t)
	ctx := context.Background()

	a, err := NewRedis(ctx, url, "spinneret-test", uuid.NewString())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = a.Clear(context.Background()); _ = a.Close() })

	b, err := NewRedis(ctx, url, "spinneret-test", uuid.NewString())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = b.Clear(context.Background()); _ = b.Close() })

	if err := a.PushWords(ctx, "only-in-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := b.PopWord(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty from the other namespace, got %v", err)
	}
}
