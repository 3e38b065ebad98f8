package middleware

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kylin1020/spinneret/internal/model"
)

// recorder is a middleware that appends its name to a shared trace on
// every hook call, for asserting execution order.
type recorder struct {
	Nop
	name  string
	trace *[]string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) ProcessRequest(_ context.Context, _ *model.Request) (*model.Request, *model.Response, error) {
	*r.trace = append(*r.trace, r.name+":request")
	return nil, nil, nil
}

func (r *recorder) ProcessResponse(_ context.Context, _ *model.Request, _ *model.Response) (*model.Response, error) {
	*r.trace = append(*r.trace, r.name+":response")
	return nil, nil
}

func (r *recorder) ProcessException(_ context.Context, _ *model.Request, _ error) (*model.Response, error) {
	*r.trace = append(*r.trace, r.name+":exception")
	return nil, nil
}

func (r *recorder) ProcessItem(_ context.Context, _ Item) (Item, error) {
	*r.trace = append(*r.trace, r.name+":item")
	return nil, nil
}

// funcMiddleware builds one-off middlewares from closures.
type funcMiddleware struct {
	Nop
	name        string
	onRequest   func(ctx context.Context, req *model.Request) (*model.Request, *model.Response, error)
	onResponse  func(ctx context.Context, req *model.Request, resp *model.Response) (*model.Response, error)
	onException func(ctx context.Context, req *model.Request, err error) (*model.Response, error)
	onItem      func(ctx context.Context, item Item) (Item, error)
}

func (f *funcMiddleware) Name() string { return f.name }

func (f *funcMiddleware) ProcessRequest(ctx context.Context, req *model.Request) (*model.Request, *model.Response, error) {
	if f.onRequest == nil {
		return nil, nil, nil
	}
	return f.onRequest(ctx, req)
}

func (f *funcMiddleware) ProcessResponse(ctx context.Context, req *model.Request, resp *model.Response) (*model.Response, error) {
	if f.onResponse == nil {
		return nil, nil
	}
	return f.onResponse(ctx, req, resp)
}

func (f *funcMiddleware) ProcessException(ctx context.Context, req *model.Request, err error) (*model.Response, error) {
	if f.onException == nil {
		return nil, nil
	}
	return f.onException(ctx, req, err)
}

func (f *funcMiddleware) ProcessItem(ctx context.Context, item Item) (Item, error) {
	if f.onItem == nil {
		return nil, nil
	}
	return f.onItem(ctx, item)
}

// TestRegister tests priority validation.
func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("accepts boundary priorities", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		if err := c.Register(&Nop{}, MinPriority); err != nil {
			t.Errorf("unexpected error at min: %v", err)
		}
		if err := c.Register(&Nop{}, MaxPriority); err != nil {
			t.Errorf("unexpected error at max: %v", err)
		}
		if c.Len() != 2 {
			t.Errorf("expected 2 registered, got %d", c.Len())
		}
	})

	t.Run("rejects negative priority", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		err := c.Register(&Nop{}, -1)
		if !errors.Is(err, ErrPriorityOutOfRange) {
			t.Errorf("expected ErrPriorityOutOfRange, got %v", err)
		}
	})

	t.Run("rejects priority above max", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		err := c.Register(&Nop{}, MaxPriority+1)
		if !errors.Is(err, ErrPriorityOutOfRange) {
			t.Errorf("expected ErrPriorityOutOfRange, got %v", err)
		}
	})

	t.Run("rejected middleware is not registered", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		_ = c.Register(&Nop{}, -1)
		if c.Len() != 0 {
			t.Errorf("expected empty chain, got %d", c.Len())
		}
	})
}

// TestStageOrdering verifies request hooks run in ascending priority and
// response hooks in descending priority, regardless of registration
// order.
func TestStageOrdering(t *testing.T) {
	t.Parallel()

	var trace []string
	c := NewChain()

	// Registered out of order on purpose.
	for _, reg := range []struct {
		name     string
		priority int
	}{
		{"a", 100},
		{"b", 50},
		{"c", 300},
	} {
		if err := c.Register(&recorder{name: reg.name, trace: &trace}, reg.priority); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ctx := context.Background()
	req := model.MustNewRequest("https://example.com/")

	t.Run("request stage ascends", func(t *testing.T) {
		trace = trace[:0]
		if _, _, err := c.HandleRequest(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"b:request", "a:request", "c:request"}
		assertTrace(t, trace, want)
	})

	t.Run("response stage descends", func(t *testing.T) {
		trace = trace[:0]
		if _, err := c.HandleResponse(ctx, req, &model.Response{StatusCode: 200}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"c:response", "a:response", "b:response"}
		assertTrace(t, trace, want)
	})

	t.Run("exception stage descends", func(t *testing.T) {
		trace = trace[:0]
		cause := errors.New("boom")
		if _, err := c.HandleException(ctx, req, cause); !errors.Is(err, cause) {
			t.Fatalf("expected cause back, got %v", err)
		}

		want := []string{"c:exception", "a:exception", "b:exception"}
		assertTrace(t, trace, want)
	})

	t.Run("item stage descends", func(t *testing.T) {
		trace = trace[:0]
		if _, err := c.HandleItem(ctx, Item{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"c:item", "a:item", "b:item"}
		assertTrace(t, trace, want)
	})
}

// TestEqualPriorityOrdering verifies registration order breaks priority
// ties, reversed on the way back.
func TestEqualPriorityOrdering(t *testing.T) {
	t.Parallel()

	var trace []string
	c := NewChain()
	for _, name := range []string{"first", "second", "third"} {
		if err := c.Register(&recorder{name: name, trace: &trace}, 500); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ctx := context.Background()
	req := model.MustNewRequest("https://example.com/")

	if _, _, err := c.HandleRequest(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTrace(t, trace, []string{"first:request", "second:request", "third:request"})

	trace = trace[:0]
	if _, err := c.HandleResponse(ctx, req, &model.Response{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTrace(t, trace, []string{"third:response", "second:response", "first:response"})
}

// TestHandleRequest tests rewrite, short-circuit, and error semantics.
func TestHandleRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rewrite is visible to later middlewares", func(t *testing.T) {
		t.Parallel()

		var sawPriority int
		c := NewChain()
		_ = c.Register(&funcMiddleware{
			name: "rewriter",
			onRequest: func(_ context.Context, req *model.Request) (*model.Request, *model.Response, error) {
				next := req.Clone()
				next.Priority = 42
				return next, nil, nil
			},
		}, 100)
		_ = c.Register(&funcMiddleware{
			name: "observer",
			onRequest: func(_ context.Context, req *model.Request) (*model.Request, *model.Response, error) {
				sawPriority = req.Priority
				return nil, nil, nil
			},
		}, 200)

		req := model.MustNewRequest("https://example.com/")
		out, _, err := c.HandleRequest(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sawPriority != 42 {
			t.Errorf("expected later middleware to see rewrite, saw priority %d", sawPriority)
		}
		if out.Priority != 42 {
			t.Errorf("expected rewritten request returned, got priority %d", out.Priority)
		}
	})

	t.Run("short-circuit response skips later middlewares", func(t *testing.T) {
		t.Parallel()

		var laterRan bool
		c := NewChain()
		_ = c.Register(&funcMiddleware{
			name: "cache",
			onRequest: func(_ context.Context, _ *model.Request) (*model.Request, *model.Response, error) {
				return nil, &model.Response{StatusCode: 200, Body: []byte("cached")}, nil
			},
		}, 100)
		_ = c.Register(&funcMiddleware{
			name: "later",
			onRequest: func(_ context.Context, _ *model.Request) (*model.Request, *model.Response, error) {
				laterRan = true
				return nil, nil, nil
			},
		}, 200)

		req := model.MustNewRequest("https://example.com/")
		_, resp, err := c.HandleRequest(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp == nil || string(resp.Body) != "cached" {
			t.Fatal("expected short-circuit response")
		}
		if resp.Request == nil {
			t.Error("expected short-circuit response to carry the request")
		}
		if laterRan {
			t.Error("expected later middleware to be skipped")
		}
	})

	t.Run("drop signal stops the stage", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		_ = c.Register(&funcMiddleware{
			name: "filter",
			onRequest: func(_ context.Context, _ *model.Request) (*model.Request, *model.Response, error) {
				return nil, nil, fmt.Errorf("blocked: %w", ErrDropRequest)
			},
		}, 100)

		req := model.MustNewRequest("https://example.com/")
		_, _, err := c.HandleRequest(ctx, req)
		if !errors.Is(err, ErrDropRequest) {
			t.Errorf("expected ErrDropRequest, got %v", err)
		}
	})
}

// TestHandleResponse tests response replacement.
func TestHandleResponse(t *testing.T) {
	t.Parallel()

	c := NewChain()
	_ = c.Register(&funcMiddleware{
		name: "decorator",
		onResponse: func(_ context.Context, _ *model.Request, resp *model.Response) (*model.Response, error) {
			return &model.Response{StatusCode: resp.StatusCode, Body: []byte("replaced")}, nil
		},
	}, 100)

	req := model.MustNewRequest("https://example.com/")
	resp, err := c.HandleResponse(context.Background(), req, &model.Response{StatusCode: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "replaced" {
		t.Errorf("expected replaced response, got %q", resp.Body)
	}
	if resp.Request == nil {
		t.Error("expected replacement response to carry the request")
	}
}

// TestHandleException tests resolution, signals, and propagation.
func TestHandleException(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("first synthetic response wins", func(t *testing.T) {
		t.Parallel()

		var lowRan bool
		c := NewChain()
		// Descending order means the priority-900 middleware runs first.
		_ = c.Register(&funcMiddleware{
			name: "low",
			onException: func(_ context.Context, _ *model.Request, _ error) (*model.Response, error) {
				lowRan = true
				return nil, nil
			},
		}, 100)
		_ = c.Register(&funcMiddleware{
			name: "resolver",
			onException: func(_ context.Context, _ *model.Request, _ error) (*model.Response, error) {
				return &model.Response{StatusCode: 503, Body: []byte("synthetic")}, nil
			},
		}, 900)

		req := model.MustNewRequest("https://example.com/")
		resp, err := c.HandleException(ctx, req, errors.New("connection refused"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp == nil || string(resp.Body) != "synthetic" {
			t.Fatal("expected synthetic response")
		}
		if resp.Request == nil {
			t.Error("expected synthetic response to carry the request")
		}
		if lowRan {
			t.Error("expected resolution to stop the stage")
		}
	})

	t.Run("retry signal stops the stage", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		_ = c.Register(&funcMiddleware{
			name: "retrier",
			onException: func(_ context.Context, _ *model.Request, _ error) (*model.Response, error) {
				return nil, ErrRetryRequest
			},
		}, 500)

		req := model.MustNewRequest("https://example.com/")
		_, err := c.HandleException(ctx, req, errors.New("timeout"))
		if !errors.Is(err, ErrRetryRequest) {
			t.Errorf("expected ErrRetryRequest, got %v", err)
		}
	})

	t.Run("hook failure becomes the active exception", func(t *testing.T) {
		t.Parallel()

		hookErr := errors.New("hook exploded")
		var sawCause error
		c := NewChain()
		_ = c.Register(&funcMiddleware{
			name: "observer",
			onException: func(_ context.Context, _ *model.Request, cause error) (*model.Response, error) {
				sawCause = cause
				return nil, nil
			},
		}, 100)
		_ = c.Register(&funcMiddleware{
			name: "broken",
			onException: func(_ context.Context, _ *model.Request, _ error) (*model.Response, error) {
				return nil, hookErr
			},
		}, 900)

		req := model.MustNewRequest("https://example.com/")
		_, err := c.HandleException(ctx, req, errors.New("original"))
		if !errors.Is(err, hookErr) {
			t.Errorf("expected hook error to propagate, got %v", err)
		}
		if !errors.Is(sawCause, hookErr) {
			t.Error("expected later middleware to see the hook failure as cause")
		}
	})

	t.Run("unhandled exception returns the cause", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		_ = c.Register(&Nop{}, 500)

		cause := errors.New("unreachable")
		req := model.MustNewRequest("https://example.com/")
		_, err := c.HandleException(ctx, req, cause)
		if !errors.Is(err, cause) {
			t.Errorf("expected cause back, got %v", err)
		}
	})
}

// TestHandleItem tests transformation and drop signaling.
func TestHandleItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("transforms accumulate", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		_ = c.Register(&funcMiddleware{
			name: "tagger",
			onItem: func(_ context.Context, item Item) (Item, error) {
				out := item.Clone()
				out["tagged"] = true
				return out, nil
			},
		}, 100)

		item, err := c.HandleItem(ctx, Item{"title": "go"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item["tagged"] != true || item["title"] != "go" {
			t.Errorf("unexpected item %v", item)
		}
	})

	t.Run("drop signal stops the stage", func(t *testing.T) {
		t.Parallel()

		c := NewChain()
		_ = c.Register(&funcMiddleware{
			name: "validator",
			onItem: func(_ context.Context, _ Item) (Item, error) {
				return nil, fmt.Errorf("missing field: %w", ErrDropItem)
			},
		}, 100)

		_, err := c.HandleItem(ctx, Item{})
		if !errors.Is(err, ErrDropItem) {
			t.Errorf("expected ErrDropItem, got %v", err)
		}
	})
}

// TestNames tests name listing in priority order.
func TestNames(t *testing.T) {
	t.Parallel()

	var trace []string
	c := NewChain()
	_ = c.Register(&recorder{name: "z", trace: &trace}, 900)
	_ = c.Register(&recorder{name: "a", trace: &trace}, 100)

	names := c.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "z" {
		t.Errorf("expected [a z], got %v", names)
	}
}

// assertTrace fails the test when the recorded trace differs from want.
func assertTrace(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("trace length %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("trace[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}
