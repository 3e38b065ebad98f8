package middleware

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kylin1020/spinneret/internal/model"
)

// Priority bounds for Register.
const (
	// MinPriority is the lowest accepted registration priority.
	MinPriority = 0
	// MaxPriority is the highest accepted registration priority.
	MaxPriority = 1000
)

// ErrPriorityOutOfRange is returned by Register for priorities outside
// [MinPriority, MaxPriority].
var ErrPriorityOutOfRange = errors.New("middleware: priority out of range")

// entry pairs a middleware with its registration priority.
type entry struct {
	mw       Middleware
	priority int
}

// Chain holds registered middlewares and runs the four stages in their
// documented order. Register all middlewares before the first stage
// call; the chain is then safe for concurrent use from any number of
// workers.
type Chain struct {
	entries []entry
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Register adds a middleware at the given priority. Priorities must be
// in [MinPriority, MaxPriority]; anything else returns
// ErrPriorityOutOfRange. Middlewares registered at the same priority
// keep their registration order.
func (c *Chain) Register(mw Middleware, priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrPriorityOutOfRange, priority, MinPriority, MaxPriority)
	}
	c.entries = append(c.entries, entry{mw: mw, priority: priority})
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].priority < c.entries[j].priority
	})
	return nil
}

// Len returns the number of registered middlewares.
func (c *Chain) Len() int {
	return len(c.entries)
}

// Names returns the middleware names in ascending priority order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.mw.Name()
	}
	return names
}

// HandleRequest runs the request stage in ascending priority order.
// Each middleware may rewrite the request or short-circuit with a
// response; the first short-circuit wins and later middlewares never
// run. A hook error stops the stage and is returned wrapped with the
// middleware's name.
func (c *Chain) HandleRequest(ctx context.Context, req *model.Request) (*model.Request, *model.Response, error) {
	for _, e := range c.entries {
		newReq, resp, err := e.mw.ProcessRequest(ctx, req)
		if err != nil {
			return req, nil, fmt.Errorf("%s: %w", e.mw.Name(), err)
		}
		if newReq != nil {
			req = newReq
		}
		if resp != nil {
			if resp.Request == nil {
				resp.Request = req
			}
			return req, resp, nil
		}
	}
	return req, nil, nil
}

// HandleResponse runs the response stage in descending priority order.
// Each middleware may replace the response. A hook error stops the
// stage and is returned wrapped with the middleware's name.
func (c *Chain) HandleResponse(ctx context.Context, req *model.Request, resp *model.Response) (*model.Response, error) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		newResp, err := e.mw.ProcessResponse(ctx, req, resp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.mw.Name(), err)
		}
		if newResp != nil {
			resp = newResp
			if resp.Request == nil {
				resp.Request = req
			}
		}
	}
	return resp, nil
}

// HandleException runs the exception stage in descending priority
// order. The first middleware to return a response resolves the
// exception; the caller sends that response back through the response
// path. A middleware returning ErrDropRequest or ErrRetryRequest stops
// the stage with that signal. Any other hook error becomes the active
// exception for the remaining middlewares. When no middleware resolves
// it, the final exception is returned.
func (c *Chain) HandleException(ctx context.Context, req *model.Request, cause error) (*model.Response, error) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		resp, err := e.mw.ProcessException(ctx, req, cause)
		if resp != nil {
			if resp.Request == nil {
				resp.Request = req
			}
			return resp, nil
		}
		if err != nil {
			wrapped := fmt.Errorf("%s: %w", e.mw.Name(), err)
			if errors.Is(err, ErrDropRequest) || errors.Is(err, ErrRetryRequest) {
				return nil, wrapped
			}
			cause = wrapped
		}
	}
	return nil, cause
}

// HandleItem runs the item stage in descending priority order. Each
// middleware may transform the item. A hook error stops the stage;
// ErrDropItem is the signal to discard the item.
func (c *Chain) HandleItem(ctx context.Context, item Item) (Item, error) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		newItem, err := e.mw.ProcessItem(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.mw.Name(), err)
		}
		if newItem != nil {
			item = newItem
		}
	}
	return item, nil
}
