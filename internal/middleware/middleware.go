package middleware

import (
	"context"
	"errors"

	"github.com/kylin1020/spinneret/internal/model"
)

// Signals middlewares return to steer the engine. Wrap them with
// fmt.Errorf("...: %w", ...) to add context; the engine matches with
// errors.Is.
var (
	// ErrDropRequest abandons the request silently. Dropped requests are
	// counted but not retried and not reported as failures.
	ErrDropRequest = errors.New("middleware: drop request")

	// ErrRetryRequest hands the request to the retry policy. The engine
	// re-enqueues it until the retry budget is exhausted.
	ErrRetryRequest = errors.New("middleware: retry request")

	// ErrDropItem discards the item instead of queueing it.
	ErrDropItem = errors.New("middleware: drop item")
)

// Middleware hooks into the request/response/item flow. Implementations
// must be safe for concurrent use: the engine calls hooks from many
// worker goroutines at once.
//
// Every hook receives a context and may block on it; a hook with nothing
// to wait for simply ignores it. Returning the zero values (nil, nil)
// means "pass, unchanged".
type Middleware interface {
	// Name identifies the middleware in logs.
	Name() string

	// ProcessRequest runs before the fetch, in ascending priority order.
	// It may rewrite the request (return a non-nil request), short-circuit
	// the fetch entirely (return a non-nil response), or signal with an
	// error. Returning ErrDropRequest abandons the request.
	ProcessRequest(ctx context.Context, req *model.Request) (*model.Request, *model.Response, error)

	// ProcessResponse runs after the fetch, in descending priority order.
	// It may replace the response or signal with an error; ErrRetryRequest
	// sends the request through the retry policy.
	ProcessResponse(ctx context.Context, req *model.Request, resp *model.Response) (*model.Response, error)

	// ProcessException runs when a fetch or a hook failed, in descending
	// priority order. Returning a non-nil response resolves the exception
	// and re-enters the response path. Returning nil, nil passes the
	// exception to the next middleware.
	ProcessException(ctx context.Context, req *model.Request, err error) (*model.Response, error)

	// ProcessItem runs for every extracted item, in descending priority
	// order. It may transform the item or signal ErrDropItem.
	ProcessItem(ctx context.Context, item Item) (Item, error)
}

// Item aliases model.Item so implementations embedding Nop read
// naturally without a second model import.
type Item = model.Item

// Nop is a Middleware with pass-through behavior for every hook. Embed
// it and override the hooks you need.
type Nop struct{}

// Name identifies the middleware; embedders should override it.
func (Nop) Name() string { return "nop" }

// ProcessRequest passes the request through unchanged.
func (Nop) ProcessRequest(_ context.Context, _ *model.Request) (*model.Request, *model.Response, error) {
	return nil, nil, nil
}

// ProcessResponse passes the response through unchanged.
func (Nop) ProcessResponse(_ context.Context, _ *model.Request, _ *model.Response) (*model.Response, error) {
	return nil, nil
}

// ProcessException passes the exception to the next middleware.
func (Nop) ProcessException(_ context.Context, _ *model.Request, _ error) (*model.Response, error) {
	return nil, nil
}

// ProcessItem passes the item through unchanged.
func (Nop) ProcessItem(_ context.Context, _ Item) (Item, error) {
	return nil, nil
}
