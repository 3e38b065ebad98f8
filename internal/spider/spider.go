package spider

import (
	"context"

	"github.com/kylin1020/spinneret/internal/model"
)

// Spider turns seed words into requests and responses into results.
type Spider interface {
	// Name identifies the crawl. It namespaces the shared store keys,
	// so every process working on the same crawl must use the same name.
	Name() string

	// Words returns the initial seed words. A worker that only consumes
	// from a shared word queue fed by another process returns an empty
	// slice.
	Words() []string

	// MakeRequest expands one word into requests. The requests pass
	// through the duplicate filter like any others; returning an error
	// skips the word and is reported, not fatal.
	MakeRequest(ctx context.Context, word string) ([]*model.Request, error)

	// Parse extracts follow-up requests and items from a response.
	// The returned result may be nil when the response yields nothing.
	Parse(ctx context.Context, resp *model.Response) (*model.ParseResult, error)
}

// ErrorHandler is an optional Spider capability. When a request fails
// terminally (retries exhausted, unresolved exception), the engine calls
// HandleError before recording the failure. Returned requests re-enter
// the scheduler, which lets a spider substitute an alternate URL for a
// dead one.
type ErrorHandler interface {
	HandleError(ctx context.Context, req *model.Request, err error) []*model.Request
}
