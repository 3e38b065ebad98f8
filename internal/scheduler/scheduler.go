package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kylin1020/spinneret/internal/fingerprint"
	"github.com/kylin1020/spinneret/internal/model"
	"github.com/kylin1020/spinneret/internal/store"
)

// envelope is the wire form of a scheduled request. The fingerprint is
// computed at enqueue time and carried along so dequeuing processes do
// not recompute it.
type envelope struct {
	Fingerprint string         `json:"fingerprint"`
	Request     *model.Request `json:"request"`
}

// FailureRecord is the durable trace of a request that exhausted its
// retries. It is written to the store's failure list for later
// inspection; nothing inside the crawl reads it back.
type FailureRecord struct {
	Request  *model.Request `json:"request"`
	Reason   string         `json:"reason"`
	FailedAt time.Time      `json:"failed_at"`
}

// Scheduler owns admission to and ordering of the request frontier.
// It is safe for concurrent use; all cross-process atomicity is
// delegated to the Store.
type Scheduler struct {
	store store.Store
}

// New returns a Scheduler over the given store.
func New(s store.Store) *Scheduler {
	return &Scheduler{store: s}
}

// Enqueue admits a request to the frontier. It returns false when the
// duplicate filter dropped the request: its fingerprint was already
// registered and the force flag was not set. The fingerprint is
// registered before the push, so two workers enqueueing the same URL
// concurrently admit exactly one.
func (s *Scheduler) Enqueue(ctx context.Context, req *model.Request) (bool, error) {
	fp, err := fingerprint.ForRequest(req)
	if err != nil {
		return false, fmt.Errorf("fingerprint request: %w", err)
	}

	if req.Force {
		// Forced requests still register so later normal requests for
		// the same URL are deduplicated.
		if _, err := s.store.AddSeen(ctx, fp); err != nil {
			return false, err
		}
	} else {
		added, err := s.store.AddSeen(ctx, fp)
		if err != nil {
			return false, err
		}
		if !added {
			return false, nil
		}
	}

	payload, err := json.Marshal(envelope{Fingerprint: fp, Request: req})
	if err != nil {
		return false, fmt.Errorf("marshal request: %w", err)
	}
	if err := s.store.PushRequest(ctx, payload, req.Priority); err != nil {
		return false, err
	}
	return true, nil
}

// Dequeue removes and returns the highest-priority request. It returns
// store.ErrEmpty when the frontier has none; the caller owns the poll
// pacing.
func (s *Scheduler) Dequeue(ctx context.Context) (*model.Request, error) {
	payload, err := s.store.PopRequest(ctx)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	return env.Request, nil
}

// Size returns the number of requests waiting in the frontier.
func (s *Scheduler) Size(ctx context.Context) (int64, error) {
	return s.store.RequestCount(ctx)
}

// PushWords appends seed words to the shared word queue.
func (s *Scheduler) PushWords(ctx context.Context, words ...string) error {
	return s.store.PushWords(ctx, words...)
}

// NextWord removes and returns the oldest queued word, or
// store.ErrEmpty.
func (s *Scheduler) NextWord(ctx context.Context) (string, error) {
	return s.store.PopWord(ctx)
}

// WordCount returns the number of queued words.
func (s *Scheduler) WordCount(ctx context.Context) (int64, error) {
	return s.store.WordCount(ctx)
}

// PushItem appends an item to the durable item queue.
func (s *Scheduler) PushItem(ctx context.Context, item model.Item) error {
	payload, err := model.MarshalItem(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	return s.store.PushItem(ctx, payload)
}

// NextItem removes and returns the oldest queued item, or
// store.ErrEmpty. Exporters, possibly in another process, are the
// intended callers.
func (s *Scheduler) NextItem(ctx context.Context) (model.Item, error) {
	payload, err := s.store.PopItem(ctx)
	if err != nil {
		return nil, err
	}
	item, err := model.UnmarshalItem(payload)
	if err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return item, nil
}

// ItemCount returns the number of queued items.
func (s *Scheduler) ItemCount(ctx context.Context) (int64, error) {
	return s.store.ItemCount(ctx)
}

// RecordFailure writes a terminal failure record for a request that
// exhausted its retries.
func (s *Scheduler) RecordFailure(ctx context.Context, req *model.Request, reason string) error {
	payload, err := json.Marshal(FailureRecord{
		Request:  req,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}
	return s.store.PushFailed(ctx, payload)
}

// FailureCount returns the number of recorded terminal failures.
func (s *Scheduler) FailureCount(ctx context.Context) (int64, error) {
	return s.store.FailedCount(ctx)
}
