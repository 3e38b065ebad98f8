package store

import (
	"container/heap"
	"context"
	"sync"
)

// Memory is an in-process Store. It backs tests and single-process
// crawls where no coordination with other workers is needed.
type Memory struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	frontier requestHeap
	seq      uint64
	words    []string
	items    [][]byte
	failed   [][]byte
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		seen: make(map[string]struct{}),
	}
}

// AddSeen records a fingerprint and reports whether it was new.
func (m *Memory) AddSeen(_ context.Context, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[fingerprint]; ok {
		return false, nil
	}
	m.seen[fingerprint] = struct{}{}
	return true, nil
}

// PushRequest adds a payload to the frontier at the given priority.
func (m *Memory) PushRequest(_ context.Context, payload []byte, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	heap.Push(&m.frontier, frontierEntry{
		payload:  payload,
		priority: priority,
		seq:      m.seq,
	})
	return nil
}

// PopRequest removes and returns the highest-priority payload.
func (m *Memory) PopRequest(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frontier.Len() == 0 {
		return nil, ErrEmpty
	}
	entry := heap.Pop(&m.frontier).(frontierEntry)
	return entry.payload, nil
}

// RequestCount returns the number of payloads in the frontier.
func (m *Memory) RequestCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(m.frontier.Len()), nil
}

// PushWords appends seed words to the word queue.
func (m *Memory) PushWords(_ context.Context, words ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words = append(m.words, words...)
	return nil
}

// PopWord removes and returns the oldest word.
func (m *Memory) PopWord(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.words) == 0 {
		return "", ErrEmpty
	}
	word := m.words[0]
	m.words = m.words[1:]
	return word, nil
}

// WordCount returns the number of queued words.
func (m *Memory) WordCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.words)), nil
}

// PushItem appends an item payload to the item queue.
func (m *Memory) PushItem(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, payload)
	return nil
}

// PopItem removes and returns the oldest item payload.
func (m *Memory) PopItem(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) == 0 {
		return nil, ErrEmpty
	}
	item := m.items[0]
	m.items = m.items[1:]
	return item, nil
}

// ItemCount returns the number of queued items.
func (m *Memory) ItemCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.items)), nil
}

// PushFailed appends a terminal failure record.
func (m *Memory) PushFailed(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, payload)
	return nil
}

// FailedCount returns the number of recorded failures.
func (m *Memory) FailedCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.failed)), nil
}

// Clear removes all state.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen = make(map[string]struct{})
	m.frontier = nil
	m.seq = 0
	m.words = nil
	m.items = nil
	m.failed = nil
	return nil
}

// Close is a no-op for the in-process store.
func (m *Memory) Close() error {
	return nil
}

// frontierEntry is one queued request with its ordering keys.
type frontierEntry struct {
	payload  []byte
	priority int
	seq      uint64
}

// requestHeap orders entries by priority descending, then by insertion
// sequence ascending so equal priorities dispatch FIFO.
type requestHeap []frontierEntry

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) {
	*h = append(*h, x.(frontierEntry))
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}
