package model

import (
	"encoding/json"
	"sort"
)

// Item is a structured piece of data extracted by a spider. Items flow
// through the item middleware stage into the durable item queue, where a
// separate exporter process may consume them. Ownership transfers to the
// queue on emission; spiders must not mutate an item after returning it.
type Item map[string]any

// Clone returns a shallow copy of the item. Field values are shared, the
// map itself is not.
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = v
	}
	return out
}

// Fields returns the item's field names in sorted order. Exporters use
// this for a stable column order.
func (i Item) Fields() []string {
	fields := make([]string, 0, len(i))
	for k := range i {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// MarshalItem serializes an item for the shared store.
func MarshalItem(i Item) ([]byte, error) {
	return json.Marshal(i)
}

// UnmarshalItem deserializes an item from its store payload.
func UnmarshalItem(data []byte) (Item, error) {
	var i Item
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, err
	}
	return i, nil
}

// ParseResult is what a spider's Parse produces for one response: any
// follow-up requests to schedule and any items to emit. Either slice may
// be empty.
type ParseResult struct {
	// Requests are follow-up requests. They pass through the duplicate
	// filter like any other scheduled request.
	Requests []*Request

	// Items are extracted data records bound for the item queue.
	Items []Item
}
