package events

import "sort"

// List accumulates streamed responses in arrival order and hands out a
// freshly sorted copy on every read. It is not safe for concurrent use; the
// screen only touches it from its update loop.
type List struct {
	items []EventResponse
	index map[int64]int
}

// NewList returns an empty list.
func NewList() *List {
	return &List{index: make(map[int64]int)}
}

// Add appends r. A response whose id is already present replaces the stored
// copy in place, keeping its arrival position.
func (l *List) Add(r EventResponse) {
	if i, ok := l.index[r.ID()]; ok {
		l.items[i] = r
		return
	}
	l.index[r.ID()] = len(l.items)
	l.items = append(l.items, r)
}

// Len returns the number of distinct responses.
func (l *List) Len() int { return len(l.items) }

// Get returns the response with the given event id.
func (l *List) Get(id int64) (EventResponse, bool) {
	i, ok := l.index[id]
	if !ok {
		return EventResponse{}, false
	}
	return l.items[i], true
}

// Sorted returns the responses ordered by event creation time, most recent
// first. Equal timestamps keep arrival order. The result is a new slice each
// call, so callers may hold on to it.
func (l *List) Sorted() []EventResponse {
	out := make([]EventResponse, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Event.Created.After(out[j].Event.Created)
	})
	return out
}
