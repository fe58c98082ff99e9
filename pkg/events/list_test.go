package events

import (
	"testing"
	"time"
)

func resp(id int64, created time.Time) EventResponse {
	return EventResponse{Event: EmergencyEvent{ID: id, Created: created, Title: "event"}}
}

func TestListSortedMostRecentFirst(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	l := NewList()
	// Arrival order differs from creation order.
	l.Add(resp(1, base))
	l.Add(resp(2, base.Add(2*time.Hour)))
	l.Add(resp(3, base.Add(time.Hour)))

	got := l.Sorted()
	want := []int64{2, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID() != id {
			t.Errorf("Sorted()[%d] = %d, want %d", i, got[i].ID(), id)
		}
	}
}

func TestListSortedRecomputedAfterAdd(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	l := NewList()
	l.Add(resp(1, base))
	first := l.Sorted()

	l.Add(resp(2, base.Add(time.Minute)))
	second := l.Sorted()

	if len(first) != 1 || first[0].ID() != 1 {
		t.Fatalf("earlier snapshot mutated: %+v", first)
	}
	if len(second) != 2 || second[0].ID() != 2 {
		t.Fatalf("Sorted() after Add = %+v, want newest first", second)
	}
}

func TestListEqualTimestampsKeepArrivalOrder(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	l := NewList()
	for _, id := range []int64{7, 3, 9} {
		l.Add(resp(id, at))
	}
	got := l.Sorted()
	for i, id := range []int64{7, 3, 9} {
		if got[i].ID() != id {
			t.Errorf("Sorted()[%d] = %d, want %d", i, got[i].ID(), id)
		}
	}
}

func TestListAddReplacesDuplicate(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	l := NewList()
	l.Add(resp(1, at))
	updated := resp(1, at)
	updated.Responded = true
	l.Add(updated)

	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	got, ok := l.Get(1)
	if !ok || !got.Responded {
		t.Fatalf("Get(1) = %+v, %v; want responded copy", got, ok)
	}
	if _, ok := l.Get(99); ok {
		t.Error("Get(99) found a missing id")
	}
}

func TestDetailRoute(t *testing.T) {
	r := resp(42, time.Now())
	route := DetailRoute(r)
	if route != "/details/42" {
		t.Fatalf("DetailRoute = %q", route)
	}
	id, ok := ParseDetailRoute(route)
	if !ok || id != 42 {
		t.Fatalf("ParseDetailRoute(%q) = %d, %v", route, id, ok)
	}
	for _, bad := range []string{"", "/details/", "/details/x", "/events/42"} {
		if _, ok := ParseDetailRoute(bad); ok {
			t.Errorf("ParseDetailRoute(%q) accepted", bad)
		}
	}
}
