package app

import "gitlab.com/tinyland/lab/responder/pkg/events"

const listRoute = "/"

// CursorDown moves the selection to the next event, wrapping around to
// the first event after the last.
func (m *Model) CursorDown() {
	sorted := m.list.Sorted()
	if len(sorted) == 0 {
		return
	}
	m.selectID(sorted[(m.cursorIndex(sorted)+1)%len(sorted)].ID())
}

// CursorUp moves the selection to the previous event, wrapping around to
// the last event before the first.
func (m *Model) CursorUp() {
	sorted := m.list.Sorted()
	n := len(sorted)
	if n == 0 {
		return
	}
	m.selectID(sorted[(m.cursorIndex(sorted)-1+n)%n].ID())
}

// Selected returns the highlighted event. The selection is held by event
// ID, so it stays on the same event while newer ones stream in above it.
func (m *Model) Selected() (events.EventResponse, bool) {
	sorted := m.list.Sorted()
	if len(sorted) == 0 {
		return events.EventResponse{}, false
	}
	return sorted[m.cursorIndex(sorted)], true
}

func (m *Model) selectID(id int64) {
	m.selected = id
	m.hasSelected = true
}

// cursorIndex locates the selected event in sorted. Without a selection,
// or when the event is gone, the first row is used.
func (m *Model) cursorIndex(sorted []events.EventResponse) int {
	if !m.hasSelected {
		return 0
	}
	for i, r := range sorted {
		if r.ID() == m.selected {
			return i
		}
	}
	return 0
}
