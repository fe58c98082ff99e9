// Package events holds the emergency-event records shown on the home screen,
// the list view-model that orders them, and the data-fetch services that
// stream them in.
package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EmergencyEvent is one incident reported by the service.
type EmergencyEvent struct {
	ID          int64     `json:"id"`
	Created     time.Time `json:"created"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Severity    string    `json:"severity,omitempty"`
}

// EventResponse wraps an event with this responder's response state. It is
// treated as immutable once received.
type EventResponse struct {
	Event       EmergencyEvent `json:"event"`
	Responded   bool           `json:"responded"`
	RespondedAt *time.Time     `json:"respondedAt,omitempty"`
	Note        string         `json:"note,omitempty"`
}

// ID returns the wrapped event's id.
func (r EventResponse) ID() int64 { return r.Event.ID }

// Acknowledgement is a note left against one event response.
type Acknowledgement struct {
	ID      int64     `json:"id"`
	EventID int64     `json:"eventId"`
	User    string    `json:"user"`
	Note    string    `json:"note,omitempty"`
	Created time.Time `json:"created"`
}

// OnlineChange reports a flip in data service reachability.
type OnlineChange struct {
	Online bool
	At     time.Time
}

const detailPrefix = "/details/"

// DetailRoute returns the navigation route for a response's detail view.
func DetailRoute(r EventResponse) string {
	return fmt.Sprintf("%s%d", detailPrefix, r.ID())
}

// ParseDetailRoute extracts the event id from a detail route.
func ParseDetailRoute(route string) (int64, bool) {
	rest, ok := strings.CutPrefix(route, detailPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
