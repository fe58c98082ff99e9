// Package app provides the home screen: a Bubbletea model that lists
// emergency events, opens a detail view for one of them, and hosts the
// update prompt and toasts driven by the update coordinator.
//
// Every piece of screen state changes inside Update. Background work (event
// streams, fetches, update checks) runs in tea.Cmds and reports back through
// the message types below.
package app

import (
	"time"

	"gitlab.com/tinyland/lab/responder/pkg/events"
)

// EventMsg carries one streamed event response into the update loop.
type EventMsg struct {
	Response events.EventResponse
}

// EventStreamClosedMsg reports that the GetAll stream ended.
type EventStreamClosedMsg struct{}

// OnlineMsg reports a change in data service reachability.
type OnlineMsg struct {
	Change events.OnlineChange
}

// NavigateMsg switches the screen to route. "/" is the event list and
// "/details/{id}" the detail view for one event.
type NavigateMsg struct {
	Route string
}

// DetailLoadedMsg delivers the response fetched for the detail view.
type DetailLoadedMsg struct {
	ID       int64
	Response events.EventResponse
	Err      error
}

// AcksLoadedMsg delivers the acknowledgements for the detail view.
type AcksLoadedMsg struct {
	ID   int64
	Acks []events.Acknowledgement
	Err  error
}

// toastExpiredMsg hides the toast with the matching sequence number.
type toastExpiredMsg struct {
	Seq int
	At  time.Time
}
