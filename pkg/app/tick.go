package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/responder/pkg/events"
	"gitlab.com/tinyland/lab/responder/pkg/feed"
)

// toastExpireCmd returns a Cmd that expires toast seq after d.
func toastExpireCmd(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return toastExpiredMsg{Seq: seq, At: t}
	})
}

// waitForEvent delivers the next streamed response, or
// EventStreamClosedMsg once the stream ends.
func waitForEvent(ch <-chan events.EventResponse) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return EventStreamClosedMsg{}
		}
		return EventMsg{Response: r}
	}
}

// waitForOnline delivers the next reachability change. It yields nil once
// the subscription is released.
func waitForOnline(sub *feed.Subscription[events.OnlineChange]) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-sub.C()
		if !ok {
			return nil
		}
		return OnlineMsg{Change: c}
	}
}

// loadDetailCmd fetches one response for the detail view.
func loadDetailCmd(ctx context.Context, svc events.Service, id int64) tea.Cmd {
	return func() tea.Msg {
		r, err := svc.GetByID(ctx, id)
		return DetailLoadedMsg{ID: id, Response: r, Err: err}
	}
}

// loadAcksCmd fetches the acknowledgements for r.
func loadAcksCmd(ctx context.Context, svc events.Service, r events.EventResponse) tea.Cmd {
	return func() tea.Msg {
		acks, err := svc.GetAcknowledgements(ctx, r)
		return AcksLoadedMsg{ID: r.ID(), Acks: acks, Err: err}
	}
}
