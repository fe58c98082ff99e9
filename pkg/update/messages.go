package update

import (
	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/responder/pkg/feed"
	"gitlab.com/tinyland/lab/responder/pkg/poll"
)

// TickMsg wraps a poll tick for the bubbletea loop.
type TickMsg struct {
	Tick poll.Tick
}

// CheckDoneMsg reports that a CheckForUpdate call returned.
type CheckDoneMsg struct {
	Seq int
	Err error
}

// AvailableMsg carries an availability signal into the update loop.
type AvailableMsg struct {
	Notice AvailableNotice
}

// ActivatedMsg carries an activation signal into the update loop.
type ActivatedMsg struct {
	Notice ActivatedNotice
}

// ActivateDoneMsg reports that ActivateUpdate returned after the user
// accepted the prompt.
type ActivateDoneMsg struct {
	Err error
}

// ReloadMsg asks the host to restart the application.
type ReloadMsg struct{}

// ToastMsg asks the host to show a transient notification.
type ToastMsg struct {
	Text string
}

// WaitForTick returns a Cmd that delivers the next tick as a TickMsg. It
// yields nil once the stream is closed, which ends the listen loop.
func WaitForTick(ticks <-chan poll.Tick) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-ticks
		if !ok {
			return nil
		}
		return TickMsg{Tick: t}
	}
}

// WaitForAvailable returns a Cmd that delivers the next availability signal.
func WaitForAvailable(sub *feed.Subscription[AvailableNotice]) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-sub.C()
		if !ok {
			return nil
		}
		return AvailableMsg{Notice: n}
	}
}

// WaitForActivated returns a Cmd that delivers the next activation signal.
func WaitForActivated(sub *feed.Subscription[ActivatedNotice]) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-sub.C()
		if !ok {
			return nil
		}
		return ActivatedMsg{Notice: n}
	}
}

func toastCmd(text string) tea.Cmd {
	return func() tea.Msg { return ToastMsg{Text: text} }
}
