package app

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/responder/pkg/events"
	"gitlab.com/tinyland/lab/responder/pkg/update"
)

const (
	promptZone = "prompt-action-"
	eventZone  = "event-"
)

// Update handles a message and returns the next model. Once the screen has
// been torn down every message is ignored.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.registry.Released() {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		// The first size message means the first frame can render.
		m.gate.Open()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case update.TickMsg:
		return m, tea.Batch(m.coord.HandleTick(msg.Tick), update.WaitForTick(m.ticks))

	case update.CheckDoneMsg:
		m.coord.HandleCheckDone(msg)
		return m, nil

	case update.AvailableMsg:
		if _, ok := m.coord.HandleAvailable(msg.Notice); ok {
			m.promptSel = 1
		}
		return m, update.WaitForAvailable(m.available)

	case update.ActivatedMsg:
		return m, tea.Batch(m.coord.HandleActivated(msg.Notice), update.WaitForActivated(m.activated))

	case update.ActivateDoneMsg:
		return m, m.coord.HandleActivateDone(msg)

	case update.ReloadMsg:
		m.reload = true
		m.logger.Info("reloading to apply update")
		if err := m.Teardown(); err != nil {
			m.logger.Warn("teardown before reload", "error", err)
		}
		return m, tea.Quit

	case update.ToastMsg:
		m.toastSeq++
		m.toast = msg.Text
		return m, toastExpireCmd(m.opts.ToastDuration, m.toastSeq)

	case toastExpiredMsg:
		if msg.Seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case EventMsg:
		m.list.Add(msg.Response)
		return m, waitForEvent(m.stream)

	case EventStreamClosedMsg:
		m.streaming = false
		m.logger.Debug("event stream closed")
		return m, nil

	case OnlineMsg:
		online := msg.Change.Online
		m.isOnline = &online
		return m, waitForOnline(m.online)

	case NavigateMsg:
		return m.navigate(msg.Route)

	case DetailLoadedMsg:
		return m.handleDetailLoaded(msg)

	case AcksLoadedMsg:
		if m.detail == nil || m.detail.id != msg.ID {
			return m, nil
		}
		if msg.Err != nil {
			m.status = fmt.Sprintf("acknowledgements: %v", msg.Err)
			return m, nil
		}
		m.detail.acks = msg.Acks
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	if p, open := m.coord.Prompt(); open {
		switch {
		case key.Matches(msg, m.keys.Left):
			m.promptSel = (m.promptSel + len(p.Actions) - 1) % len(p.Actions)
		case key.Matches(msg, m.keys.Right):
			m.promptSel = (m.promptSel + 1) % len(p.Actions)
		case key.Matches(msg, m.keys.Choose):
			return m, m.coord.HandleDecision(p.Actions[m.promptSel].Decision)
		case key.Matches(msg, m.keys.Defer):
			return m, m.coord.HandleDecision(update.DecisionDefer)
		case key.Matches(msg, m.keys.Accept):
			return m, m.coord.HandleDecision(update.DecisionAccept)
		}
		// The prompt is modal.
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case m.route != listRoute && key.Matches(msg, m.keys.Back):
		return m.navigate(listRoute)
	case m.route == listRoute && key.Matches(msg, m.keys.Down):
		m.CursorDown()
	case m.route == listRoute && key.Matches(msg, m.keys.Up):
		m.CursorUp()
	case m.route == listRoute && key.Matches(msg, m.keys.Open):
		if r, ok := m.Selected(); ok {
			return m.navigate(events.DetailRoute(r))
		}
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	if p, open := m.coord.Prompt(); open {
		for i, a := range p.Actions {
			if z := m.zones.Get(promptZone + strconv.Itoa(i)); z != nil && z.InBounds(msg) {
				m.promptSel = i
				return m, m.coord.HandleDecision(a.Decision)
			}
		}
		return m, nil
	}

	if m.route != listRoute {
		return m, nil
	}
	for _, r := range m.list.Sorted() {
		if z := m.zones.Get(eventZone + strconv.FormatInt(r.ID(), 10)); z != nil && z.InBounds(msg) {
			m.selectID(r.ID())
			return m.navigate(events.DetailRoute(r))
		}
	}
	return m, nil
}

// navigate switches routes. Entering a detail route starts loading the
// event; leaving it drops any load still in flight.
func (m Model) navigate(route string) (tea.Model, tea.Cmd) {
	if route == listRoute || route == "" {
		m.route = listRoute
		m.detail = nil
		return m, nil
	}

	id, ok := events.ParseDetailRoute(route)
	if !ok {
		m.status = fmt.Sprintf("unknown route %q", route)
		return m, nil
	}
	m.route = route
	m.status = ""
	m.detail = &detailView{id: id, loading: true}
	return m, loadDetailCmd(m.ctx, m.opts.Events, id)
}

func (m Model) handleDetailLoaded(msg DetailLoadedMsg) (tea.Model, tea.Cmd) {
	if m.detail == nil || m.detail.id != msg.ID {
		// The user navigated away before the fetch finished.
		return m, nil
	}
	d := *m.detail
	d.loading = false
	if msg.Err != nil {
		d.err = msg.Err
		if errors.Is(msg.Err, events.ErrNotFound) {
			m.status = fmt.Sprintf("event %d not found", msg.ID)
		} else {
			m.status = fmt.Sprintf("load event %d: %v", msg.ID, msg.Err)
		}
		m.detail = &d
		return m, nil
	}
	r := msg.Response
	d.response = &r
	m.detail = &d
	return m, loadAcksCmd(m.ctx, m.opts.Events, r)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if err := m.Teardown(); err != nil {
		m.logger.Warn("teardown", "error", err)
	}
	return m, tea.Quit
}
