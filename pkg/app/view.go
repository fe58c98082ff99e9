package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"gitlab.com/tinyland/lab/responder/pkg/config"
	"gitlab.com/tinyland/lab/responder/pkg/events"
	"gitlab.com/tinyland/lab/responder/pkg/update"
)

var (
	accent = lipgloss.Color("#7C3AED")
	dim    = lipgloss.Color("#6B7280")
	good   = lipgloss.Color("#10B981")
	bad    = lipgloss.Color("#EF4444")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(accent)
	statusStyle   = lipgloss.NewStyle().Foreground(bad)
	toastStyle    = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#374151"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
	buttonStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(dim)
	activeButtonStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(accent)

	severityColors = map[string]lipgloss.Color{
		"critical": bad,
		"high":     lipgloss.Color("#F59E0B"),
		"medium":   lipgloss.Color("#3B82F6"),
		"low":      dim,
	}
)

const timeLayout = "Jan 02 15:04"

// View renders the screen.
func (m Model) View() string {
	// The zone worker is gone after teardown; Scan must not run.
	if m.registry.Released() {
		return ""
	}
	if m.width == 0 {
		return "loading..."
	}

	var sections []string
	sections = append(sections, m.viewHeader())
	if m.toast != "" && m.opts.ToastPosition != config.ToastBottom {
		sections = append(sections, m.viewToast())
	}

	body := m.viewBody()
	if p, open := m.coord.Prompt(); open {
		body = m.viewPrompt(p)
	}
	sections = append(sections, body)

	if m.toast != "" && m.opts.ToastPosition == config.ToastBottom {
		sections = append(sections, m.viewToast())
	}
	if m.status != "" {
		sections = append(sections, statusStyle.Render(ansi.Truncate(m.status, m.width, "…")))
	}
	sections = append(sections, m.help.View(m.keys))

	return m.zones.Scan(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) viewHeader() string {
	title := titleStyle.Render("Emergency events")

	var indicator string
	switch online, ok := m.Online(); {
	case !ok:
		indicator = dimStyle.Render("○ connecting")
	case online:
		indicator = lipgloss.NewStyle().Foreground(good).Render("● online")
	default:
		indicator = lipgloss.NewStyle().Foreground(bad).Render("● offline")
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(indicator)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + indicator
}

func (m Model) viewToast() string {
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, toastStyle.Render(m.toast))
}

func (m Model) viewBody() string {
	if m.route != listRoute {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m Model) viewList() string {
	sorted := m.list.Sorted()
	if len(sorted) == 0 {
		if m.streaming {
			return dimStyle.Render("Waiting for events...")
		}
		return dimStyle.Render("No events.")
	}

	cursor := m.cursorIndex(sorted)
	lines := make([]string, 0, len(sorted))
	for i, r := range sorted {
		line := m.viewRow(r)
		if i == cursor {
			line = selectedStyle.Render(ansi.Truncate("› "+line, m.width, "…"))
		} else {
			line = ansi.Truncate("  "+line, m.width, "…")
		}
		lines = append(lines, m.zones.Mark(eventZone+strconv.FormatInt(r.ID(), 10), line))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewRow(r events.EventResponse) string {
	mark := " "
	if r.Responded {
		mark = "✓"
	}
	sev := r.Event.Severity
	if c, ok := severityColors[sev]; ok {
		sev = lipgloss.NewStyle().Foreground(c).Render(fmt.Sprintf("%-8s", sev))
	} else {
		sev = fmt.Sprintf("%-8s", sev)
	}
	return fmt.Sprintf("%s %s %s %s", mark, r.Event.Created.Local().Format(timeLayout), sev, r.Event.Title)
}

func (m Model) viewDetail() string {
	d := m.detail
	switch {
	case d == nil:
		return ""
	case d.loading:
		return dimStyle.Render("Loading event...")
	case d.response == nil:
		return dimStyle.Render("Event unavailable. Press esc to go back.")
	}

	e := d.response.Event
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render(e.Title))
	fmt.Fprintf(&b, "%s  %s\n", dimStyle.Render("Reported"), e.Created.Local().Format(timeLayout))
	if e.Location != "" {
		fmt.Fprintf(&b, "%s  %s\n", dimStyle.Render("Location"), e.Location)
	}
	if e.Severity != "" {
		fmt.Fprintf(&b, "%s  %s\n", dimStyle.Render("Severity"), e.Severity)
	}
	if d.response.Responded {
		at := ""
		if d.response.RespondedAt != nil {
			at = " at " + d.response.RespondedAt.Local().Format(timeLayout)
		}
		fmt.Fprintf(&b, "%s  yes%s\n", dimStyle.Render("Responded"), at)
	}
	if e.Description != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(m.width).Render(e.Description))
		b.WriteString("\n")
	}

	b.WriteString("\n" + titleStyle.Render("Acknowledgements") + "\n")
	if len(d.acks) == 0 {
		b.WriteString(dimStyle.Render("none"))
	}
	for _, a := range d.acks {
		line := fmt.Sprintf("%s  %s  %s", a.Created.Local().Format(timeLayout), a.User, a.Note)
		b.WriteString(ansi.Truncate(line, m.width, "…") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewPrompt(p update.Prompt) string {
	width := min(60, max(20, m.width-4))
	inner := width - modalStyle.GetHorizontalFrameSize()

	buttons := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		style := buttonStyle
		if i == m.promptSel {
			style = activeButtonStyle
		}
		buttons[i] = m.zones.Mark(promptZone+strconv.Itoa(i), style.Render(a.Label))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(p.Header),
		"",
		lipgloss.NewStyle().Width(inner).Render(p.Message),
		"",
		lipgloss.PlaceHorizontal(inner, lipgloss.Right, lipgloss.JoinHorizontal(lipgloss.Top, buttons...)),
	)
	modal := modalStyle.Width(width).Render(content)

	height := max(lipgloss.Height(modal), m.height-4)
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, modal)
}
