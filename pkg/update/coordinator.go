package update

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/responder/pkg/metrics"
	"gitlab.com/tinyland/lab/responder/pkg/poll"
)

// State is the coordinator's position in the check/prompt cycle.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateNoUpdate
	StateAvailablePrompted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateNoUpdate:
		return "no-update"
	case StateAvailablePrompted:
		return "available-prompted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decision is the user's answer to the update prompt.
type Decision int

const (
	DecisionDefer Decision = iota
	DecisionAccept
)

func (d Decision) String() string {
	if d == DecisionAccept {
		return "accept"
	}
	return "defer"
}

// Toast texts shown by the coordinator.
const (
	DeferredText  = "Update deferred"
	ActivatedText = "Application updating."
	PromptHeader  = "Update Available!"
)

// Action is one labelled prompt button.
type Action struct {
	Label    string
	Decision Decision
}

// Prompt is the blocking two-choice modal offered when an update is
// available.
type Prompt struct {
	Header  string
	Message string
	Actions [2]Action
	Notice  AvailableNotice
}

// Coordinator is the update state machine. All Handle methods must be
// called from a single goroutine (the bubbletea update loop); the Cmds they
// return run elsewhere and report back through messages. Close may be called
// from any goroutine.
type Coordinator struct {
	source Source
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	state     State
	activated bool
	prompt    *Prompt
}

// NewCoordinator returns an idle coordinator driving source. A nil logger
// uses slog.Default().
func NewCoordinator(source Source, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		source: source,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// State returns the current cycle state.
func (c *Coordinator) State() State { return c.state }

// Activated reports whether an activation signal has been seen this session.
func (c *Coordinator) Activated() bool { return c.activated }

// Prompt returns the open prompt, if any.
func (c *Coordinator) Prompt() (Prompt, bool) {
	if c.prompt == nil {
		return Prompt{}, false
	}
	return *c.prompt, true
}

// Closed reports whether the coordinator has been torn down.
func (c *Coordinator) Closed() bool { return c.closed.Load() }

// HandleTick requests an update check when updates are enabled. Ticks that
// arrive while a check or prompt is outstanding still request a check; the
// source is trusted to collapse concurrent checks.
func (c *Coordinator) HandleTick(t poll.Tick) tea.Cmd {
	if c.closed.Load() {
		return nil
	}
	if !c.source.Enabled() {
		metrics.UpdateChecks.WithLabelValues("skipped").Inc()
		c.logger.Debug("updates disabled, skipping check", "tick", t.Seq)
		return nil
	}

	if c.prompt == nil {
		c.transition(StateChecking)
	}
	metrics.UpdateChecks.WithLabelValues("requested").Inc()

	ctx, src, seq := c.ctx, c.source, t.Seq
	return func() tea.Msg {
		return CheckDoneMsg{Seq: seq, Err: src.CheckForUpdate(ctx)}
	}
}

// HandleCheckDone settles a finished check. Failures are swallowed: the next
// tick is the retry.
func (c *Coordinator) HandleCheckDone(msg CheckDoneMsg) {
	if c.closed.Load() {
		return
	}
	if msg.Err != nil {
		metrics.UpdateChecks.WithLabelValues("failed").Inc()
		c.logger.Debug("update check failed", "tick", msg.Seq, "error", msg.Err)
	}
	if c.state == StateChecking {
		c.transition(StateNoUpdate)
		c.transition(StateIdle)
	}
}

// HandleAvailable opens the update prompt. While a prompt is already open
// further availability signals are ignored.
func (c *Coordinator) HandleAvailable(n AvailableNotice) (Prompt, bool) {
	if c.closed.Load() {
		return Prompt{}, false
	}
	if c.prompt != nil {
		metrics.UpdatePrompts.WithLabelValues("suppressed").Inc()
		c.logger.Info("update prompt already open, ignoring availability signal",
			"version", n.Available.Version)
		return Prompt{}, false
	}

	text, ok := n.UpdateMessage()
	if !ok {
		c.logger.Warn("availability notice has no update message", "version", n.Available.Version)
	}
	c.logger.Info("a new version is available", "update_message", text, "version", n.Available.Version)

	p := Prompt{
		Header:  PromptHeader,
		Message: promptMessage(text),
		Actions: [2]Action{
			{Label: "Not Now", Decision: DecisionDefer},
			{Label: "OK", Decision: DecisionAccept},
		},
		Notice: n,
	}
	c.prompt = &p
	c.transition(StateAvailablePrompted)
	metrics.UpdatePrompts.WithLabelValues("shown").Inc()
	return p, true
}

// HandleDecision closes the prompt. Deferring returns to idle with a toast;
// accepting activates the update and then asks for a reload. A decision
// without an open prompt is ignored.
func (c *Coordinator) HandleDecision(d Decision) tea.Cmd {
	if c.closed.Load() || c.prompt == nil {
		return nil
	}
	c.prompt = nil
	c.transition(StateIdle)
	metrics.UpdateDecisions.WithLabelValues(d.String()).Inc()

	if d == DecisionDefer {
		c.logger.Info(DeferredText)
		return toastCmd(DeferredText)
	}

	ctx, src := c.ctx, c.source
	return func() tea.Msg {
		return ActivateDoneMsg{Err: src.ActivateUpdate(ctx)}
	}
}

// HandleActivateDone follows an accepted prompt with a reload. The reload is
// requested even when activation reported an error.
func (c *Coordinator) HandleActivateDone(msg ActivateDoneMsg) tea.Cmd {
	if c.closed.Load() {
		return nil
	}
	if msg.Err != nil {
		c.logger.Warn("update activation failed, reloading anyway", "error", msg.Err)
	}
	return func() tea.Msg { return ReloadMsg{} }
}

// HandleActivated notes an activation, whoever triggered it, and asks for a
// toast. It is valid in every state.
func (c *Coordinator) HandleActivated(n ActivatedNotice) tea.Cmd {
	if c.closed.Load() {
		return nil
	}
	c.activated = true
	metrics.UpdateActivations.Inc()
	c.logger.Info(ActivatedText, "previous", n.Previous.Version, "current", n.Current.Version)
	return toastCmd(ActivatedText)
}

// Close tears the coordinator down. In-flight checks and activations see a
// cancelled context, and anything they report afterwards is ignored.
func (c *Coordinator) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.cancel()
}

// Release implements lifecycle.Handle.
func (c *Coordinator) Release() error {
	c.Close()
	return nil
}

func (c *Coordinator) transition(to State) {
	if c.state == to {
		return
	}
	c.logger.Debug("update state", "from", c.state, "to", to)
	c.state = to
}

func promptMessage(details string) string {
	msg := "A new version of the application is available."
	if details != "" {
		msg += fmt.Sprintf(" (Details: %s)", details)
	}
	return msg + " Click OK to update now."
}
