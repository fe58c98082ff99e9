package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"k8s.io/utils/clock"

	"gitlab.com/tinyland/lab/responder/pkg/config"
	"gitlab.com/tinyland/lab/responder/pkg/events"
	"gitlab.com/tinyland/lab/responder/pkg/feed"
	"gitlab.com/tinyland/lab/responder/pkg/lifecycle"
	"gitlab.com/tinyland/lab/responder/pkg/poll"
	"gitlab.com/tinyland/lab/responder/pkg/update"
)

// Options wires the home screen to its collaborators.
type Options struct {
	Events  events.Service
	Updates update.Source
	// Online, when set, drives the header's online/offline indicator.
	Online *feed.Feed[events.OnlineChange]

	CheckInterval time.Duration
	ToastDuration time.Duration
	ToastPosition string
	Mouse         bool

	// Clock drives the update poll. Defaults to the real clock.
	Clock  clock.WithTicker
	Logger *slog.Logger
}

// Model is the home screen.
type Model struct {
	opts   Options
	logger *slog.Logger
	keys   keyMap
	help   help.Model
	zones  *zone.Manager

	ctx      context.Context
	registry *lifecycle.Registry
	gate     *lifecycle.Gate
	coord    *update.Coordinator

	ticks     <-chan poll.Tick
	stream    <-chan events.EventResponse
	available *feed.Subscription[update.AvailableNotice]
	activated *feed.Subscription[update.ActivatedNotice]
	online    *feed.Subscription[events.OnlineChange]

	width, height int

	list        *events.List
	selected    int64
	hasSelected bool
	streaming   bool

	route     string
	detail    *detailView
	isOnline  *bool
	status    string
	toast     string
	toastSeq  int
	promptSel int
	reload    bool
}

type detailView struct {
	id       int64
	response *events.EventResponse
	acks     []events.Acknowledgement
	loading  bool
	err      error
}

// New builds the screen and starts its background work: the event stream,
// the signal subscriptions, and an update poll that waits for the first
// frame. Everything started here is released by Teardown.
func New(opts Options) (Model, error) {
	if opts.Events == nil {
		return Model{}, errors.New("app: events service is required")
	}
	if opts.Updates == nil {
		return Model{}, errors.New("app: update source is required")
	}
	if opts.CheckInterval == 0 {
		opts.CheckInterval = time.Minute
	}
	if opts.ToastDuration <= 0 {
		opts.ToastDuration = 2 * time.Second
	}
	if opts.ToastPosition == "" {
		opts.ToastPosition = config.ToastTop
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := Model{
		opts:      opts,
		logger:    logger,
		keys:      defaultKeyMap(),
		help:      help.New(),
		registry:  lifecycle.NewRegistry(logger),
		gate:      lifecycle.NewGate(),
		list:      events.NewList(),
		route:     listRoute,
		promptSel: 1,
	}
	zones := zone.New()
	zones.SetEnabled(opts.Mouse)
	m.zones = zones
	m.registry.RegisterFunc("zones", func() error {
		zones.Close()
		return nil
	})

	m.coord = update.NewCoordinator(opts.Updates, logger)
	m.registry.Register("update coordinator", m.coord)

	ctx, cancel := context.WithCancel(context.Background())
	m.ctx = ctx
	m.registry.RegisterFunc("background context", func() error {
		cancel()
		return nil
	})

	stream, err := opts.Events.GetAll(ctx)
	if err != nil {
		_ = m.registry.ReleaseAll()
		return Model{}, fmt.Errorf("start event stream: %w", err)
	}
	m.stream = stream
	m.streaming = true

	m.available = opts.Updates.Available().Subscribe(4)
	m.registry.Register("available subscription", m.available)
	m.activated = opts.Updates.Activated().Subscribe(4)
	m.registry.Register("activated subscription", m.activated)
	if opts.Online != nil {
		m.online = opts.Online.Subscribe(4)
		m.registry.Register("online subscription", m.online)
	}

	var pollOpts []poll.Option
	if opts.Clock != nil {
		pollOpts = append(pollOpts, poll.WithClock(opts.Clock))
	}
	pollOpts = append(pollOpts, poll.WithLogger(logger))
	ticks, err := poll.Start(ctx, m.gate.Done(), opts.CheckInterval, pollOpts...)
	if err != nil {
		_ = m.registry.ReleaseAll()
		return Model{}, fmt.Errorf("start update poll: %w", err)
	}
	m.ticks = ticks

	return m, nil
}

// Init starts listening to every background source.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.stream),
		update.WaitForTick(m.ticks),
		update.WaitForAvailable(m.available),
		update.WaitForActivated(m.activated),
		waitForOnline(m.online),
	)
}

// Teardown releases everything New started. It is safe to call more than
// once; the first call's failures are returned.
func (m Model) Teardown() error {
	return m.registry.ReleaseAll()
}

// ReloadRequested reports whether the screen quit to apply an update.
func (m Model) ReloadRequested() bool { return m.reload }

// Route returns the current route.
func (m Model) Route() string { return m.route }

// Events returns the streamed responses, most recent first.
func (m Model) Events() []events.EventResponse { return m.list.Sorted() }

// Toast returns the visible toast text, if any.
func (m Model) Toast() string { return m.toast }

// Status returns the status line text.
func (m Model) Status() string { return m.status }

// Online reports the last known reachability. ok is false until the first
// report arrives.
func (m Model) Online() (online, ok bool) {
	if m.isOnline == nil {
		return false, false
	}
	return *m.isOnline, true
}

// Coordinator exposes the update coordinator for inspection.
func (m Model) Coordinator() *update.Coordinator { return m.coord }

// Gate exposes the stability gate for inspection.
func (m Model) Gate() *lifecycle.Gate { return m.gate }

// Registry exposes the subscription registry for inspection.
func (m Model) Registry() *lifecycle.Registry { return m.registry }

// Width returns the terminal width.
func (m Model) Width() int { return m.width }

// Height returns the terminal height.
func (m Model) Height() int { return m.height }
