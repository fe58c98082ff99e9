// Package poll produces the update-check tick stream: one tick when the
// stability gate opens, then one every interval until the context ends.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"k8s.io/utils/clock"
)

// ErrInvalidInterval is returned by Start for a non-positive interval.
var ErrInvalidInterval = errors.New("poll: interval must be positive")

// Tick is one scheduled trigger.
type Tick struct {
	// Seq is 0 for the gate tick and increases by one per periodic tick.
	Seq int
	// Time is the clock reading the tick was produced at.
	Time time.Time
	// Initial is set on the tick emitted when the gate opened.
	Initial bool
}

type options struct {
	clock  clock.WithTicker
	logger *slog.Logger
}

// Option configures Start.
type Option func(*options)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c clock.WithTicker) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger used for scheduler diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Start returns a lazily started tick stream. Nothing is emitted until gate
// is closed; the gate itself produces the first tick and periodic ticks
// follow every interval after it. The channel closes when ctx is done.
//
// Ticks are not queued for slow consumers: while a tick is waiting to be
// read, further ticker fires are dropped by the ticker.
func Start(ctx context.Context, gate <-chan struct{}, interval time.Duration, opts ...Option) (<-chan Tick, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	o := options{clock: clock.RealClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	out := make(chan Tick, 1)
	go run(ctx, gate, interval, o, out)
	return out, nil
}

func run(ctx context.Context, gate <-chan struct{}, interval time.Duration, o options, out chan<- Tick) {
	defer close(out)

	select {
	case <-ctx.Done():
		return
	case <-gate:
	}

	o.logger.Debug("stability gate open, starting update polling", "interval", interval)
	if !emit(ctx, out, Tick{Seq: 0, Time: o.clock.Now(), Initial: true}) {
		return
	}

	ticker := o.clock.NewTicker(interval)
	defer ticker.Stop()

	for seq := 1; ; seq++ {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C():
			if !emit(ctx, out, Tick{Seq: seq, Time: t}) {
				return
			}
		}
	}
}

func emit(ctx context.Context, out chan<- Tick, t Tick) bool {
	select {
	case out <- t:
		return true
	case <-ctx.Done():
		return false
	}
}
