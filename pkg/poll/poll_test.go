package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func receive(t *testing.T, ch <-chan Tick) Tick {
	t.Helper()
	select {
	case tick, ok := <-ch:
		if !ok {
			t.Fatal("tick channel closed unexpectedly")
		}
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
	return Tick{}
}

func expectNoTick(t *testing.T, ch <-chan Tick) {
	t.Helper()
	select {
	case tick := <-ch:
		t.Fatalf("unexpected tick %+v", tick)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForTicker(t *testing.T, fc *testingclock.FakeClock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !fc.HasWaiters() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never created its ticker")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		ch, err := Start(context.Background(), make(chan struct{}), d)
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("interval %v: expected ErrInvalidInterval, got %v", d, err)
		}
		if ch != nil {
			t.Errorf("interval %v: expected nil channel", d)
		}
	}
}

func TestNoTickBeforeGate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fc := testingclock.NewFakeClock(epoch)
	gate := make(chan struct{})
	ticks, err := Start(ctx, gate, time.Minute, WithClock(fc))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Time passes well beyond several intervals before startup settles.
	fc.Step(5 * time.Minute)
	expectNoTick(t, ticks)
	if fc.HasWaiters() {
		t.Fatal("ticker must not exist before the gate opens")
	}

	stableAt := fc.Now()
	close(gate)

	first := receive(t, ticks)
	if !first.Initial || first.Seq != 0 {
		t.Errorf("first tick should be the gate tick, got %+v", first)
	}
	if first.Time.Before(stableAt) {
		t.Errorf("first tick at %v precedes stability at %v", first.Time, stableAt)
	}
}

func TestPeriodicTicksAreExactlyOneIntervalApart(t *testing.T) {
	for _, interval := range []time.Duration{time.Second, time.Minute, 90 * time.Second} {
		t.Run(interval.String(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			fc := testingclock.NewFakeClock(epoch)
			gate := make(chan struct{})
			ticks, err := Start(ctx, gate, interval, WithClock(fc))
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			close(gate)

			first := receive(t, ticks)
			waitForTicker(t, fc)

			// Nothing until a full interval has elapsed.
			fc.Step(interval - time.Nanosecond)
			expectNoTick(t, ticks)
			fc.Step(time.Nanosecond)

			prev := receive(t, ticks)
			if got := prev.Time.Sub(first.Time); got != interval {
				t.Errorf("gate->tick1 spacing = %v, want %v", got, interval)
			}
			for n := 2; n <= 5; n++ {
				fc.Step(interval)
				next := receive(t, ticks)
				if next.Seq != n {
					t.Errorf("expected seq %d, got %d", n, next.Seq)
				}
				if got := next.Time.Sub(prev.Time); got != interval {
					t.Errorf("tick%d-tick%d = %v, want %v", n, n-1, got, interval)
				}
				prev = next
			}
		})
	}
}

func TestCancelClosesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fc := testingclock.NewFakeClock(epoch)
	gate := make(chan struct{})
	ticks, err := Start(ctx, gate, time.Minute, WithClock(fc))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	cancel()
	select {
	case _, ok := <-ticks:
		if ok {
			t.Error("expected closed channel after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}
