package feed

import "testing"

func TestSendDeliversToAllSubscribers(t *testing.T) {
	f := New[string]()
	a := f.Subscribe(1)
	b := f.Subscribe(1)

	if n := f.Send("v2"); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if got := <-a.C(); got != "v2" {
		t.Errorf("subscriber a got %q", got)
	}
	if got := <-b.C(); got != "v2" {
		t.Errorf("subscriber b got %q", got)
	}
}

func TestSendDropsWhenBufferFull(t *testing.T) {
	f := New[int]()
	s := f.Subscribe(1)

	f.Send(1)
	f.Send(2)

	if f.Dropped() != 1 {
		t.Errorf("expected 1 dropped delivery, got %d", f.Dropped())
	}
	if got := <-s.C(); got != 1 {
		t.Errorf("expected first value to be kept, got %d", got)
	}
}

func TestReleaseClosesChannelAndDetaches(t *testing.T) {
	f := New[int]()
	s := f.Subscribe(0)

	if err := s.Release(); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if _, ok := <-s.C(); ok {
		t.Error("expected closed channel after Release")
	}
	if f.Len() != 0 {
		t.Errorf("expected no subscribers, got %d", f.Len())
	}

	// Second release must not panic on double close.
	if err := s.Release(); err != nil {
		t.Errorf("second Release() error: %v", err)
	}
	if n := f.Send(1); n != 0 {
		t.Errorf("expected no deliveries after release, got %d", n)
	}
}

func TestCloseReleasesAllAndRejectsNew(t *testing.T) {
	f := New[int]()
	a := f.Subscribe(1)

	f.Close()
	f.Close()

	if _, ok := <-a.C(); ok {
		t.Error("expected channel closed after feed Close")
	}

	late := f.Subscribe(1)
	if _, ok := <-late.C(); ok {
		t.Error("expected subscription to closed feed to be closed")
	}
	if err := late.Release(); err != nil {
		t.Errorf("Release() on late subscription: %v", err)
	}
}
