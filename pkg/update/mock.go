package update

import (
	"context"
	"sync"
	"sync/atomic"

	"gitlab.com/tinyland/lab/responder/pkg/feed"
)

// MockSource implements Source for tests and the --use-mocks mode. It counts
// calls and lets callers inject check and activate behaviour.
type MockSource struct {
	mu      sync.RWMutex
	enabled bool

	available *feed.Feed[AvailableNotice]
	activated *feed.Feed[ActivatedNotice]

	checkCount    atomic.Int64
	activateCount atomic.Int64

	// CheckFunc, if set, runs on every CheckForUpdate call.
	CheckFunc func(ctx context.Context) error
	// ActivateFunc, if set, runs on every ActivateUpdate call.
	ActivateFunc func(ctx context.Context) error
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithEnabled sets the Enabled() return value.
func WithEnabled(enabled bool) MockSourceOption {
	return func(m *MockSource) { m.enabled = enabled }
}

// WithCheckFunc sets custom CheckForUpdate behaviour.
func WithCheckFunc(fn func(ctx context.Context) error) MockSourceOption {
	return func(m *MockSource) { m.CheckFunc = fn }
}

// WithActivateFunc sets custom ActivateUpdate behaviour.
func WithActivateFunc(fn func(ctx context.Context) error) MockSourceOption {
	return func(m *MockSource) { m.ActivateFunc = fn }
}

// NewMockSource returns an enabled mock source.
func NewMockSource(opts ...MockSourceOption) *MockSource {
	m := &MockSource{
		enabled:   true,
		available: feed.New[AvailableNotice](),
		activated: feed.New[ActivatedNotice](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled returns the configured flag.
func (m *MockSource) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// SetEnabled updates the flag (thread-safe).
func (m *MockSource) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// CheckForUpdate counts the call and delegates to CheckFunc.
func (m *MockSource) CheckForUpdate(ctx context.Context) error {
	m.checkCount.Add(1)
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx)
	}
	return nil
}

// ActivateUpdate counts the call and delegates to ActivateFunc.
func (m *MockSource) ActivateUpdate(ctx context.Context) error {
	m.activateCount.Add(1)
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx)
	}
	return nil
}

// Available returns the availability feed.
func (m *MockSource) Available() *feed.Feed[AvailableNotice] { return m.available }

// Activated returns the activation feed.
func (m *MockSource) Activated() *feed.Feed[ActivatedNotice] { return m.activated }

// PublishAvailable emits an availability signal.
func (m *MockSource) PublishAvailable(n AvailableNotice) int { return m.available.Send(n) }

// PublishActivated emits an activation signal.
func (m *MockSource) PublishActivated(n ActivatedNotice) int { return m.activated.Send(n) }

// CheckCount returns how many times CheckForUpdate has been called.
func (m *MockSource) CheckCount() int64 { return m.checkCount.Load() }

// ActivateCount returns how many times ActivateUpdate has been called.
func (m *MockSource) ActivateCount() int64 { return m.activateCount.Load() }
