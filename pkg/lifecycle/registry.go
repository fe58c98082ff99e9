// Package lifecycle owns screen-lifetime resources: the Registry that
// releases every listener and timer exactly once at teardown, and the Gate
// that marks the end of startup.
package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Handle is a cancelable resource owned by a screen. Feed subscriptions,
// scheduler cancel funcs and the update coordinator all satisfy it.
type Handle interface {
	Release() error
}

// HandleFunc adapts a plain function to Handle.
type HandleFunc func() error

// Release calls f.
func (f HandleFunc) Release() error { return f() }

type entry struct {
	name   string
	handle Handle
}

// Registry collects handles and releases them together. It is safe for
// concurrent use.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	entries  []entry
	released bool
}

// NewRegistry returns an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds h under name. If the registry has already been released the
// handle is released immediately, so nothing registered late can leak.
func (r *Registry) Register(name string, h Handle) {
	if h == nil {
		return
	}

	r.mu.Lock()
	if !r.released {
		r.entries = append(r.entries, entry{name: name, handle: h})
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if err := release(entry{name: name, handle: h}); err != nil {
		r.logger.Warn("late handle release failed", "handle", name, "error", err)
	}
}

// RegisterFunc is Register for a plain release function.
func (r *Registry) RegisterFunc(name string, fn func() error) {
	if fn == nil {
		return
	}
	r.Register(name, HandleFunc(fn))
}

// Len returns the number of handles waiting to be released.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Released reports whether ReleaseAll has run.
func (r *Registry) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// ReleaseAll releases every registered handle, most recent first. A handle
// that fails or panics is logged and skipped; the rest are still released.
// The returned aggregate lists the failures for reporting only: teardown
// itself never fails. Calls after the first return nil.
func (r *Registry) ReleaseAll() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := release(e); err != nil {
			r.logger.Warn("handle release failed", "handle", e.name, "error", err)
			errs = append(errs, fmt.Errorf("release %s: %w", e.name, err))
		}
	}

	r.logger.Debug("registry released", "handles", len(entries), "failures", len(errs))
	return utilerrors.NewAggregate(errs)
}

func release(e entry) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return e.handle.Release()
}
