package lifecycle

import "sync"

// Gate is a one-shot signal. The screen opens it once the first frame has
// been laid out; the poll scheduler waits on it before its first tick.
type Gate struct {
	once sync.Once
	ch   chan struct{}
}

// NewGate returns a closed-for-business gate waiting to be opened.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Open fires the gate. Only the first call has any effect.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.ch) })
}

// Done returns a channel that is closed when the gate opens.
func (g *Gate) Done() <-chan struct{} {
	return g.ch
}

// IsOpen reports whether Open has been called.
func (g *Gate) IsOpen() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}
