// Package readiness provides a one-shot latch that defers work until a
// prerequisite, such as network reachability, has been observed once.
package readiness

import (
	"context"
	"sync"
)

// Gate is a single-write, multi-read latch. Once signalled it stays open.
type Gate struct {
	once  sync.Once
	ready chan struct{}
}

func NewGate() *Gate {
	return &Gate{ready: make(chan struct{})}
}

// Signal opens the gate. Safe to call any number of times from any goroutine.
func (g *Gate) Signal() {
	g.once.Do(func() {
		close(g.ready)
	})
}

// Wait blocks until the gate is open or ctx ends. It never times out on its
// own; callers that cannot afford to block must not call it.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	default:
	}

	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the gate is open without blocking.
func (g *Gate) Ready() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the gate opens.
func (g *Gate) Done() <-chan struct{} {
	return g.ready
}
