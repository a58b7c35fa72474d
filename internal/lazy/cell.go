// Package lazy provides a single-assignment cell for values that are
// expensive to construct and shared by concurrent callers.
package lazy

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("cell closed")

type state int

const (
	stateEmpty state = iota
	statePending
	stateResolved
	stateClosed
)

// call is one in-flight construction that waiters attach to.
type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Cell holds a value constructed at most once.
//
// The first Get starts construction; concurrent callers wait on the same
// attempt. A failed attempt is reported to all of its waiters and leaves the
// cell empty, so the next Get tries again.
type Cell[T any] struct {
	mu      sync.Mutex
	state   state
	val     T
	pending *call[T]
	release func(T) // set by Close while a call is in flight
}

// Get returns the value, constructing it with init if needed.
//
// init runs detached from the caller's cancellation so that one impatient
// caller cannot fail the attempt for everyone else; ctx only bounds how long
// this caller waits.
func (c *Cell[T]) Get(ctx context.Context, init func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	switch c.state {
	case stateResolved:
		v := c.val
		c.mu.Unlock()
		return v, nil
	case stateClosed:
		c.mu.Unlock()
		var zero T
		return zero, ErrClosed
	case stateEmpty:
		cl := &call[T]{done: make(chan struct{})}
		c.pending = cl
		c.state = statePending
		go c.run(context.WithoutCancel(ctx), cl, init)
	}
	cl := c.pending
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Cell[T]) run(ctx context.Context, cl *call[T], init func(context.Context) (T, error)) {
	v, err := init(ctx)

	c.mu.Lock()
	var release func(T)
	switch {
	case c.state == stateClosed:
		// Closed while constructing: hand the value back, never store it.
		if err == nil {
			release = c.release
			err = ErrClosed
		}
		c.release = nil
	case err != nil:
		c.state = stateEmpty
	default:
		c.state = stateResolved
		c.val = v
	}
	c.pending = nil
	c.mu.Unlock()

	if release != nil {
		release(v)
	}

	if err == nil {
		cl.val = v
	}
	cl.err = err
	close(cl.done)
}

// Peek returns the value if it has been constructed.
func (c *Cell[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateResolved {
		var zero T
		return zero, false
	}
	return c.val, true
}

// Pending reports whether a construction is in flight.
func (c *Cell[T]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == statePending
}

// Close makes the cell permanently unusable. A constructed value is passed to
// release immediately; a value still being constructed is passed to release
// when it lands. release may be nil.
func (c *Cell[T]) Close(release func(T)) {
	c.mu.Lock()
	prev := c.state
	v := c.val
	c.state = stateClosed
	var zero T
	c.val = zero
	if prev == statePending {
		c.release = release
	}
	c.mu.Unlock()

	if prev == stateResolved && release != nil {
		release(v)
	}
}
