package bridge

import (
	"context"
	"fmt"
	"sync"
)

// Cell is a single-assignment result container. The worker settles it exactly
// once with either a value or an error; the submitting caller awaits it.
// A settled cell never changes: later settle attempts are rejected and
// reported, not applied.
type Cell struct {
	done chan struct{}
	once sync.Once
	val  any
	err  error
}

func newCell() *Cell {
	return &Cell{done: make(chan struct{})}
}

// settle records the outcome and wakes the awaiting caller. It reports false
// if the cell was already settled, which is a defect in the settling code.
func (c *Cell) settle(v any, err error) bool {
	applied := false
	c.once.Do(func() {
		c.val = v
		c.err = err
		close(c.done)
		applied = true
	})
	return applied
}

// Done returns a channel closed when the cell is settled. Useful for select
// loops that multiplex several pending results.
func (c *Cell) Done() <-chan struct{} {
	return c.done
}

// Await blocks the calling goroutine until the cell is settled or ctx
// expires. Expiry yields ErrAwaitTimeout attributed to this caller; the
// underlying operation is not cancelled and may settle the cell later,
// which is benign (settled but unread).
func (c *Cell) Await(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAwaitTimeout, ctx.Err())
	}
}
