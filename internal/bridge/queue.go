package bridge

import "time"

// defaultQueueCap bounds the task channel. Producers are short-lived request
// handlers that must never stall, so push is non-blocking and the bound is
// generous; hitting it means the worker is wedged and callers should see an
// immediate error rather than queue behind it.
const defaultQueueCap = 1024

// queue is the FIFO task channel between any number of producers and the
// single worker. The channel is the only synchronization between the two
// execution domains.
type queue struct {
	ch chan *item
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = defaultQueueCap
	}
	return &queue{ch: make(chan *item, capacity)}
}

// push enqueues without blocking. Returns ErrQueueFull at capacity.
func (q *queue) push(it *item) error {
	select {
	case q.ch <- it:
		return nil
	default:
		return ErrQueueFull
	}
}

// pop waits up to timeout for an item. The false return is the empty signal
// the worker uses as its housekeeping point. Only the worker may call pop.
func (q *queue) pop(timeout time.Duration) (*item, bool) {
	select {
	case it := <-q.ch:
		return it, true
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case it := <-q.ch:
		return it, true
	case <-t.C:
		return nil, false
	}
}

// tryPop removes an item without waiting. Used on the shutdown path, where
// the single-consumer rule no longer applies and leftovers must be rejected.
func (q *queue) tryPop() (*item, bool) {
	select {
	case it := <-q.ch:
		return it, true
	default:
		return nil, false
	}
}

func (q *queue) depth() int {
	return len(q.ch)
}
