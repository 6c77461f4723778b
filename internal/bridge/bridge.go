package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"github.com/tomoyukiirino/spy-credit-spread/internal/venue"
)

// Defaults for Options fields left zero.
const (
	DefaultConnectTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultPopTimeout      = 50 * time.Millisecond
	DefaultPumpSlice       = 10 * time.Millisecond
)

// maxPumpFailures is the number of consecutive pump errors after which the
// lifecycle degrades to failed. A later successful pump restores connected.
const maxPumpFailures = 5

// Options configures a Bridge.
type Options struct {
	Addr            string        // venue address, host:port
	ClientID        int           // venue client id
	ConnectTimeout  time.Duration // how long Start waits on readiness
	ShutdownTimeout time.Duration // how long Stop waits for the worker to exit
	PopTimeout      time.Duration // worker's wait on the task channel
	PumpSlice       time.Duration // duration of each idle pump
	QueueSize       int           // task channel capacity
}

func (o *Options) withDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = DefaultPopTimeout
	}
	if o.PumpSlice <= 0 {
		o.PumpSlice = DefaultPumpSlice
	}
}

// Bridge is the façade request handlers use to reach the venue. One Bridge
// owns one connection and one worker goroutine; construct it at the
// composition root and pass it by reference. A Bridge is single-use:
// Start once, Stop once, both idempotent.
type Bridge struct {
	conn   venue.Conn
	opts   Options
	logger *slog.Logger
	queue  *queue
	lc     *lifecycle

	mu       sync.Mutex
	started  bool
	stopping bool

	running   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// New creates a Bridge around conn. The connection must not be touched by
// anyone else once Start is called.
func New(conn venue.Conn, opts Options, logger *slog.Logger) *Bridge {
	opts.withDefaults()
	return &Bridge{
		conn:   conn,
		opts:   opts,
		logger: logger,
		queue:  newQueue(opts.QueueSize),
		lc:     &lifecycle{state: StateDisconnected},
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start spawns the worker and blocks until the first handshake attempt
// resolves or ConnectTimeout elapses. On timeout it returns
// ErrConnectTimeout without killing the worker, which keeps retrying with
// backoff; callers may poll State afterward. Calling Start again is a no-op;
// calling it after Stop returns ErrNotRunning, since a Bridge is single-use.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.stopping {
		b.mu.Unlock()
		return ErrNotRunning
	}
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.running.Store(true)
	b.lc.to(StateConnecting, "")
	b.mu.Unlock()

	go b.run()

	select {
	case <-b.ready:
		if st, reason := b.lc.current(); st != StateConnected {
			return fmt.Errorf("%w: %s", ErrConnectFailed, reason)
		}
		return nil
	case <-time.After(b.opts.ConnectTimeout):
		return ErrConnectTimeout
	}
}

// Stop clears the running flag and waits for the worker to exit, which
// disconnects from the venue on its way out. A join that outlasts
// ShutdownTimeout is reported as ErrShutdownTimeout, never escalated.
// Calling Stop again, or before Start, is a no-op.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.started || b.stopping {
		b.mu.Unlock()
		return nil
	}
	b.stopping = true
	b.mu.Unlock()

	b.running.Store(false)

	select {
	case <-b.done:
		return nil
	case <-time.After(b.opts.ShutdownTimeout):
		b.logger.Error("bridge worker did not stop in time", "timeout", b.opts.ShutdownTimeout)
		return ErrShutdownTimeout
	}
}

// Submit wraps op in a work item, enqueues it, and returns the cell the
// caller awaits. Safe from any goroutine; never touches the connection.
// Submission succeeds even before the handshake completes — callers that
// need a ready venue must check State first.
func (b *Bridge) Submit(op Op) (*Cell, error) {
	if !b.running.Load() {
		return nil, ErrNotRunning
	}
	it := newItem(op)
	if err := b.queue.push(it); err != nil {
		submissionsTotal.WithLabelValues(outcomeQueueFull).Inc()
		return nil, err
	}
	queueDepth.Set(float64(b.queue.depth()))
	if !b.running.Load() {
		// Stop raced the push and the worker may already have drained and
		// exited; drain again so this item cannot be left unsettled. The
		// cell settles at most once, so overlapping drains are harmless.
		b.drainQueue()
	}
	return it.cell, nil
}

// Call submits op and awaits its result under ctx. Convenience for callers
// that have no use for the intermediate cell.
func (b *Bridge) Call(ctx context.Context, op Op) (any, error) {
	cell, err := b.Submit(op)
	if err != nil {
		return nil, err
	}
	return cell.Await(ctx)
}

// State returns the current lifecycle state and, for failed, the reason.
func (b *Bridge) State() (State, string) {
	return b.lc.current()
}

// signalReady fires the readiness event. Exactly once, regardless of the
// handshake outcome.
func (b *Bridge) signalReady() {
	b.readyOnce.Do(func() { close(b.ready) })
}

// run is the worker loop. It is the only code path that touches the
// connection after New.
func (b *Bridge) run() {
	defer close(b.done)
	defer b.lc.to(StateDisconnected, "")
	defer b.disconnectOnExit()
	defer b.drainQueue()

	boff := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    15 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	nextConnect := time.Now()
	consecutivePumpErrs := 0

	for b.running.Load() {
		// Detect a dropped session before doing anything else so queued
		// work fails fast and the reconnect path engages.
		if st, _ := b.lc.current(); st == StateConnected && !b.conn.IsConnected() {
			b.logger.Warn("venue session dropped")
			b.lc.to(StateDisconnected, "venue session dropped")
			nextConnect = time.Now().Add(boff.Duration())
		}

		if !b.conn.IsConnected() && !time.Now().Before(nextConnect) {
			b.connect(boff)
			consecutivePumpErrs = 0
			// Reconnect cadence is owned here; items keep draining below.
			if !b.conn.IsConnected() {
				nextConnect = time.Now().Add(boff.Duration())
			}
		}

		it, ok := b.queue.pop(b.opts.PopTimeout)
		if !ok {
			// Empty channel: housekeeping. Without the pump the venue's
			// live-data stream silently stops even though the socket is open.
			if st, _ := b.lc.current(); st == StateConnected || st == StateFailed {
				if !b.conn.IsConnected() {
					continue
				}
				pumpTotal.Inc()
				if err := b.conn.Pump(b.opts.PumpSlice); err != nil {
					pumpFailures.Inc()
					consecutivePumpErrs++
					b.logger.Warn("pump failed", "error", err, "consecutive", consecutivePumpErrs)
					if consecutivePumpErrs >= maxPumpFailures {
						b.lc.to(StateFailed, fmt.Sprintf("pump failing: %v", err))
					}
				} else {
					if consecutivePumpErrs >= maxPumpFailures {
						b.lc.to(StateConnected, "")
					}
					consecutivePumpErrs = 0
				}
			}
			continue
		}
		b.execute(it)
	}
}

// connect performs one handshake attempt and signals readiness afterward.
func (b *Bridge) connect(boff *backoff.Backoff) {
	b.lc.to(StateConnecting, "")
	connectAttempts.Inc()

	if err := b.conn.Connect(b.opts.Addr, b.opts.ClientID); err != nil {
		b.logger.Warn("venue connect failed", "addr", b.opts.Addr, "error", err)
		b.lc.to(StateFailed, err.Error())
		b.signalReady()
		return
	}

	b.logger.Info("venue connected", "addr", b.opts.Addr, "client_id", b.opts.ClientID)
	b.lc.to(StateConnected, "")
	boff.Reset()
	b.signalReady()
}

// execute runs one work item with exclusive access to the connection and
// settles its cell. Operation failures and panics become rejections; they
// never terminate the loop.
func (b *Bridge) execute(it *item) {
	defer queueDepth.Set(float64(b.queue.depth()))

	if !b.conn.IsConnected() {
		b.settleErr(it, ErrDisconnected)
		return
	}

	start := time.Now()
	v, err := b.runOp(it)
	opDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		b.settleErr(it, &OpError{ItemID: it.id, Err: err})
		return
	}

	if !it.cell.settle(v, nil) {
		b.logger.Error("result cell settled twice", "item_id", it.id)
		return
	}
	submissionsTotal.WithLabelValues(outcomeFulfilled).Inc()
}

func (b *Bridge) settleErr(it *item, err error) {
	if !it.cell.settle(nil, err) {
		b.logger.Error("result cell settled twice", "item_id", it.id)
		return
	}
	submissionsTotal.WithLabelValues(outcomeRejected).Inc()
}

// runOp invokes the operation, converting a panic into an error so the
// catch-everything contract is structural rather than conventional.
func (b *Bridge) runOp(it *item) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return it.op(b.conn)
}

// drainQueue rejects every item still queued at shutdown so no caller is
// left awaiting a cell nobody will settle.
func (b *Bridge) drainQueue() {
	for {
		it, ok := b.queue.tryPop()
		if !ok {
			return
		}
		b.settleErr(it, ErrNotRunning)
	}
}

// disconnectOnExit is the worker's best-effort teardown. Runs on the worker
// goroutine, so the single-owner rule holds to the very end.
func (b *Bridge) disconnectOnExit() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("disconnect panicked", "panic", r)
		}
	}()
	if b.conn.IsConnected() {
		b.conn.Disconnect()
		b.logger.Info("venue disconnected")
	}
}
