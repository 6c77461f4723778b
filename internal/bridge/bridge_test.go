package bridge_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tomoyukiirino/spy-credit-spread/internal/bridge"
	"github.com/tomoyukiirino/spy-credit-spread/internal/venue"
)

// The worker goroutine must never outlive Stop.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBridge(t *testing.T, sim *venue.Sim, opts bridge.Options) *bridge.Bridge {
	t.Helper()
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:7497"
	}
	if opts.ClientID == 0 {
		opts.ClientID = 1
	}
	if opts.PopTimeout == 0 {
		opts.PopTimeout = 20 * time.Millisecond
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	b := bridge.New(sim, opts, logger)
	t.Cleanup(func() { b.Stop() })
	return b
}

// waitForState polls until the bridge reaches the expected lifecycle state.
func waitForState(t *testing.T, b *bridge.Bridge, want bridge.State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if st, _ := b.State(); st == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	st, reason := b.State()
	t.Fatalf("state = %v (%s), want %v within %v", st, reason, want, timeout)
}

func TestStartAndStop(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})

	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st, _ := b.State(); st != bridge.StateConnected {
		t.Errorf("state after Start = %v, want connected", st)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st, _ := b.State(); st != bridge.StateDisconnected {
		t.Errorf("state after Stop = %v, want disconnected", st)
	}
	if sim.IsConnected() {
		t.Error("venue still connected after Stop")
	}
}

func TestStartIdempotent(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})

	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if got := sim.ConnectAttempts(); got != 1 {
		t.Errorf("connect attempts = %d, want 1 (second Start must not spawn a worker)", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})

	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestSubmitBeforeStart(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})

	_, err := b.Submit(func(venue.Conn) (any, error) { return nil, nil })
	if !errors.Is(err, bridge.ErrNotRunning) {
		t.Errorf("Submit before Start = %v, want ErrNotRunning", err)
	}
}

// Serialization is the correctness mechanism: N concurrent submissions
// incrementing an unsynchronized counter must not lose a single update, and
// the venue must never observe concurrent access.
func TestConcurrentSubmissionsSerialize(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	const n = 64
	counter := 0 // deliberately unguarded; only the worker touches it

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for j := 0; j < n; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := b.Call(ctx, func(venue.Conn) (any, error) {
				counter++
				return nil, nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
	}
	if counter != n {
		t.Errorf("counter = %d, want %d (lost updates)", counter, n)
	}
	if races := sim.Races(); races != 0 {
		t.Errorf("venue observed %d concurrent accesses, want 0", races)
	}
}

func TestFIFOOrder(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var log []string // worker-only
	ids := []string{"o1", "o2", "o3", "o4", "o5"}

	var last *bridge.Cell
	for _, id := range ids {
		id := id
		cell, err := b.Submit(func(venue.Conn) (any, error) {
			log = append(log, id)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Submit %s: %v", id, err)
		}
		last = cell
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := last.Await(ctx); err != nil {
		t.Fatalf("Await: %v", err)
	}

	if got := strings.Join(log, ","); got != "o1,o2,o3,o4,o5" {
		t.Errorf("execution order = %s, want o1,o2,o3,o4,o5", got)
	}
}

// A caller that gives up waiting must not disturb the worker or other callers.
func TestAwaitTimeoutIsolation(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	slow, err := b.Submit(func(venue.Conn) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return "slow", nil
	})
	if err != nil {
		t.Fatalf("Submit slow: %v", err)
	}

	time.Sleep(20 * time.Millisecond) // let the worker pick the slow op up
	fast, err := b.Submit(func(venue.Conn) (any, error) { return "fast", nil })
	if err != nil {
		t.Fatalf("Submit fast: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = slow.Await(ctx)
	if !errors.Is(err, bridge.ErrAwaitTimeout) {
		t.Fatalf("slow Await = %v, want ErrAwaitTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("timed-out Await took %v, want ~10ms", elapsed)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	v, err := fast.Await(ctx2)
	if err != nil {
		t.Fatalf("fast Await: %v", err)
	}
	if v != "fast" {
		t.Errorf("fast result = %v, want fast", v)
	}
}

func TestOperationErrorDoesNotKillWorker(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	boom := errors.New("order rejected")
	_, err := b.Call(ctx, func(venue.Conn) (any, error) { return nil, boom })
	var opErr *bridge.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("err = %v, want *OpError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("OpError does not wrap the cause: %v", err)
	}

	v, err := b.Call(ctx, func(venue.Conn) (any, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("healthy op after failure = (%v, %v), want (ok, nil)", v, err)
	}
}

func TestPanicIsolation(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := b.Call(ctx, func(venue.Conn) (any, error) { panic("chain parse blew up") })
	var opErr *bridge.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("err = %v, want *OpError", err)
	}
	if !strings.Contains(err.Error(), "chain parse blew up") {
		t.Errorf("panic message lost: %v", err)
	}

	v, err := b.Call(ctx, func(venue.Conn) (any, error) { return "alive", nil })
	if err != nil || v != "alive" {
		t.Errorf("op after panic = (%v, %v), want (alive, nil)", v, err)
	}
}

// With the task channel idle, the worker must keep pumping the connection so
// live data keeps flowing.
func TestIdlePumpLiveness(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{PopTimeout: 20 * time.Millisecond})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(500 * time.Millisecond)

	if got := sim.PumpCount(); got < 8 {
		t.Errorf("pump count = %d over 500ms with a 20ms pop timeout, want >= 8", got)
	}
}

func TestConnectTimeoutKeepsWorkerAlive(t *testing.T) {
	sim := venue.NewSim(1)
	sim.ConnectDelay = 300 * time.Millisecond
	b := newTestBridge(t, sim, bridge.Options{ConnectTimeout: 50 * time.Millisecond})

	start := time.Now()
	err := b.Start()
	elapsed := time.Since(start)

	if !errors.Is(err, bridge.ErrConnectTimeout) {
		t.Fatalf("Start = %v, want ErrConnectTimeout", err)
	}
	if elapsed > 250*time.Millisecond {
		t.Errorf("Start returned after %v, want ~50ms", elapsed)
	}

	// The handshake resolves in the background; the worker stays usable.
	waitForState(t, b, bridge.StateConnected, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := b.Call(ctx, func(c venue.Conn) (any, error) { return c.IsConnected(), nil })
	if err != nil {
		t.Fatalf("Call after late connect: %v", err)
	}
	if v != true {
		t.Error("venue not connected after late handshake")
	}
}

func TestConnectRetriesWithBackoff(t *testing.T) {
	sim := venue.NewSim(1)
	sim.FailFirst = 2
	b := newTestBridge(t, sim, bridge.Options{ConnectTimeout: time.Second})

	err := b.Start()
	if !errors.Is(err, bridge.ErrConnectFailed) {
		t.Fatalf("Start = %v, want ErrConnectFailed after first refused handshake", err)
	}

	waitForState(t, b, bridge.StateConnected, 10*time.Second)

	if got := sim.ConnectAttempts(); got < 3 {
		t.Errorf("connect attempts = %d, want >= 3", got)
	}
}

func TestDropFailsFastThenReconnects(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sim.Drop()

	// Work queued against the dead session is rejected promptly, not hung.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := b.Call(ctx, func(venue.Conn) (any, error) { return "never", nil })
	if !errors.Is(err, bridge.ErrDisconnected) {
		t.Fatalf("Call after drop = %v, want ErrDisconnected", err)
	}

	// The worker reconnects on its own.
	waitForState(t, b, bridge.StateConnected, 10*time.Second)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if _, err := b.Call(ctx2, func(venue.Conn) (any, error) { return nil, nil }); err != nil {
		t.Errorf("Call after reconnect: %v", err)
	}
}

func TestSubmitQueuesBeforeHandshake(t *testing.T) {
	sim := venue.NewSim(1)
	sim.ConnectDelay = 150 * time.Millisecond
	b := newTestBridge(t, sim, bridge.Options{ConnectTimeout: 20 * time.Millisecond})

	if err := b.Start(); !errors.Is(err, bridge.ErrConnectTimeout) {
		t.Fatalf("Start = %v, want ErrConnectTimeout", err)
	}

	// Submission succeeds while the handshake is still in flight.
	cell, err := b.Submit(func(venue.Conn) (any, error) { return "queued", nil })
	if err != nil {
		t.Fatalf("Submit during handshake: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := cell.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != "queued" {
		t.Errorf("result = %v, want queued", v)
	}
}

func TestQueueFullSurfacesToProducer(t *testing.T) {
	sim := venue.NewSim(1)
	sim.ConnectDelay = time.Second // keep the worker busy in the handshake
	b := newTestBridge(t, sim, bridge.Options{
		ConnectTimeout: 10 * time.Millisecond,
		QueueSize:      2,
	})
	if err := b.Start(); !errors.Is(err, bridge.ErrConnectTimeout) {
		t.Fatalf("Start = %v, want ErrConnectTimeout", err)
	}

	noop := func(venue.Conn) (any, error) { return nil, nil }
	if _, err := b.Submit(noop); err != nil {
		t.Fatalf("Submit 1: %v", err)
	}
	if _, err := b.Submit(noop); err != nil {
		t.Fatalf("Submit 2: %v", err)
	}
	if _, err := b.Submit(noop); !errors.Is(err, bridge.ErrQueueFull) {
		t.Errorf("Submit over capacity = %v, want ErrQueueFull", err)
	}
}

// Items still queued when the worker exits must be rejected, not abandoned:
// a caller awaiting with a background context would otherwise hang forever.
func TestStopRejectsQueuedItems(t *testing.T) {
	sim := venue.NewSim(1)
	sim.ConnectDelay = 200 * time.Millisecond // wedge the worker in the handshake
	b := newTestBridge(t, sim, bridge.Options{ConnectTimeout: 10 * time.Millisecond})

	if err := b.Start(); !errors.Is(err, bridge.ErrConnectTimeout) {
		t.Fatalf("Start = %v, want ErrConnectTimeout", err)
	}

	noop := func(venue.Conn) (any, error) { return nil, nil }
	var cells []*bridge.Cell
	for i := 0; i < 3; i++ {
		cell, err := b.Submit(noop)
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		cells = append(cells, cell)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for i, cell := range cells {
		select {
		case <-cell.Done():
		case <-time.After(time.Second):
			t.Fatalf("cell %d never settled after Stop", i)
		}
		_, err := cell.Await(context.Background())
		if err != nil && !errors.Is(err, bridge.ErrNotRunning) {
			t.Errorf("cell %d Await = %v, want nil or ErrNotRunning", i, err)
		}
	}
}

func TestStartAfterStop(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := b.Start(); !errors.Is(err, bridge.ErrNotRunning) {
		t.Errorf("Start after Stop = %v, want ErrNotRunning (bridge is single-use)", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	sim := venue.NewSim(1)
	b := newTestBridge(t, sim, bridge.Options{})
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	_, err := b.Submit(func(venue.Conn) (any, error) { return nil, nil })
	if !errors.Is(err, bridge.ErrNotRunning) {
		t.Errorf("Submit after Stop = %v, want ErrNotRunning", err)
	}
}
