package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomoyukiirino/spy-credit-spread/internal/market"
	"github.com/tomoyukiirino/spy-credit-spread/internal/store"
)

// Monitor periodically submits quote and fx operations through the bridge
// and publishes the settled results. One failed cycle is logged and skipped;
// the loop never stops on its own.
type Monitor struct {
	svc      *market.Service
	broker   *Broker
	store    store.Store // optional; nil disables history
	logger   *slog.Logger
	interval time.Duration
	symbol   string
	pair     string

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// NewMonitor creates a monitor polling SPY and USDJPY every interval.
// st may be nil to skip tick persistence.
func NewMonitor(svc *market.Service, broker *Broker, st store.Store, logger *slog.Logger, interval time.Duration) *Monitor {
	return &Monitor{
		svc:      svc,
		broker:   broker,
		store:    st,
		logger:   logger,
		interval: interval,
		symbol:   "SPY",
		pair:     "USDJPY",
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. Idempotent.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go m.run()
	})
}

// Stop ends the polling loop and waits for it to exit. Idempotent and safe
// to call on a monitor that never started.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	if m.started.Load() {
		<-m.done
	}
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll runs one cycle: fetch, publish, persist. Each fetch gets its own
// deadline so a wedged bridge cannot stall the loop across cycles.
func (m *Monitor) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	if q, err := m.svc.Quote(ctx, m.symbol); err != nil {
		m.logger.Warn("quote poll failed", "symbol", m.symbol, "error", err)
	} else {
		m.publish(ctx, market.TopicPrice, q)
	}

	if fx, err := m.svc.FxRate(ctx, m.pair); err != nil {
		m.logger.Warn("fx poll failed", "pair", m.pair, "error", err)
	} else {
		m.publish(ctx, market.TopicFX, fx)
	}
}

func (m *Monitor) publish(ctx context.Context, topicName string, v any) {
	tk, err := market.NewTick(topicName, v)
	if err != nil {
		m.logger.Error("encode tick", "topic", topicName, "error", err)
		return
	}
	m.broker.Publish(tk)
	if m.store != nil {
		if err := m.store.SaveTick(ctx, tk); err != nil {
			m.logger.Error("persist tick", "topic", topicName, "error", err)
		}
	}
}
