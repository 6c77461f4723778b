package venue

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrNotConnected is returned by data calls made before a successful handshake
// or after the session dropped.
var ErrNotConnected = errors.New("venue: not connected")

// Sim is a deterministic in-process venue for development without a live
// gateway. Prices random-walk only while Pump runs, mirroring how a real
// venue client only applies data during its event processing.
//
// Like the real client, Sim is not safe for concurrent use. Every data call
// checks single-caller ownership and records a violation instead of
// corrupting state, so tests can assert the bridge never lets two
// goroutines in at once.
type Sim struct {
	// Handshake behavior knobs, set before the first Connect.
	ConnectDelay time.Duration // how long Connect blocks
	FailFirst    int           // number of leading Connect attempts to fail

	rng      *rand.Rand
	spy      decimal.Decimal
	vix      decimal.Decimal
	usdjpy   decimal.Decimal
	now      func() time.Time
	attempts atomic.Int64
	pumps    atomic.Int64
	conn     atomic.Bool
	busy     atomic.Bool
	races    atomic.Int64
}

var _ Conn = (*Sim)(nil)

// NewSim creates a simulated venue seeded for reproducible price walks.
func NewSim(seed int64) *Sim {
	return &Sim{
		rng:    rand.New(rand.NewSource(seed)),
		spy:    decimal.NewFromFloat(583.50),
		vix:    decimal.NewFromFloat(16.40),
		usdjpy: decimal.NewFromFloat(150.25),
		now:    time.Now,
	}
}

// enter flags the connection as in use by the calling goroutine. A second
// caller arriving while the flag is held is exactly the concurrent access
// the bridge exists to prevent.
func (s *Sim) enter() {
	if !s.busy.CompareAndSwap(false, true) {
		s.races.Add(1)
	}
}

func (s *Sim) leave() { s.busy.Store(false) }

// Races reports how many concurrent-access violations were observed.
func (s *Sim) Races() int64 { return s.races.Load() }

// ConnectAttempts reports how many times Connect has been called.
func (s *Sim) ConnectAttempts() int64 { return s.attempts.Load() }

// PumpCount reports how many times Pump has been called.
func (s *Sim) PumpCount() int64 { return s.pumps.Load() }

// Drop simulates the venue closing the session out from under the client.
func (s *Sim) Drop() { s.conn.Store(false) }

func (s *Sim) Connect(addr string, clientID int) error {
	s.enter()
	defer s.leave()

	n := s.attempts.Add(1)
	if s.ConnectDelay > 0 {
		time.Sleep(s.ConnectDelay)
	}
	if int(n) <= s.FailFirst {
		return fmt.Errorf("venue: handshake refused at %s (client %d)", addr, clientID)
	}
	s.conn.Store(true)
	return nil
}

func (s *Sim) Disconnect() {
	s.enter()
	defer s.leave()
	s.conn.Store(false)
}

func (s *Sim) IsConnected() bool { return s.conn.Load() }

// Pump advances the simulated market. Each call applies one random-walk step
// per instrument; quotes read between pumps are unchanged.
func (s *Sim) Pump(d time.Duration) error {
	s.enter()
	defer s.leave()

	s.pumps.Add(1)
	if !s.conn.Load() {
		return ErrNotConnected
	}

	s.spy = s.spy.Add(decimal.NewFromFloat((s.rng.Float64() - 0.5) * 0.30)).Round(2)
	s.vix = s.vix.Add(decimal.NewFromFloat((s.rng.Float64() - 0.5) * 0.10)).Round(2)
	s.usdjpy = s.usdjpy.Add(decimal.NewFromFloat((s.rng.Float64() - 0.5) * 0.08)).Round(2)
	return nil
}

func (s *Sim) Quote(symbol string) (Quote, error) {
	s.enter()
	defer s.leave()

	if !s.conn.Load() {
		return Quote{}, ErrNotConnected
	}

	var last decimal.Decimal
	switch symbol {
	case "SPY":
		last = s.spy
	case "VIX":
		last = s.vix
	default:
		return Quote{}, fmt.Errorf("venue: no market data subscription for %q", symbol)
	}

	half := decimal.NewFromFloat(0.025)
	return Quote{
		Symbol: symbol,
		Last:   last,
		Bid:    last.Sub(half).Round(2),
		Ask:    last.Add(half).Round(2),
		Mid:    last,
		Time:   s.now(),
	}, nil
}

func (s *Sim) FxRate(pair string) (FxRate, error) {
	s.enter()
	defer s.leave()

	if !s.conn.Load() {
		return FxRate{}, ErrNotConnected
	}
	if pair != "USDJPY" {
		return FxRate{}, fmt.Errorf("venue: unsupported pair %q", pair)
	}
	return FxRate{
		Pair:   pair,
		Rate:   s.usdjpy,
		Source: "sim",
		Time:   s.now(),
	}, nil
}

func (s *Sim) AccountSummary() (AccountSummary, error) {
	s.enter()
	defer s.leave()

	if !s.conn.Load() {
		return AccountSummary{}, ErrNotConnected
	}
	return AccountSummary{
		NetLiquidation: money.New(2_500_000, money.USD), // $25,000.00
		TotalCash:      money.New(1_800_000, money.USD),
		BuyingPower:    money.New(5_000_000, money.USD),
	}, nil
}

// PutChain generates puts for the weekly Monday/Wednesday/Friday expirations
// within the DTE window, struck at whole dollars below spot.
func (s *Sim) PutChain(symbol string, minDTE, maxDTE int) ([]PutOption, error) {
	s.enter()
	defer s.leave()

	if !s.conn.Load() {
		return nil, ErrNotConnected
	}
	if symbol != "SPY" {
		return nil, fmt.Errorf("venue: no option chain for %q", symbol)
	}

	spot := s.spy
	today := s.now()
	var chain []PutOption
	for dte := minDTE; dte <= maxDTE; dte++ {
		day := today.AddDate(0, 0, dte)
		switch day.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
		default:
			continue
		}
		exp := day.Format("20060102")
		atm := spot.RoundDown(0)
		for i := 0; i < 15; i++ {
			strike := atm.Sub(decimal.NewFromInt(int64(i)))
			dist := spot.Sub(strike).InexactFloat64()
			// Rough delta proxy: deeper OTM puts carry smaller deltas.
			delta := 0.50 / (1.0 + dist*0.45)
			mid := decimal.NewFromFloat(delta * 4.2).Round(2)
			chain = append(chain, PutOption{
				Symbol:     symbol,
				Expiration: exp,
				DTE:        dte,
				Strike:     strike,
				Delta:      delta,
				Bid:        mid.Sub(decimal.NewFromFloat(0.02)).Round(2),
				Ask:        mid.Add(decimal.NewFromFloat(0.02)).Round(2),
			})
		}
	}
	return chain, nil
}
