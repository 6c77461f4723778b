package market

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tomoyukiirino/spy-credit-spread/internal/venue"
)

func put(exp string, strike float64, delta, bid, ask float64) venue.PutOption {
	return venue.PutOption{
		Symbol:     "SPY",
		Expiration: exp,
		DTE:        3,
		Strike:     decimal.NewFromFloat(strike),
		Delta:      delta,
		Bid:        decimal.NewFromFloat(bid),
		Ask:        decimal.NewFromFloat(ask),
	}
}

func TestPairSpreads(t *testing.T) {
	p := DefaultScanParams()
	chain := []venue.PutOption{
		put("20260828", 578, 0.20, 0.85, 0.89),
		put("20260828", 573, 0.08, 0.31, 0.35),
		put("20260828", 570, 0.05, 0.20, 0.24),
	}

	got := pairSpreads(chain, p)
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}

	c := got[0]
	if !c.ShortStrike.Equal(decimal.NewFromInt(578)) || !c.LongStrike.Equal(decimal.NewFromInt(573)) {
		t.Errorf("strikes = %s/%s, want 578/573", c.ShortStrike, c.LongStrike)
	}
	if want := decimal.NewFromFloat(0.50); !c.Credit.Equal(want) {
		t.Errorf("credit = %s, want %s", c.Credit, want)
	}
	// (5 - 0.50) * 100 shares = $450.00 max loss.
	if c.MaxLoss.Amount() != 45000 {
		t.Errorf("max loss = %d cents, want 45000", c.MaxLoss.Amount())
	}
}

func TestPairSpreadsFiltersDeltaWindow(t *testing.T) {
	p := DefaultScanParams()
	chain := []venue.PutOption{
		put("20260828", 582, 0.40, 1.80, 1.84), // delta too high
		put("20260828", 577, 0.12, 0.55, 0.59), // delta too low
		put("20260828", 572, 0.06, 0.25, 0.29),
	}

	if got := pairSpreads(chain, p); len(got) != 0 {
		t.Errorf("candidates = %d, want 0 (all deltas outside window)", len(got))
	}
}

func TestPairSpreadsRequiresSameExpiration(t *testing.T) {
	p := DefaultScanParams()
	chain := []venue.PutOption{
		put("20260828", 578, 0.20, 0.85, 0.89),
		put("20260831", 573, 0.08, 0.31, 0.35), // wing in a different expiry
	}

	if got := pairSpreads(chain, p); len(got) != 0 {
		t.Errorf("candidates = %d, want 0 (no same-expiry wing)", len(got))
	}
}

func TestPairSpreadsSkipsDebitPairs(t *testing.T) {
	p := DefaultScanParams()
	chain := []venue.PutOption{
		put("20260828", 578, 0.20, 0.30, 0.34),
		put("20260828", 573, 0.08, 0.40, 0.44), // long costs more than short collects
	}

	if got := pairSpreads(chain, p); len(got) != 0 {
		t.Errorf("candidates = %d, want 0 (negative credit)", len(got))
	}
}

func TestNewTick(t *testing.T) {
	tick, err := NewTick(TopicPrice, map[string]string{"symbol": "SPY"})
	if err != nil {
		t.Fatalf("NewTick: %v", err)
	}
	if tick.ID == "" {
		t.Error("tick ID empty")
	}
	if tick.Topic != TopicPrice {
		t.Errorf("topic = %q, want %q", tick.Topic, TopicPrice)
	}
	if string(tick.Data) != `{"symbol":"SPY"}` {
		t.Errorf("data = %s", tick.Data)
	}
	if tick.Time.IsZero() {
		t.Error("tick time not set")
	}
}
