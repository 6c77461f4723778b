package market

import (
	"context"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/tomoyukiirino/spy-credit-spread/internal/venue"
)

// ScanParams selects put credit spreads from the option chain.
type ScanParams struct {
	Symbol      string  `json:"symbol"`
	MinDTE      int     `json:"min_dte"`
	MaxDTE      int     `json:"max_dte"`
	SpreadWidth int     `json:"spread_width"` // dollars between short and long strike
	MinDelta    float64 `json:"min_delta"`    // short-put delta window
	MaxDelta    float64 `json:"max_delta"`
}

// DefaultScanParams matches the strategy's weekly SPY setup.
func DefaultScanParams() ScanParams {
	return ScanParams{
		Symbol:      "SPY",
		MinDTE:      1,
		MaxDTE:      7,
		SpreadWidth: 5,
		MinDelta:    0.15,
		MaxDelta:    0.25,
	}
}

// SpreadCandidate is one put credit spread assembled from the chain.
// Scoring/ranking of candidates is left to the consumer.
type SpreadCandidate struct {
	Symbol      string          `json:"symbol"`
	Expiration  string          `json:"expiration"`
	DTE         int             `json:"dte"`
	ShortStrike decimal.Decimal `json:"short_strike"`
	LongStrike  decimal.Decimal `json:"long_strike"`
	ShortDelta  float64         `json:"short_delta"`
	Credit      decimal.Decimal `json:"credit"`
	MaxLoss     *money.Money    `json:"max_loss"`
}

// ScanSpreads runs a chain fetch and pairing pass on the worker as one opaque
// unit of work, so the chain snapshot is internally consistent.
func (s *Service) ScanSpreads(ctx context.Context, p ScanParams) ([]SpreadCandidate, error) {
	return call(ctx, s.bridge, func(c venue.Conn) ([]SpreadCandidate, error) {
		chain, err := c.PutChain(p.Symbol, p.MinDTE, p.MaxDTE)
		if err != nil {
			return nil, err
		}
		return pairSpreads(chain, p), nil
	})
}

// pairSpreads matches each in-window short put with the long put one spread
// width below it in the same expiration.
func pairSpreads(chain []venue.PutOption, p ScanParams) []SpreadCandidate {
	byExpStrike := make(map[string]map[string]venue.PutOption, len(chain))
	for _, opt := range chain {
		m, ok := byExpStrike[opt.Expiration]
		if !ok {
			m = make(map[string]venue.PutOption)
			byExpStrike[opt.Expiration] = m
		}
		m[opt.Strike.String()] = opt
	}

	width := decimal.NewFromInt(int64(p.SpreadWidth))
	var out []SpreadCandidate
	for _, short := range chain {
		if short.Delta < p.MinDelta || short.Delta > p.MaxDelta {
			continue
		}
		long, ok := byExpStrike[short.Expiration][short.Strike.Sub(width).String()]
		if !ok {
			continue
		}
		credit := short.Bid.Sub(long.Ask)
		if !credit.IsPositive() {
			continue
		}
		// Max loss per contract: (width - credit) x 100 shares.
		lossCents := width.Sub(credit).Mul(decimal.NewFromInt(100 * 100)).IntPart()
		out = append(out, SpreadCandidate{
			Symbol:      short.Symbol,
			Expiration:  short.Expiration,
			DTE:         short.DTE,
			ShortStrike: short.Strike,
			LongStrike:  long.Strike,
			ShortDelta:  short.Delta,
			Credit:      credit,
			MaxLoss:     money.New(lossCents, money.USD),
		})
	}
	return out
}
