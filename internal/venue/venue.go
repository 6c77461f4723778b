// Package venue defines the broker-client handle the bridge serializes
// access to, plus a simulated implementation for development and tests.
// A Conn is stateful and not safe for concurrent use: after the handshake
// it must only ever be touched by the bridge worker goroutine.
package venue

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Conn is the stateful connection to the external trading venue.
//
// Implementations are not required to be goroutine-safe. Live data received
// by the venue is only delivered once Pump runs; a connection that is never
// pumped stops updating even though its socket stays open.
type Conn interface {
	// Connect performs the blocking handshake with the venue.
	Connect(addr string, clientID int) error

	// Disconnect tears the session down. Safe to call when not connected.
	Disconnect()

	// Pump runs the connection's internal event processing for roughly d,
	// applying any market data the venue has already sent.
	Pump(d time.Duration) error

	// IsConnected reports the session state as the venue library sees it.
	IsConnected() bool

	// Quote returns the latest pumped quote for symbol.
	Quote(symbol string) (Quote, error)

	// FxRate returns the latest pumped rate for a currency pair such as "USDJPY".
	FxRate(pair string) (FxRate, error)

	// AccountSummary returns the account's headline values.
	AccountSummary() (AccountSummary, error)

	// PutChain returns put options for symbol whose days-to-expiration fall
	// within [minDTE, maxDTE].
	PutChain(symbol string, minDTE, maxDTE int) ([]PutOption, error)
}

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Last   decimal.Decimal `json:"last"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	Mid    decimal.Decimal `json:"mid"`
	Time   time.Time       `json:"time"`
}

// FxRate is a currency-pair rate snapshot.
type FxRate struct {
	Pair   string          `json:"pair"`
	Rate   decimal.Decimal `json:"rate"`
	Source string          `json:"source"`
	Time   time.Time       `json:"time"`
}

// AccountSummary holds the account values the dashboard displays.
type AccountSummary struct {
	NetLiquidation *money.Money `json:"net_liquidation"`
	TotalCash      *money.Money `json:"total_cash"`
	BuyingPower    *money.Money `json:"buying_power"`
}

// PutOption is one row of a put-option chain.
type PutOption struct {
	Symbol     string          `json:"symbol"`
	Expiration string          `json:"expiration"` // YYYYMMDD
	DTE        int             `json:"dte"`
	Strike     decimal.Decimal `json:"strike"`
	Delta      float64         `json:"delta"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
}
