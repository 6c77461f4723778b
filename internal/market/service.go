// Package market exposes the venue's data operations as typed calls routed
// through the bridge. Nothing here touches the connection directly; every
// call is a unit of work submitted to the worker.
package market

import (
	"context"
	"fmt"

	"github.com/tomoyukiirino/spy-credit-spread/internal/bridge"
	"github.com/tomoyukiirino/spy-credit-spread/internal/venue"
)

// Service wraps the bridge façade with the dashboard's data calls.
type Service struct {
	bridge *bridge.Bridge
}

func NewService(b *bridge.Bridge) *Service {
	return &Service{bridge: b}
}

// call submits a typed operation and awaits its result under ctx.
func call[T any](ctx context.Context, b *bridge.Bridge, op func(c venue.Conn) (T, error)) (T, error) {
	var zero T
	v, err := b.Call(ctx, func(c venue.Conn) (any, error) {
		return op(c)
	})
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("market: unexpected result type %T", v)
	}
	return out, nil
}

// Quote fetches the latest pumped quote for symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (venue.Quote, error) {
	return call(ctx, s.bridge, func(c venue.Conn) (venue.Quote, error) {
		return c.Quote(symbol)
	})
}

// FxRate fetches the latest rate for a pair such as "USDJPY".
func (s *Service) FxRate(ctx context.Context, pair string) (venue.FxRate, error) {
	return call(ctx, s.bridge, func(c venue.Conn) (venue.FxRate, error) {
		return c.FxRate(pair)
	})
}

// AccountSummary fetches the account's headline values.
func (s *Service) AccountSummary(ctx context.Context) (venue.AccountSummary, error) {
	return call(ctx, s.bridge, func(c venue.Conn) (venue.AccountSummary, error) {
		return c.AccountSummary()
	})
}
