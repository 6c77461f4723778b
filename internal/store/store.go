// Package store persists broadcast ticks so the dashboard can show recent
// history without replaying the live stream.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tomoyukiirino/spy-credit-spread/internal/market"
)

// ErrNotFound is returned when no ticks exist for a topic.
var ErrNotFound = errors.New("store: no ticks found")

// TickStats holds aggregate counts over the persisted tick history.
type TickStats struct {
	Total        int            `json:"total"`
	CountByTopic map[string]int `json:"count_by_topic"`
	FirstAt      *time.Time     `json:"first_at,omitempty"`
	LastAt       *time.Time     `json:"last_at,omitempty"`
}

// Store defines the persistence operations for ticks.
type Store interface {
	SaveTick(ctx context.Context, t market.Tick) error
	RecentTicks(ctx context.Context, topic string, limit int) ([]market.Tick, error)
	TickStats(ctx context.Context) (*TickStats, error)
	Close() error
}
