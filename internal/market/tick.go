package market

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Broadcast topic names the monitor publishes on.
const (
	TopicPrice = "price"
	TopicFX    = "fx"
)

// Tick is one published data point on a broadcast topic. Data is the
// JSON-encoded payload so subscribers and the history store handle every
// topic uniformly.
type Tick struct {
	ID    string          `json:"id"`
	Topic string          `json:"topic"`
	Time  time.Time       `json:"time"`
	Data  json.RawMessage `json:"data"`
}

// NewTick encodes v as a tick on topic. Returns an error only if v does not
// marshal.
func NewTick(topic string, v any) (Tick, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Tick{}, err
	}
	return Tick{
		ID:    ulid.Make().String(),
		Topic: topic,
		Time:  time.Now().UTC(),
		Data:  data,
	}, nil
}
