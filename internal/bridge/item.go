package bridge

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tomoyukiirino/spy-credit-spread/internal/venue"
)

// Op is one unit of work executed on the worker goroutine with exclusive
// access to the venue connection. An Op captures its own arguments; it must
// not retain the Conn beyond the call.
type Op func(c venue.Conn) (any, error)

// item pairs an operation with the cell that receives its outcome.
// Immutable once constructed; consumed exactly once by the worker.
type item struct {
	id       string
	op       Op
	cell     *Cell
	enqueued time.Time
}

func newItem(op Op) *item {
	return &item{
		id:       ulid.Make().String(),
		op:       op,
		cell:     newCell(),
		enqueued: time.Now(),
	}
}
