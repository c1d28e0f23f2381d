package schema

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Sequence allocates process-wide monotonically increasing instruction uids.
// Owned by the composition root and injected; uids correlate log lines and
// reconcile results, never business equality.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence creates a uid allocator starting at 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next uid.
func (s *Sequence) Next() uint64 {
	return s.next.Add(1)
}

// Instruction is a planned order action not yet confirmed by the venue.
// It is a closed sum over CreateInstruction and CancelInstruction; the two
// consumption sites (submission, netting) switch exhaustively on the
// concrete type.
type Instruction interface {
	UID() uint64
	instruction()
}

// CreateInstruction plans a new limit order. The sign of Size encodes the
// side: positive buys, negative sells.
type CreateInstruction struct {
	Uid   uint64
	Price decimal.Decimal
	Size  decimal.Decimal
}

// CancelInstruction plans the cancellation of a resting order by venue id.
type CancelInstruction struct {
	Uid     uint64
	OrderID string
}

func (i CreateInstruction) UID() uint64 { return i.Uid }
func (i CancelInstruction) UID() uint64 { return i.Uid }

func (CreateInstruction) instruction() {}
func (CancelInstruction) instruction() {}
