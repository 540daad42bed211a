package models

import "time"

// Side is the FIX-style side code carried by the hedge order feed.
type Side int32

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// ExecType is the FIX-style execution type code.
type ExecType int32

const (
	ExecTypePartialFill ExecType = 1
	ExecTypeFill        ExecType = 2
	ExecTypeCanceled    ExecType = 4
)

// HedgeFillEvent is one order-state transition from the hedge execution log.
// Numeric columns that may be absent in the source files are pointers; a nil
// value means the field was missing, not zero.
type HedgeFillEvent struct {
	ClOrdID     string
	RIC         string
	Currency    string
	TimeInForce string
	Side        Side
	Status      *int32
	ExecType    *ExecType
	Time        time.Time

	OrderQty  *float64
	Price     *float64
	MktPrice  *float64
	Bid       *float64
	Offer     *float64
	VWAP      *float64
	CumQty    *float64
	LeavesQty *float64
	ExecPrice *float64
}

// IsFill reports whether the event records a partial or final fill. Events
// without an exec type are not matching candidates.
func (e *HedgeFillEvent) IsFill() bool {
	if e.ExecType == nil {
		return false
	}
	return *e.ExecType == ExecTypePartialFill || *e.ExecType == ExecTypeFill
}
