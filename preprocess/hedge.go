package preprocess

import (
	"math"
	"sort"

	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

type optFloat struct {
	v  float64
	ok bool
}

type optInt struct {
	v  int32
	ok bool
}

func off(p *float64) optFloat {
	if p == nil {
		return optFloat{}
	}
	return optFloat{v: *p, ok: true}
}

func ofi(p *int32) optInt {
	if p == nil {
		return optInt{}
	}
	return optInt{v: *p, ok: true}
}

// fillKey covers every column except the event time; two rows agreeing on all
// of these are duplicate reports of the same transition.
type fillKey struct {
	clOrdID     string
	ric         string
	currency    string
	timeInForce string
	side        models.Side
	status      optInt
	execType    optInt
	orderQty    optFloat
	price       optFloat
	mktPrice    optFloat
	bid         optFloat
	offer       optFloat
	vwap        optFloat
	cumQty      optFloat
	leavesQty   optFloat
	execPrice   optFloat
}

func keyOf(ev *models.HedgeFillEvent) fillKey {
	k := fillKey{
		clOrdID:     ev.ClOrdID,
		ric:         ev.RIC,
		currency:    ev.Currency,
		timeInForce: ev.TimeInForce,
		side:        ev.Side,
		status:      ofi(ev.Status),
		orderQty:    off(ev.OrderQty),
		price:       off(ev.Price),
		mktPrice:    off(ev.MktPrice),
		bid:         off(ev.Bid),
		offer:       off(ev.Offer),
		vwap:        off(ev.VWAP),
		cumQty:      off(ev.CumQty),
		leavesQty:   off(ev.LeavesQty),
		execPrice:   off(ev.ExecPrice),
	}
	if ev.ExecType != nil {
		k.execType = optInt{v: int32(*ev.ExecType), ok: true}
	}
	return k
}

// PrepareFills returns a new fill-event sequence restricted to ric (all
// instruments when ric is empty), with cancel noise and zero-impact rows
// removed, duplicates dropped keeping the first occurrence, and the result
// stably sorted by event time with ties broken by cumulative quantity so
// partial fills of one order stay in execution order. The input is not
// modified.
func PrepareFills(events []models.HedgeFillEvent, ric string) []models.HedgeFillEvent {
	out := make([]models.HedgeFillEvent, 0, len(events))
	seen := make(map[fillKey]struct{}, len(events))

	for i := range events {
		ev := events[i]
		if ric != "" && ev.RIC != ric {
			continue
		}
		if isCancelNoise(&ev) {
			continue
		}
		if hasNoVolumeImpact(&ev) {
			continue
		}
		k := keyOf(&ev)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return cumQtyOrdering(&out[i]) < cumQtyOrdering(&out[j])
	})
	return out
}

// Single-lot cancel acknowledgements carry no execution information.
func isCancelNoise(ev *models.HedgeFillEvent) bool {
	return ev.OrderQty != nil && *ev.OrderQty == 1 &&
		ev.ExecType != nil && *ev.ExecType == models.ExecTypeCanceled
}

func hasNoVolumeImpact(ev *models.HedgeFillEvent) bool {
	return ev.CumQty != nil && *ev.CumQty == 0 &&
		ev.LeavesQty != nil && *ev.LeavesQty == 0
}

// Events without a cumulative quantity sort ahead of any that carry one.
func cumQtyOrdering(ev *models.HedgeFillEvent) float64 {
	if ev.CumQty == nil {
		return math.Inf(-1)
	}
	return *ev.CumQty
}
