package engine

import (
	"math"

	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

// PriceEpsilon bounds floating-point price comparison. Two prices closer
// than this are considered equal.
const PriceEpsilon = 1e-9

// SkipReason explains why a fill event never attempted a price search.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipNotAFillType
	SkipNonPositiveFillSize
	SkipMissingExecutionPrice
	SkipInvalidSide
)

func (r SkipReason) String() string {
	switch r {
	case SkipNotAFillType:
		return "not_a_fill_type"
	case SkipNonPositiveFillSize:
		return "non_positive_fill_size"
	case SkipMissingExecutionPrice:
		return "missing_execution_price"
	case SkipInvalidSide:
		return "invalid_side"
	default:
		return "none"
	}
}

// UnmatchedReason explains why a price search found nothing.
type UnmatchedReason int

const (
	UnmatchedNone UnmatchedReason = iota
	UnmatchedEmptyWindow
	UnmatchedNoQualifyingLevel
)

func (r UnmatchedReason) String() string {
	switch r {
	case UnmatchedEmptyWindow:
		return "empty_window"
	case UnmatchedNoQualifyingLevel:
		return "no_qualifying_level"
	default:
		return "none"
	}
}

// Outcome is the terminal result for a single fill event. Exactly one of
// Record, Skip, Unmatched or LocatorErr is set.
type Outcome struct {
	Record     *models.MatchRecord
	Skip       SkipReason
	Unmatched  UnmatchedReason
	LocatorErr error
}

// Matched reports whether the event produced a match record.
func (o Outcome) Matched() bool { return o.Record != nil }

// prefilter applies the checks that must pass before any price search.
// It returns the level sign (+1 ask side for buys, -1 bid side for sells)
// and SkipNone when the event is a matching candidate.
func prefilter(ev *models.HedgeFillEvent, fillSize float64) (int, SkipReason) {
	if !ev.IsFill() {
		return 0, SkipNotAFillType
	}
	if math.IsNaN(fillSize) || fillSize <= 0 {
		return 0, SkipNonPositiveFillSize
	}
	if ev.ExecPrice == nil {
		return 0, SkipMissingExecutionPrice
	}
	switch ev.Side {
	case models.SideBuy:
		return 1, SkipNone
	case models.SideSell:
		return -1, SkipNone
	default:
		return 0, SkipInvalidSide
	}
}

// MatchFill searches the candidate window for the level and snapshot row the
// fill most plausibly consumed. The exact pass runs first; the fuzzy pass
// restarts from level 1 and shares no scan state with it. Traversal is
// level-major then time-major, so the level closest to mid and the earliest
// qualifying row always win.
func MatchFill(window []models.LobSnapshot, ev *models.HedgeFillEvent, fillSize float64, tick float64) Outcome {
	levelSign, skip := prefilter(ev, fillSize)
	if skip != SkipNone {
		return Outcome{Skip: skip}
	}
	if len(window) == 0 {
		return Outcome{Unmatched: UnmatchedEmptyWindow}
	}

	exec := *ev.ExecPrice

	exactTol := func(p float64) bool { return math.Abs(p-exec) < PriceEpsilon }
	if rec := scan(window, ev, fillSize, levelSign, exactTol, models.MatchExact); rec != nil {
		return Outcome{Record: rec}
	}

	fuzzyTol := func(p float64) bool { return math.Abs(p-exec) <= tick+PriceEpsilon }
	if rec := scan(window, ev, fillSize, levelSign, fuzzyTol, models.MatchFuzzy); rec != nil {
		return Outcome{Record: rec}
	}

	return Outcome{Unmatched: UnmatchedNoQualifyingLevel}
}

// scan walks levels 1..Depth and, within each level, the window rows in
// chronological order. It accepts the first row whose level price passes
// withinTol and whose resting size covers the whole fill. A row with a
// missing price or size is excluded, never treated as zero.
func scan(window []models.LobSnapshot, ev *models.HedgeFillEvent, fillSize float64, levelSign int, withinTol func(float64) bool, kind models.MatchKind) *models.MatchRecord {
	for lvl := 0; lvl < models.Depth; lvl++ {
		for i := range window {
			snap := &window[i]
			var level models.Level
			if levelSign > 0 {
				level = snap.Asks[lvl]
			} else {
				level = snap.Bids[lvl]
			}
			if level.Price == nil || !withinTol(*level.Price) {
				continue
			}
			if level.Size == nil || *level.Size < fillSize {
				continue
			}
			return &models.MatchRecord{
				Snapshot:     snap,
				Kind:         kind,
				Level:        levelSign * (lvl + 1),
				ClOrdID:      ev.ClOrdID,
				Side:         ev.Side,
				ExecType:     ev.ExecType,
				EventTime:    ev.Time,
				SnapshotTime: snap.Time,
				ExecPrice:    *ev.ExecPrice,
				LevelPrice:   *level.Price,
				FillSize:     fillSize,
			}
		}
	}
	return nil
}
