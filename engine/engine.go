package engine

import (
	"context"
	"sync"
	"time"

	"github.com/QuantResearchTeam/futures-market-analysis/logger"
	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

// Config holds the tunables of a matching run.
type Config struct {
	// Threshold is the forward margin of the snapshot window. The
	// backward margin is fixed at BackwardMargin.
	Threshold time.Duration

	// Workers bounds the number of goroutines matching fill events
	// concurrently. Fill-size derivation always runs sequentially first.
	Workers int
}

// Engine matches hedge fill events against a snapshot sequence. It is a pure
// computation over immutable inputs; neither slice is mutated during a run.
type Engine struct {
	cfg Config
	log *logger.Log
}

func New(cfg Config) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{cfg: cfg, log: logger.GetLogger()}
}

// FillSize is the derived size of a single fill event. Ok is false when the
// cumulative quantity needed to derive it was absent.
type FillSize struct {
	Value float64
	Ok    bool
}

// DeriveFillSizes computes per-event fill sizes in one ordered sweep over the
// sorted event sequence. When the immediately preceding event belongs to the
// same order, the fill is the cumulative-quantity delta; a predecessor without
// a cumulative quantity leaves the delta undefined. Otherwise the fill is the
// cumulative quantity itself when positive.
func DeriveFillSizes(events []models.HedgeFillEvent) []FillSize {
	sizes := make([]FillSize, len(events))
	for i := range events {
		ev := &events[i]
		if ev.CumQty == nil {
			continue
		}
		if i > 0 && ev.ClOrdID == events[i-1].ClOrdID {
			if prev := events[i-1].CumQty; prev != nil {
				sizes[i] = FillSize{Value: *ev.CumQty - *prev, Ok: true}
			}
		} else if *ev.CumQty > 0 {
			sizes[i] = FillSize{Value: *ev.CumQty, Ok: true}
		}
	}
	return sizes
}

// Result is the complete outcome of one matching run. Records and Outcomes
// follow the input event order, so identical inputs yield identical results
// regardless of worker scheduling. When the run was cancelled, Outcomes holds
// only the prefix of events that were dispatched before cancellation.
type Result struct {
	Records  []models.MatchRecord
	Outcomes []Outcome

	Attempted     int64
	ExactMatches  int64
	FuzzyMatches  int64
	Skipped       map[SkipReason]int64
	Unmatched     map[UnmatchedReason]int64
	LocatorErrors int64
}

// Matched returns the total number of matched fill events.
func (r *Result) Matched() int64 { return r.ExactMatches + r.FuzzyMatches }

// MatchRate is the percentage of attempted fill events that matched,
// 0 when nothing was attempted.
func (r *Result) MatchRate() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Matched()) / float64(r.Attempted) * 100
}

// Run matches every fill event against the snapshot sequence. snaps must be
// sorted ascending by time and deduplicated on timestamp; events must be
// sorted ascending by event time with ties broken by cumulative quantity.
func (e *Engine) Run(ctx context.Context, snaps []models.LobSnapshot, events []models.HedgeFillEvent, tick float64) *Result {
	log := e.log.WithComponent("matching_engine").WithFields(logger.Fields{
		"threshold": e.cfg.Threshold.String(),
		"tick_size": tick,
		"events":    len(events),
		"snapshots": len(snaps),
	})
	log.Info("starting matching run")

	start := time.Now()
	sizes := DeriveFillSizes(events)
	outcomes := make([]Outcome, len(events))

	workers := e.cfg.Workers
	if workers > len(events) && len(events) > 0 {
		workers = len(events)
	}

	idxCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				outcomes[i] = e.evaluate(snaps, &events[i], sizes[i], tick)
			}
		}()
	}

	dispatched := 0
feed:
	for i := range events {
		select {
		case <-ctx.Done():
			break feed
		case idxCh <- i:
			dispatched++
		}
	}
	close(idxCh)
	wg.Wait()

	if dispatched < len(events) {
		log.WithFields(logger.Fields{"dispatched": dispatched}).Warn("run cancelled before all events were dispatched")
	}

	// Events never dispatched have no outcome and stay out of the counters.
	res := tally(outcomes[:dispatched])

	log.WithFields(logger.Fields{
		"attempted":      res.Attempted,
		"matched":        res.Matched(),
		"exact":          res.ExactMatches,
		"fuzzy":          res.FuzzyMatches,
		"match_rate":     res.MatchRate(),
		"locator_errors": res.LocatorErrors,
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Info("matching run complete")

	return res
}

// evaluate computes the terminal outcome for one fill event. Pre-filters run
// before the window is located so that a malformed event is reported as
// skipped rather than as a locator failure.
func (e *Engine) evaluate(snaps []models.LobSnapshot, ev *models.HedgeFillEvent, size FillSize, tick float64) Outcome {
	fill := 0.0
	if size.Ok {
		fill = size.Value
	}
	if _, skip := prefilter(ev, fill); skip != SkipNone {
		return Outcome{Skip: skip}
	}
	start, end, err := LocateWindow(snaps, ev.Time, e.cfg.Threshold)
	if err != nil {
		return Outcome{LocatorErr: err}
	}
	return MatchFill(snaps[start:end], ev, fill, tick)
}

func tally(outcomes []Outcome) *Result {
	res := &Result{
		Outcomes:  outcomes,
		Skipped:   make(map[SkipReason]int64),
		Unmatched: make(map[UnmatchedReason]int64),
	}
	for i := range outcomes {
		o := outcomes[i]

		// Events rejected by the fill-type filter were never attempted;
		// everything past that filter counts toward the match rate.
		if o.Skip == SkipNotAFillType {
			res.Skipped[o.Skip]++
			continue
		}
		res.Attempted++

		switch {
		case o.LocatorErr != nil:
			res.LocatorErrors++
		case o.Skip != SkipNone:
			res.Skipped[o.Skip]++
		case o.Record != nil:
			if o.Record.Kind == models.MatchExact {
				res.ExactMatches++
			} else {
				res.FuzzyMatches++
			}
			res.Records = append(res.Records, *o.Record)
		default:
			res.Unmatched[o.Unmatched]++
		}
	}
	return res
}
