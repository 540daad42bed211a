package engine

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

func TestDeriveFillSizes(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	events := []models.HedgeFillEvent{
		{ClOrdID: "A", Time: ts, CumQty: fp(5)},
		{ClOrdID: "A", Time: ts.Add(time.Second), CumQty: fp(8)},
		{ClOrdID: "B", Time: ts.Add(2 * time.Second), CumQty: fp(4)},
		{ClOrdID: "C", Time: ts.Add(3 * time.Second), CumQty: fp(0)},
		{ClOrdID: "D", Time: ts.Add(4 * time.Second)},
		{ClOrdID: "D", Time: ts.Add(5 * time.Second), CumQty: fp(6)},
	}

	want := []FillSize{
		{Value: 5, Ok: true}, // first report of order A
		{Value: 3, Ok: true}, // delta against previous A row
		{Value: 4, Ok: true}, // order boundary resets to cumulative
		{},                   // zero cumulative on a fresh order
		{},                   // no cumulative at all
		{},                   // delta against a D row without a cumulative is undefined
	}

	got := DeriveFillSizes(events)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DeriveFillSizes = %+v, want %+v", got, want)
	}
}

// A fill whose predecessor shares the order id but carries no cumulative
// quantity has an undefined delta and must attempt no match.
func TestDeriveFillSizesUndefinedPredecessorDelta(t *testing.T) {
	snaps, _ := runInput()
	ts := snaps[0].Time

	first := buyFill(ts, 7850.0)
	first.ClOrdID = "ORD-D"
	first.CumQty = nil
	second := buyFill(ts.Add(time.Second), 7850.0)
	second.ClOrdID = "ORD-D"
	second.CumQty = fp(6)
	events := []models.HedgeFillEvent{first, second}

	sizes := DeriveFillSizes(events)
	if sizes[1].Ok {
		t.Errorf("fill size = %+v, want undefined", sizes[1])
	}

	eng := New(Config{Threshold: 5 * time.Second, Workers: 2})
	res := eng.Run(context.Background(), snaps, events, 0.5)
	if res.Skipped[SkipNonPositiveFillSize] != 2 {
		t.Errorf("non_positive_fill_size = %d, want 2", res.Skipped[SkipNonPositiveFillSize])
	}
	if len(res.Records) != 0 {
		t.Errorf("got %d records, want none", len(res.Records))
	}
}

func runInput() ([]models.LobSnapshot, []models.HedgeFillEvent) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	snaps := make([]models.LobSnapshot, 0, 20)
	for i := 0; i < 20; i++ {
		price := 7850.0 + float64(i%4)*0.5
		snaps = append(snaps, bookRow(
			base.Add(time.Duration(i)*time.Second),
			[][2]float64{{price, 20}, {price + 0.5, 15}},
			[][2]float64{{price - 0.5, 20}, {price - 1.0, 15}},
		))
	}

	events := make([]models.HedgeFillEvent, 0, 10)
	for i := 0; i < 10; i++ {
		ev := buyFill(base.Add(time.Duration(2*i)*time.Second), 7850.0+float64(i%4)*0.5)
		ev.ClOrdID = "ORD-RUN"
		cum := float64(i + 1)
		ev.CumQty = &cum
		events = append(events, ev)
	}
	return snaps, events
}

func TestRunCountsAndRate(t *testing.T) {
	snaps, events := runInput()

	// One canceled event and one without a price, on top of the fills.
	canceled := buyFill(snaps[0].Time, 7850.0)
	canceled.ExecType = et(models.ExecTypeCanceled)
	cum := 3.0
	canceled.CumQty = &cum
	noPrice := buyFill(snaps[0].Time, 0)
	noPrice.ExecPrice = nil
	noPrice.ClOrdID = "ORD-NP"
	noPrice.CumQty = &cum
	events = append(events, canceled, noPrice)

	eng := New(Config{Threshold: 5 * time.Second, Workers: 4})
	res := eng.Run(context.Background(), snaps, events, 0.5)

	if res.Skipped[SkipNotAFillType] != 1 {
		t.Errorf("not_a_fill_type = %d, want 1", res.Skipped[SkipNotAFillType])
	}
	if res.Skipped[SkipMissingExecutionPrice] != 1 {
		t.Errorf("missing_execution_price = %d, want 1", res.Skipped[SkipMissingExecutionPrice])
	}

	// The canceled event never counts as attempted; the priceless one does.
	if want := int64(len(events) - 1); res.Attempted != want {
		t.Errorf("attempted = %d, want %d", res.Attempted, want)
	}
	if res.Matched() != int64(len(res.Records)) {
		t.Errorf("matched = %d but %d records", res.Matched(), len(res.Records))
	}

	wantRate := float64(res.Matched()) / float64(res.Attempted) * 100
	if res.MatchRate() != wantRate {
		t.Errorf("match rate = %v, want %v", res.MatchRate(), wantRate)
	}
}

func TestRunDeterministicAcrossWorkerCounts(t *testing.T) {
	snaps, events := runInput()

	var results []*Result
	for _, workers := range []int{1, 4, 16} {
		eng := New(Config{Threshold: 5 * time.Second, Workers: workers})
		results = append(results, eng.Run(context.Background(), snaps, events, 0.5))
	}

	for i := 1; i < len(results); i++ {
		if !reflect.DeepEqual(results[0].Records, results[i].Records) {
			t.Errorf("records differ between 1 worker and %d workers", []int{1, 4, 16}[i])
		}
		if results[0].Attempted != results[i].Attempted ||
			results[0].ExactMatches != results[i].ExactMatches ||
			results[0].FuzzyMatches != results[i].FuzzyMatches {
			t.Errorf("counters differ between worker counts")
		}
	}
}

func TestRunRepeatedRunsIdentical(t *testing.T) {
	snaps, events := runInput()
	eng := New(Config{Threshold: 5 * time.Second, Workers: 8})

	first := eng.Run(context.Background(), snaps, events, 0.5)
	second := eng.Run(context.Background(), snaps, events, 0.5)

	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Error("repeated runs over identical input produced different records")
	}
}

func TestMatchRateZeroWhenNothingAttempted(t *testing.T) {
	res := &Result{}
	if res.MatchRate() != 0 {
		t.Errorf("match rate = %v, want 0", res.MatchRate())
	}
}

// A cancelled run must count only the events that were actually dispatched;
// nothing may land in the zero-value unmatched bucket.
func TestRunCancelledCountsOnlyDispatched(t *testing.T) {
	snaps, events := runInput()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := New(Config{Threshold: 5 * time.Second, Workers: 2})
	res := eng.Run(ctx, snaps, events, 0.5)

	if res.Unmatched[UnmatchedNone] != 0 {
		t.Errorf("unmatched none = %d, want 0", res.Unmatched[UnmatchedNone])
	}
	if len(res.Outcomes) > len(events) {
		t.Errorf("outcomes = %d, more than %d input events", len(res.Outcomes), len(events))
	}
	// Every event in runInput is a valid fill, so every dispatched event
	// must be counted as attempted and nothing more.
	if res.Attempted != int64(len(res.Outcomes)) {
		t.Errorf("attempted = %d with %d dispatched outcomes", res.Attempted, len(res.Outcomes))
	}
}

func TestRunLocatorErrors(t *testing.T) {
	snaps, _ := runInput()

	ev := buyFill(time.Time{}, 7850.0)
	cum := 2.0
	ev.CumQty = &cum

	eng := New(Config{Threshold: 5 * time.Second, Workers: 2})
	res := eng.Run(context.Background(), snaps, []models.HedgeFillEvent{ev}, 0.5)

	if res.LocatorErrors != 1 {
		t.Errorf("locator errors = %d, want 1", res.LocatorErrors)
	}
	if res.Attempted != 1 {
		t.Errorf("attempted = %d, want 1", res.Attempted)
	}
}
