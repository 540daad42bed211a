package engine

import (
	"errors"
	"sort"
	"time"

	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

// BackwardMargin is the fixed lookback applied before a fill's event time
// when locating candidate snapshots. Fills lag the book state that caused
// them, but clock skew can make the book timestamp trail the fill slightly,
// so the window reaches one second back regardless of the forward threshold.
const BackwardMargin = time.Second

var (
	// ErrMissingTimestamp is returned when the fill event carries no
	// usable event time.
	ErrMissingTimestamp = errors.New("fill event has no timestamp")

	// ErrEmptySnapshots is returned when the snapshot sequence is empty
	// and no window can be located.
	ErrEmptySnapshots = errors.New("snapshot sequence is empty")
)

// LocateWindow returns the half-open index range [start, end) of snapshots
// whose timestamps fall inside the closed interval
// [eventTime-BackwardMargin, eventTime+threshold]. The snapshot sequence
// must be sorted ascending by time.
func LocateWindow(snaps []models.LobSnapshot, eventTime time.Time, threshold time.Duration) (int, int, error) {
	if eventTime.IsZero() {
		return 0, 0, ErrMissingTimestamp
	}
	if len(snaps) == 0 {
		return 0, 0, ErrEmptySnapshots
	}

	lower := eventTime.Add(-BackwardMargin)
	upper := eventTime.Add(threshold)

	start := sort.Search(len(snaps), func(i int) bool {
		return !snaps[i].Time.Before(lower)
	})
	end := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].Time.After(upper)
	})
	return start, end, nil
}
