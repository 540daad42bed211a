package models

import "time"

// Depth is the number of price levels carried per book side in a snapshot.
const Depth = 10

// Level is one price/size pair on one side of the book. Either field may be
// absent in the source data; absent values stay nil and are never zero-filled.
type Level struct {
	Price *float64
	Size  *float64
}

// BookFeatures holds derived per-snapshot quantities computed during
// enrichment. They ride along on the matched output and never influence
// matching itself.
type BookFeatures struct {
	MarketSpread *float64
	MidPrice     *float64
	BBOImbalance *float64

	// Cumulative resting volume from level 1 through level i+1. A missing
	// level size contributes zero to the running sum.
	AskVolume [Depth]float64
	BidVolume [Depth]float64

	// Ask volume divided by bid volume at each depth, nil when the bid
	// volume is zero.
	VolumeImbalance [Depth]*float64
}

// LobSnapshot is one observed book state for a single instrument. Levels are
// ranked best-first: Asks[0] and Bids[0] are level 1.
type LobSnapshot struct {
	RIC      string
	Time     time.Time
	Asks     [Depth]Level
	Bids     [Depth]Level
	Features *BookFeatures
}
