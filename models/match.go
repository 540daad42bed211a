package models

import "time"

// MatchKind distinguishes exact price matches from tick-tolerant ones.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// MatchRecord ties one hedge fill to the snapshot row and book level it most
// plausibly interacted with. Snapshot points into the immutable snapshot
// sequence the engine was run against.
type MatchRecord struct {
	Snapshot *LobSnapshot
	Kind     MatchKind

	// Level is signed: +N for ask level N, -N for bid level N.
	Level int

	ClOrdID  string
	Side     Side
	ExecType *ExecType

	EventTime    time.Time
	SnapshotTime time.Time

	ExecPrice float64
	// LevelPrice is the book price at the matched level. For exact matches
	// it equals ExecPrice within epsilon; for fuzzy matches it may differ
	// by up to one tick.
	LevelPrice float64
	FillSize   float64
}
