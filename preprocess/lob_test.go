package preprocess

import (
	"testing"
	"time"

	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

func fp(v float64) *float64 { return &v }

func snap(ric string, ts time.Time, l1AskPrice float64) models.LobSnapshot {
	s := models.LobSnapshot{RIC: ric, Time: ts}
	s.Asks[0] = models.Level{Price: fp(l1AskPrice), Size: fp(10)}
	s.Bids[0] = models.Level{Price: fp(l1AskPrice - 0.5), Size: fp(10)}
	return s
}

func TestPrepareSnapshots(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	input := []models.LobSnapshot{
		snap("FFIc1", base.Add(2*time.Second), 7851.0),
		snap("ESc1", base, 5000.0),                      // wrong instrument
		snap("FFIc1", base, 7850.0),
		{RIC: "FFIc1"},                                  // no timestamp
		snap("FFIc1", base.Add(2*time.Second), 7852.0),  // duplicate timestamp
		snap("FFIc1", base.Add(time.Second), 7850.5),
	}

	got := PrepareSnapshots(input, "FFIc1")

	if len(got) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Time.Before(got[i].Time) {
			t.Errorf("snapshots not strictly ascending at index %d", i)
		}
	}
	// First occurrence wins on duplicate timestamps.
	if *got[2].Asks[0].Price != 7851.0 {
		t.Errorf("duplicate resolution kept price %v, want 7851.0", *got[2].Asks[0].Price)
	}
}

func TestPrepareSnapshotsDoesNotMutateInput(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	input := []models.LobSnapshot{
		snap("FFIc1", base.Add(time.Second), 7851.0),
		snap("FFIc1", base, 7850.0),
	}

	PrepareSnapshots(input, "FFIc1")

	if !input[0].Time.Equal(base.Add(time.Second)) {
		t.Error("input slice was reordered")
	}
}

func TestEnrichSnapshotsFeatures(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	s := models.LobSnapshot{RIC: "FFIc1", Time: base}
	s.Asks[0] = models.Level{Price: fp(7850.5), Size: fp(2)}
	s.Asks[1] = models.Level{Price: fp(7851.0), Size: fp(4)}
	s.Bids[0] = models.Level{Price: fp(7850.0), Size: fp(3)}
	s.Bids[1] = models.Level{Price: fp(7849.5), Size: fp(5)}

	out := EnrichSnapshots([]models.LobSnapshot{s})
	if len(out) != 1 || out[0].Features == nil {
		t.Fatal("expected one enriched snapshot with features")
	}
	f := out[0].Features

	if f.MarketSpread == nil || *f.MarketSpread != 0.5 {
		t.Errorf("spread = %v, want 0.5", f.MarketSpread)
	}
	if f.MidPrice == nil || *f.MidPrice != 7850.25 {
		t.Errorf("mid = %v, want 7850.25", f.MidPrice)
	}
	if f.BBOImbalance == nil || *f.BBOImbalance != (3.0-2.0)/(3.0+2.0) {
		t.Errorf("bbo imbalance = %v, want 0.2", f.BBOImbalance)
	}

	if f.AskVolume[0] != 2 || f.AskVolume[1] != 6 {
		t.Errorf("ask volumes = %v, %v, want 2, 6", f.AskVolume[0], f.AskVolume[1])
	}
	if f.BidVolume[0] != 3 || f.BidVolume[1] != 8 {
		t.Errorf("bid volumes = %v, %v, want 3, 8", f.BidVolume[0], f.BidVolume[1])
	}
	if f.VolumeImbalance[1] == nil || *f.VolumeImbalance[1] != 6.0/8.0 {
		t.Errorf("volume imbalance L2 = %v, want 0.75", f.VolumeImbalance[1])
	}

	// Input must keep nil features.
	if s.Features != nil {
		t.Error("input snapshot was mutated")
	}
}

func TestEnrichSnapshotsMissingTopOfBook(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	s := models.LobSnapshot{RIC: "FFIc1", Time: base}
	s.Asks[0] = models.Level{Price: fp(7850.5), Size: fp(2)}
	// No bids at all.

	out := EnrichSnapshots([]models.LobSnapshot{s})
	f := out[0].Features

	if f.MarketSpread != nil || f.MidPrice != nil || f.BBOImbalance != nil {
		t.Error("top-of-book features must stay absent with a one-sided book")
	}
	for lvl := 0; lvl < models.Depth; lvl++ {
		if f.VolumeImbalance[lvl] != nil {
			t.Errorf("volume imbalance L%d = %v, want nil with no bid volume", lvl+1, *f.VolumeImbalance[lvl])
		}
	}
}
