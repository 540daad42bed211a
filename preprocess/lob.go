package preprocess

import (
	"sort"

	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

// PrepareSnapshots returns a new snapshot sequence restricted to ric (all
// instruments when ric is empty), stably sorted ascending by time and
// deduplicated on timestamp keeping the first occurrence. Rows without a
// timestamp cannot be ordered and are dropped. The input is not modified.
func PrepareSnapshots(snaps []models.LobSnapshot, ric string) []models.LobSnapshot {
	out := make([]models.LobSnapshot, 0, len(snaps))
	for i := range snaps {
		if ric != "" && snaps[i].RIC != ric {
			continue
		}
		if snaps[i].Time.IsZero() {
			continue
		}
		out = append(out, snaps[i])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	deduped := make([]models.LobSnapshot, 0, len(out))
	for i := range out {
		if i > 0 && out[i].Time.Equal(out[i-1].Time) {
			continue
		}
		deduped = append(deduped, out[i])
	}
	return deduped
}

// EnrichSnapshots returns a copy of snaps with derived book features
// populated. The input is not modified.
func EnrichSnapshots(snaps []models.LobSnapshot) []models.LobSnapshot {
	out := make([]models.LobSnapshot, len(snaps))
	copy(out, snaps)
	for i := range out {
		out[i].Features = computeFeatures(&out[i])
	}
	return out
}

func computeFeatures(s *models.LobSnapshot) *models.BookFeatures {
	f := &models.BookFeatures{}

	a1, b1 := s.Asks[0], s.Bids[0]
	if a1.Price != nil && b1.Price != nil {
		spread := *a1.Price - *b1.Price
		mid := (*a1.Price + *b1.Price) / 2
		f.MarketSpread = &spread
		f.MidPrice = &mid

		if mid != 0 && a1.Size != nil && b1.Size != nil {
			if denom := *b1.Size + *a1.Size; denom != 0 {
				imb := (*b1.Size - *a1.Size) / denom
				f.BBOImbalance = &imb
			}
		}
	}

	var askCum, bidCum float64
	for lvl := 0; lvl < models.Depth; lvl++ {
		if s.Asks[lvl].Size != nil {
			askCum += *s.Asks[lvl].Size
		}
		if s.Bids[lvl].Size != nil {
			bidCum += *s.Bids[lvl].Size
		}
		f.AskVolume[lvl] = askCum
		f.BidVolume[lvl] = bidCum
		if bidCum != 0 {
			ratio := askCum / bidCum
			f.VolumeImbalance[lvl] = &ratio
		}
	}
	return f
}
