package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

// writeCSV is the rescue path used when parquet encoding fails. It persists
// the same core columns as the parquet output, without the level-1 book state
// and feature columns.
func writeCSV(path string, records []models.MatchRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	header := []string{
		"ric", "clordid", "side", "exec_type", "match_type", "matched_level",
		"hedge_time", "lob_time", "exec_price", "lob_price_at_level", "fill_size",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range records {
		rec := &records[i]
		execType := ""
		if rec.ExecType != nil {
			execType = strconv.FormatInt(int64(*rec.ExecType), 10)
		}
		row := []string{
			rec.Snapshot.RIC,
			rec.ClOrdID,
			strconv.FormatInt(int64(rec.Side), 10),
			execType,
			string(rec.Kind),
			strconv.Itoa(rec.Level),
			rec.EventTime.UTC().Format(time.RFC3339Nano),
			rec.SnapshotTime.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(rec.ExecPrice, 'f', -1, 64),
			strconv.FormatFloat(rec.LevelPrice, 'f', -1, 64),
			strconv.FormatFloat(rec.FillSize, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
