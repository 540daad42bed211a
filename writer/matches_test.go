package writer

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	appconfig "github.com/QuantResearchTeam/futures-market-analysis/config"
	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

func fp(v float64) *float64 { return &v }

func sampleRecord() models.MatchRecord {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	execType := models.ExecTypeFill

	snap := &models.LobSnapshot{RIC: "FFIc1", Time: ts}
	snap.Asks[0] = models.Level{Price: fp(7850.5), Size: fp(12)}
	snap.Bids[0] = models.Level{Price: fp(7850.0), Size: fp(9)}
	snap.Features = &models.BookFeatures{
		MarketSpread: fp(0.5),
		MidPrice:     fp(7850.25),
		AskVolume:    [models.Depth]float64{12, 20},
		BidVolume:    [models.Depth]float64{9, 15},
	}

	return models.MatchRecord{
		Snapshot:     snap,
		Kind:         models.MatchExact,
		Level:        -2,
		ClOrdID:      "ORD-1",
		Side:         models.SideSell,
		ExecType:     &execType,
		EventTime:    ts.Add(500 * time.Millisecond),
		SnapshotTime: ts,
		ExecPrice:    7850.0,
		LevelPrice:   7850.0,
		FillSize:     5,
	}
}

func TestToParquetRecord(t *testing.T) {
	rec := sampleRecord()
	row := toParquetRecord(&rec)

	if row.RIC != "FFIc1" || row.ClOrdID != "ORD-1" {
		t.Errorf("identity columns wrong: %+v", row)
	}
	if row.MatchType != "exact" || row.MatchedLevel != -2 {
		t.Errorf("match columns wrong: type=%s level=%d", row.MatchType, row.MatchedLevel)
	}
	if row.ExecType == nil || *row.ExecType != 2 {
		t.Errorf("exec type = %v, want 2", row.ExecType)
	}
	if row.HedgeTime != rec.EventTime.UnixMicro() || row.LobTime != rec.SnapshotTime.UnixMicro() {
		t.Error("timestamps must be microseconds since epoch")
	}
	if row.L1AskPrice == nil || *row.L1AskPrice != 7850.5 {
		t.Errorf("l1 ask price = %v, want 7850.5", row.L1AskPrice)
	}
	// Level -2 reads the level-2 cumulative volumes.
	if row.AskVolumeAtLvl == nil || *row.AskVolumeAtLvl != 20 {
		t.Errorf("ask volume at level = %v, want 20", row.AskVolumeAtLvl)
	}
	if row.BidVolumeAtLvl == nil || *row.BidVolumeAtLvl != 15 {
		t.Errorf("bid volume at level = %v, want 15", row.BidVolumeAtLvl)
	}
}

func TestToParquetRecordWithoutFeatures(t *testing.T) {
	rec := sampleRecord()
	rec.Snapshot.Features = nil
	rec.ExecType = nil

	row := toParquetRecord(&rec)
	if row.MarketSpread != nil || row.AskVolumeAtLvl != nil {
		t.Error("feature columns must stay absent without enrichment")
	}
	if row.ExecType != nil {
		t.Error("exec type must stay absent when the source had none")
	}
}

func TestWriteParquetFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &appconfig.Config{
		Writer: appconfig.WriterConfig{OutputDir: dir, Compression: "snappy"},
	}

	w, err := NewMatchWriter(cfg)
	if err != nil {
		t.Fatalf("NewMatchWriter failed: %v", err)
	}

	rec := sampleRecord()
	path, err := w.Write(context.Background(), "FFIc1", []models.MatchRecord{rec})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "FFIc1_matched_lob_hedge.parquet" {
		t.Errorf("unexpected output name: %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
}

func TestWriteNoRecords(t *testing.T) {
	cfg := &appconfig.Config{
		Writer: appconfig.WriterConfig{OutputDir: t.TempDir(), Compression: "snappy"},
	}
	w, err := NewMatchWriter(cfg)
	if err != nil {
		t.Fatalf("NewMatchWriter failed: %v", err)
	}

	path, err := w.Write(context.Background(), "FFIc1", nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if path != "" {
		t.Errorf("expected no output file, got %s", path)
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	rec := sampleRecord()

	if err := writeCSV(path, []models.MatchRecord{rec}); err != nil {
		t.Fatalf("writeCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open CSV: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one record", len(rows))
	}
	if rows[0][0] != "ric" || rows[1][0] != "FFIc1" {
		t.Errorf("unexpected CSV content: %v", rows)
	}
	if rows[1][4] != "exact" || rows[1][5] != "-2" {
		t.Errorf("unexpected match columns: %v", rows[1])
	}
}
