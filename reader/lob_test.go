package reader

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

func fp(v float64) *float64 { return &v }

func sp(v string) *string { return &v }

func ip(v int64) *int64 { return &v }

func writeLobFile(t *testing.T, path string, rows []lobRow) {
	t.Helper()

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		t.Fatalf("create file writer: %v", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(lobRow), 4)
	if err != nil {
		t.Fatalf("create parquet writer: %v", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		t.Fatalf("finalize parquet: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func TestLoadSnapshots(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := []lobRow{
		{
			RIC:        sp("FFIc1"),
			LobTime:    ip(ts.UnixMicro()),
			L1AskPrice: fp(7850.5),
			L1AskSize:  fp(12),
			L1BidPrice: fp(7850.0),
			L1BidSize:  fp(9),
			L3AskPrice: fp(7851.5),
		},
		{RIC: sp("ESc1"), LobTime: ip(ts.Add(time.Second).UnixMicro())},
		{RIC: sp("FFIc1")}, // no timestamp, dropped
	}
	writeLobFile(t, filepath.Join(dir, "part-0.parquet"), rows)

	snaps, err := LoadSnapshots(dir, "FFIc1")
	if err != nil {
		t.Fatalf("LoadSnapshots failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}

	s := snaps[0]
	if s.RIC != "FFIc1" || !s.Time.Equal(ts) {
		t.Errorf("identity wrong: ric=%s time=%v", s.RIC, s.Time)
	}
	if s.Asks[0].Price == nil || *s.Asks[0].Price != 7850.5 {
		t.Errorf("l1 ask price = %v, want 7850.5", s.Asks[0].Price)
	}
	if s.Asks[2].Price == nil || *s.Asks[2].Price != 7851.5 {
		t.Errorf("l3 ask price = %v, want 7851.5", s.Asks[2].Price)
	}
	// Columns absent in the file must stay absent in the model.
	if s.Asks[1].Price != nil || s.Bids[2].Size != nil {
		t.Error("absent levels must map to nil, not zero")
	}
}

func TestLoadSnapshotsAllInstruments(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	writeLobFile(t, filepath.Join(dir, "part-0.parquet"), []lobRow{
		{RIC: sp("FFIc1"), LobTime: ip(ts.UnixMicro())},
		{RIC: sp("ESc1"), LobTime: ip(ts.UnixMicro())},
	})

	snaps, err := LoadSnapshots(dir, "")
	if err != nil {
		t.Fatalf("LoadSnapshots failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Errorf("got %d snapshots, want 2", len(snaps))
	}
}

func TestLoadSnapshotsNoParquetFiles(t *testing.T) {
	if _, err := LoadSnapshots(t.TempDir(), "FFIc1"); err == nil {
		t.Error("expected error for a directory without parquet files")
	}
}
