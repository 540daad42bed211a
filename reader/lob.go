package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/QuantResearchTeam/futures-market-analysis/logger"
	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

// lobRow mirrors one wide-format snapshot row as stored in the parquet files
// produced by the collection pipeline. All level columns are optional; an
// absent value means the level was not present in the book at that time.
type lobRow struct {
	RIC     *string `parquet:"name=ric, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	LobTime *int64  `parquet:"name=lob_time, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`

	L1AskPrice  *float64 `parquet:"name=l1_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L1AskSize   *float64 `parquet:"name=l1_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L1BidPrice  *float64 `parquet:"name=l1_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L1BidSize   *float64 `parquet:"name=l1_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L2AskPrice  *float64 `parquet:"name=l2_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L2AskSize   *float64 `parquet:"name=l2_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L2BidPrice  *float64 `parquet:"name=l2_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L2BidSize   *float64 `parquet:"name=l2_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L3AskPrice  *float64 `parquet:"name=l3_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L3AskSize   *float64 `parquet:"name=l3_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L3BidPrice  *float64 `parquet:"name=l3_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L3BidSize   *float64 `parquet:"name=l3_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L4AskPrice  *float64 `parquet:"name=l4_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L4AskSize   *float64 `parquet:"name=l4_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L4BidPrice  *float64 `parquet:"name=l4_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L4BidSize   *float64 `parquet:"name=l4_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L5AskPrice  *float64 `parquet:"name=l5_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L5AskSize   *float64 `parquet:"name=l5_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L5BidPrice  *float64 `parquet:"name=l5_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L5BidSize   *float64 `parquet:"name=l5_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L6AskPrice  *float64 `parquet:"name=l6_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L6AskSize   *float64 `parquet:"name=l6_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L6BidPrice  *float64 `parquet:"name=l6_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L6BidSize   *float64 `parquet:"name=l6_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L7AskPrice  *float64 `parquet:"name=l7_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L7AskSize   *float64 `parquet:"name=l7_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L7BidPrice  *float64 `parquet:"name=l7_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L7BidSize   *float64 `parquet:"name=l7_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L8AskPrice  *float64 `parquet:"name=l8_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L8AskSize   *float64 `parquet:"name=l8_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L8BidPrice  *float64 `parquet:"name=l8_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L8BidSize   *float64 `parquet:"name=l8_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L9AskPrice  *float64 `parquet:"name=l9_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L9AskSize   *float64 `parquet:"name=l9_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L9BidPrice  *float64 `parquet:"name=l9_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L9BidSize   *float64 `parquet:"name=l9_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L10AskPrice *float64 `parquet:"name=l10_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L10AskSize  *float64 `parquet:"name=l10_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L10BidPrice *float64 `parquet:"name=l10_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L10BidSize  *float64 `parquet:"name=l10_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func (r *lobRow) toSnapshot() (models.LobSnapshot, bool) {
	if r.LobTime == nil {
		return models.LobSnapshot{}, false
	}
	s := models.LobSnapshot{Time: time.UnixMicro(*r.LobTime).UTC()}
	if r.RIC != nil {
		s.RIC = *r.RIC
	}
	s.Asks = [models.Depth]models.Level{
		{Price: r.L1AskPrice, Size: r.L1AskSize},
		{Price: r.L2AskPrice, Size: r.L2AskSize},
		{Price: r.L3AskPrice, Size: r.L3AskSize},
		{Price: r.L4AskPrice, Size: r.L4AskSize},
		{Price: r.L5AskPrice, Size: r.L5AskSize},
		{Price: r.L6AskPrice, Size: r.L6AskSize},
		{Price: r.L7AskPrice, Size: r.L7AskSize},
		{Price: r.L8AskPrice, Size: r.L8AskSize},
		{Price: r.L9AskPrice, Size: r.L9AskSize},
		{Price: r.L10AskPrice, Size: r.L10AskSize},
	}
	s.Bids = [models.Depth]models.Level{
		{Price: r.L1BidPrice, Size: r.L1BidSize},
		{Price: r.L2BidPrice, Size: r.L2BidSize},
		{Price: r.L3BidPrice, Size: r.L3BidSize},
		{Price: r.L4BidPrice, Size: r.L4BidSize},
		{Price: r.L5BidPrice, Size: r.L5BidSize},
		{Price: r.L6BidPrice, Size: r.L6BidSize},
		{Price: r.L7BidPrice, Size: r.L7BidSize},
		{Price: r.L8BidPrice, Size: r.L8BidSize},
		{Price: r.L9BidPrice, Size: r.L9BidSize},
		{Price: r.L10BidPrice, Size: r.L10BidSize},
	}
	return s, true
}

// LoadSnapshots reads every parquet file in dir and returns the snapshot rows
// for ric, or for all instruments when ric is empty. Rows without a timestamp
// are dropped. Unreadable files are logged and skipped; the call fails only
// when the directory itself is unusable or holds no parquet files at all.
func LoadSnapshots(dir, ric string) ([]models.LobSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read LOB directory: %w", err)
	}

	log := logger.GetLogger().WithComponent("lob_reader")

	var snaps []models.LobSnapshot
	files := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		rows, err := readLobFile(path)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"file": path}).Warn("failed to read LOB file")
			continue
		}
		files++
		for i := range rows {
			snap, ok := rows[i].toSnapshot()
			if !ok {
				continue
			}
			if ric != "" && snap.RIC != ric {
				continue
			}
			snaps = append(snaps, snap)
		}
	}

	if files == 0 {
		return nil, fmt.Errorf("no parquet files found in %s", dir)
	}

	logger.RecordSnapshotsRead(len(snaps))
	log.WithFields(logger.Fields{
		"dir":   dir,
		"files": files,
		"rows":  len(snaps),
		"ric":   ric,
	}).Info("loaded LOB snapshots")

	return snaps, nil
}

func readLobFile(path string) ([]lobRow, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(lobRow), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]lobRow, pr.GetNumRows())
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}
	return rows, nil
}
