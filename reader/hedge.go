package reader

import (
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/QuantResearchTeam/futures-market-analysis/logger"
	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

// hedgeRow mirrors one hedge order-state transition as stored in the
// per-contract parquet files.
type hedgeRow struct {
	ClOrdID      *string  `parquet:"name=clordid, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Side         *int32   `parquet:"name=side, type=INT32, repetitiontype=OPTIONAL"`
	OrderQty     *float64 `parquet:"name=order_qty, type=DOUBLE, repetitiontype=OPTIONAL"`
	Price        *float64 `parquet:"name=price, type=DOUBLE, repetitiontype=OPTIONAL"`
	Currency     *string  `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TimeInForce  *string  `parquet:"name=time_in_force, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	MktPrice     *float64 `parquet:"name=mkt_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	Bid          *float64 `parquet:"name=bid, type=DOUBLE, repetitiontype=OPTIONAL"`
	Offer        *float64 `parquet:"name=offer, type=DOUBLE, repetitiontype=OPTIONAL"`
	VWAP         *float64 `parquet:"name=vwap, type=DOUBLE, repetitiontype=OPTIONAL"`
	Status       *int32   `parquet:"name=status, type=INT32, repetitiontype=OPTIONAL"`
	TransactTime *int64   `parquet:"name=transact_time, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	ExecType     *int32   `parquet:"name=exec_type, type=INT32, repetitiontype=OPTIONAL"`
	CumQty       *float64 `parquet:"name=cum_qty, type=DOUBLE, repetitiontype=OPTIONAL"`
	LeavesQty    *float64 `parquet:"name=leaves_qty, type=DOUBLE, repetitiontype=OPTIONAL"`
	ExecPrice    *float64 `parquet:"name=exec_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	RIC          *string  `parquet:"name=ric, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

func (r *hedgeRow) toEvent() models.HedgeFillEvent {
	ev := models.HedgeFillEvent{
		OrderQty:  r.OrderQty,
		Price:     r.Price,
		MktPrice:  r.MktPrice,
		Bid:       r.Bid,
		Offer:     r.Offer,
		VWAP:      r.VWAP,
		Status:    r.Status,
		CumQty:    r.CumQty,
		LeavesQty: r.LeavesQty,
		ExecPrice: r.ExecPrice,
	}
	if r.ClOrdID != nil {
		ev.ClOrdID = *r.ClOrdID
	}
	if r.RIC != nil {
		ev.RIC = *r.RIC
	}
	if r.Currency != nil {
		ev.Currency = *r.Currency
	}
	if r.TimeInForce != nil {
		ev.TimeInForce = *r.TimeInForce
	}
	if r.Side != nil {
		ev.Side = models.Side(*r.Side)
	}
	if r.ExecType != nil {
		et := models.ExecType(*r.ExecType)
		ev.ExecType = &et
	}
	if r.TransactTime != nil {
		ev.Time = time.UnixMicro(*r.TransactTime).UTC()
	}
	return ev
}

// LoadFills reads the hedge execution log at path and returns the events for
// ric, or for all instruments when ric is empty. Rows without a transact time
// are kept; the window locator reports them per event instead.
func LoadFills(path, ric string) ([]models.HedgeFillEvent, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hedge file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(hedgeRow), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]hedgeRow, pr.GetNumRows())
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}

	events := make([]models.HedgeFillEvent, 0, len(rows))
	for i := range rows {
		ev := rows[i].toEvent()
		if ric != "" && ev.RIC != ric {
			continue
		}
		events = append(events, ev)
	}

	logger.RecordFillsRead(len(events))
	logger.GetLogger().WithComponent("hedge_reader").WithFields(logger.Fields{
		"file": path,
		"rows": len(events),
		"ric":  ric,
	}).Info("loaded hedge events")

	return events, nil
}
