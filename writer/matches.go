package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "github.com/QuantResearchTeam/futures-market-analysis/config"
	"github.com/QuantResearchTeam/futures-market-analysis/logger"
	"github.com/QuantResearchTeam/futures-market-analysis/models"
)

// matchParquetRecord is the flattened output row persisted per matched fill.
type matchParquetRecord struct {
	RIC             string   `parquet:"name=ric, type=BYTE_ARRAY, convertedtype=UTF8"`
	ClOrdID         string   `parquet:"name=clordid, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side            int32    `parquet:"name=side, type=INT32"`
	ExecType        *int32   `parquet:"name=exec_type, type=INT32, repetitiontype=OPTIONAL"`
	MatchType       string   `parquet:"name=match_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	MatchedLevel    int32    `parquet:"name=matched_level, type=INT32"`
	HedgeTime       int64    `parquet:"name=hedge_time, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	LobTime         int64    `parquet:"name=lob_time, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	ExecPrice       float64  `parquet:"name=exec_price, type=DOUBLE"`
	LobPriceAtLevel float64  `parquet:"name=lob_price_at_level, type=DOUBLE"`
	FillSize        float64  `parquet:"name=fill_size, type=DOUBLE"`
	L1AskPrice      *float64 `parquet:"name=l1_ask_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L1AskSize       *float64 `parquet:"name=l1_ask_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	L1BidPrice      *float64 `parquet:"name=l1_bid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	L1BidSize       *float64 `parquet:"name=l1_bid_size, type=DOUBLE, repetitiontype=OPTIONAL"`
	MarketSpread    *float64 `parquet:"name=market_spread, type=DOUBLE, repetitiontype=OPTIONAL"`
	MidPrice        *float64 `parquet:"name=mid_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	BBOImbalance    *float64 `parquet:"name=bbo_imbalance, type=DOUBLE, repetitiontype=OPTIONAL"`
	AskVolumeAtLvl  *float64 `parquet:"name=ask_volume_at_level, type=DOUBLE, repetitiontype=OPTIONAL"`
	BidVolumeAtLvl  *float64 `parquet:"name=bid_volume_at_level, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func toParquetRecord(rec *models.MatchRecord) matchParquetRecord {
	out := matchParquetRecord{
		RIC:             rec.Snapshot.RIC,
		ClOrdID:         rec.ClOrdID,
		Side:            int32(rec.Side),
		MatchType:       string(rec.Kind),
		MatchedLevel:    int32(rec.Level),
		HedgeTime:       rec.EventTime.UnixMicro(),
		LobTime:         rec.SnapshotTime.UnixMicro(),
		ExecPrice:       rec.ExecPrice,
		LobPriceAtLevel: rec.LevelPrice,
		FillSize:        rec.FillSize,
		L1AskPrice:      rec.Snapshot.Asks[0].Price,
		L1AskSize:       rec.Snapshot.Asks[0].Size,
		L1BidPrice:      rec.Snapshot.Bids[0].Price,
		L1BidSize:       rec.Snapshot.Bids[0].Size,
	}
	if rec.ExecType != nil {
		et := int32(*rec.ExecType)
		out.ExecType = &et
	}
	if f := rec.Snapshot.Features; f != nil {
		out.MarketSpread = f.MarketSpread
		out.MidPrice = f.MidPrice
		out.BBOImbalance = f.BBOImbalance
		lvl := rec.Level
		if lvl < 0 {
			lvl = -lvl
		}
		if lvl >= 1 && lvl <= models.Depth {
			av, bv := f.AskVolume[lvl-1], f.BidVolume[lvl-1]
			out.AskVolumeAtLvl = &av
			out.BidVolumeAtLvl = &bv
		}
	}
	return out
}

// memoryFile implements the ParquetFile interface over an in-memory buffer
// so the same bytes can be written locally and uploaded to S3.
type memoryFile struct {
	buffer *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buffer: &bytes.Buffer{}}
}

func (mf *memoryFile) Create(name string) (source.ParquetFile, error) { return mf, nil }
func (mf *memoryFile) Open(name string) (source.ParquetFile, error)  { return mf, nil }

func (mf *memoryFile) Seek(offset int64, whence int) (int64, error) {
	// Write-only usage; the parquet writer never seeks backwards here.
	return int64(mf.buffer.Len()), nil
}

func (mf *memoryFile) Read(b []byte) (int, error)  { return mf.buffer.Read(b) }
func (mf *memoryFile) Write(b []byte) (int, error) { return mf.buffer.Write(b) }
func (mf *memoryFile) Close() error                { return nil }
func (mf *memoryFile) Bytes() []byte               { return mf.buffer.Bytes() }

// MatchWriter persists match records, one file per contract, to the local
// output directory and optionally to S3.
type MatchWriter struct {
	config   *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log
	runID    string
}

// NewMatchWriter creates a MatchWriter. The S3 client is only constructed
// when S3 storage is enabled in the configuration.
func NewMatchWriter(cfg *appconfig.Config) (*MatchWriter, error) {
	log := logger.GetLogger()

	w := &MatchWriter{
		config: cfg,
		log:    log,
		runID:  uuid.New().String(),
	}

	if cfg.Storage.S3.Enabled {
		ctx := context.Background()

		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Storage.S3.Region),
		}
		if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.Storage.S3.AccessKeyID,
					cfg.Storage.S3.SecretAccessKey,
					"",
				),
			))
		}

		awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			log.WithComponent("match_writer").WithError(err).Warn("failed to load AWS configuration")
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}

		creds, err := awsConfig.Credentials.Retrieve(ctx)
		if err != nil || !creds.HasKeys() {
			return nil, fmt.Errorf("aws credentials not found")
		}

		w.s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Storage.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
			}
			o.UsePathStyle = cfg.Storage.S3.PathStyle
		})

		log.WithComponent("match_writer").WithFields(logger.Fields{
			"bucket": cfg.Storage.S3.Bucket,
			"region": cfg.Storage.S3.Region,
		}).Info("s3 upload enabled")
	}

	return w, nil
}

// Write persists the match records for one contract. It returns the path of
// the file written locally. When the parquet encoding fails the records are
// written as CSV instead so a run never loses its results.
func (w *MatchWriter) Write(ctx context.Context, ric string, records []models.MatchRecord) (string, error) {
	log := w.log.WithComponent("match_writer").WithFields(logger.Fields{
		"ric":          ric,
		"record_count": len(records),
	})

	if len(records) == 0 {
		log.Debug("no records to write")
		return "", nil
	}

	if err := os.MkdirAll(w.config.Writer.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := w.createParquetFile(records)
	if err != nil {
		log.WithError(err).Error("failed to create parquet file, falling back to CSV")
		csvPath := filepath.Join(w.config.Writer.OutputDir, fmt.Sprintf("%s_matched_lob_hedge.csv", ric))
		if csvErr := writeCSV(csvPath, records); csvErr != nil {
			return "", fmt.Errorf("failed to write CSV fallback: %w", csvErr)
		}
		log.WithFields(logger.Fields{"path": csvPath}).Warn("wrote CSV fallback")
		return csvPath, nil
	}

	path := filepath.Join(w.config.Writer.OutputDir, fmt.Sprintf("%s_matched_lob_hedge.parquet", ric))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write parquet file: %w", err)
	}

	logger.RecordMatchesWritten(len(records))
	log.WithFields(logger.Fields{
		"path":      path,
		"file_size": len(data),
	}).Info("wrote matched data")

	if w.s3Client != nil {
		if err := w.uploadToS3(ctx, ric, data); err != nil {
			log.WithError(err).
				WithEnv("S3_BUCKET").
				WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket}).
				Error("failed to upload to S3")
		}
	}

	return path, nil
}

func (w *MatchWriter) createParquetFile(records []models.MatchRecord) ([]byte, error) {
	mf := newMemoryFile()

	pw, err := writer.NewParquetWriter(mf, new(matchParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch w.config.Writer.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for i := range records {
		if err := pw.Write(toParquetRecord(&records[i])); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return mf.Bytes(), nil
}

func (w *MatchWriter) uploadToS3(ctx context.Context, ric string, data []byte) error {
	key := w.s3Key(ric)

	log := w.log.WithComponent("match_writer").WithFields(logger.Fields{
		"s3_key":    key,
		"data_size": len(data),
	})
	log.Info("uploading to S3")

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type": "parquet",
			"compression":  w.config.Writer.Compression,
			"app-version":  w.config.App.Version,
		},
	}

	if _, err := w.s3Client.PutObject(context.WithoutCancel(ctx), input); err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.config.Storage.S3.Bucket, err)
	}

	log.Info("successfully uploaded to S3")
	return nil
}

func (w *MatchWriter) s3Key(ric string) string {
	date := time.Now().UTC().Format("2006-01-02")
	key := filepath.Join(
		w.config.Storage.S3.Prefix,
		fmt.Sprintf("ric=%s", ric),
		fmt.Sprintf("date=%s", date),
		fmt.Sprintf("%s_matched_%s.parquet", ric, w.runID),
	)
	return filepath.ToSlash(key)
}
