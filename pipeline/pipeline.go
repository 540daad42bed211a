package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/QuantResearchTeam/futures-market-analysis/config"
	"github.com/QuantResearchTeam/futures-market-analysis/engine"
	"github.com/QuantResearchTeam/futures-market-analysis/logger"
	"github.com/QuantResearchTeam/futures-market-analysis/metrics"
	"github.com/QuantResearchTeam/futures-market-analysis/models"
	"github.com/QuantResearchTeam/futures-market-analysis/preprocess"
	"github.com/QuantResearchTeam/futures-market-analysis/reader"
	"github.com/QuantResearchTeam/futures-market-analysis/writer"
)

// Runner drives one reconciliation run: it loads the snapshot history for an
// index, discovers the contracts present in the hedge data, and matches each
// contract's fills against the book.
type Runner struct {
	cfg    *config.Config
	log    *logger.Entry
	index  string
	family string
	ric    string
}

// ContractReport summarises the matching outcome for one contract.
type ContractReport struct {
	RIC        string
	OutputPath string
	Attempted  int64
	Matched    int64
	Exact      int64
	Fuzzy      int64
	MatchRate  float64
}

// New creates a Runner for one index and contract family. When ric is
// non-empty the run is restricted to that single contract.
func New(cfg *config.Config, index, family, ric string) *Runner {
	return &Runner{
		cfg:    cfg,
		log:    logger.GetLogger().WithComponent("pipeline"),
		index:  index,
		family: family,
		ric:    ric,
	}
}

func (r *Runner) lobDir() string {
	dir := strings.ReplaceAll(r.cfg.Data.LobDirPattern, "{index}", r.index)
	return filepath.Join(r.cfg.Data.BasePath, dir)
}

func (r *Runner) hedgePath(ric string) string {
	return filepath.Join(r.cfg.Data.BasePath, r.cfg.Data.FuturesDir, r.family, ric, ric+".parquet")
}

// Run processes every contract found in the snapshot history. A failure on
// one contract is logged and does not stop the others; the call fails only
// when the snapshot history itself cannot be loaded or no contract succeeds.
func (r *Runner) Run(ctx context.Context) ([]ContractReport, error) {
	log := r.log.WithFields(logger.Fields{
		"index":  r.index,
		"family": r.family,
	})

	snaps, err := reader.LoadSnapshots(r.lobDir(), r.ric)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}

	rics := r.contracts(snaps)
	if len(rics) == 0 {
		return nil, fmt.Errorf("no contracts found in snapshot history")
	}
	log.WithFields(logger.Fields{"contracts": len(rics)}).Info("starting reconciliation run")

	matchWriter, err := writer.NewMatchWriter(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create match writer: %w", err)
	}

	eng := engine.New(engine.Config{
		Threshold: r.cfg.Matching.Threshold(),
		Workers:   r.cfg.Matching.Workers,
	})

	var reports []ContractReport
	for _, ric := range rics {
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}

		report, err := r.runContract(ctx, eng, matchWriter, snaps, ric)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"ric": ric}).Error("contract reconciliation failed")
			continue
		}
		reports = append(reports, report)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("all %d contracts failed", len(rics))
	}
	return reports, nil
}

func (r *Runner) runContract(ctx context.Context, eng *engine.Engine, mw *writer.MatchWriter, snaps []models.LobSnapshot, ric string) (ContractReport, error) {
	log := r.log.WithFields(logger.Fields{"ric": ric})
	log.Info("processing contract")

	book := preprocess.PrepareSnapshots(snaps, ric)
	if len(book) == 0 {
		return ContractReport{}, fmt.Errorf("no usable snapshots for %s", ric)
	}
	book = preprocess.EnrichSnapshots(book)

	events, err := reader.LoadFills(r.hedgePath(ric), ric)
	if err != nil {
		return ContractReport{}, fmt.Errorf("failed to load hedge events: %w", err)
	}
	events = preprocess.PrepareFills(events, ric)
	if len(events) == 0 {
		log.Warn("no hedge events after preprocessing")
		return ContractReport{RIC: ric}, nil
	}

	tick := r.cfg.TickSize(ric)
	res := eng.Run(ctx, book, events, tick)

	path, err := mw.Write(ctx, ric, res.Records)
	if err != nil {
		return ContractReport{}, fmt.Errorf("failed to write match records: %w", err)
	}

	logger.RecordContractRun()
	r.logSummary(log, ric, res)
	r.emitMetrics(ric, res)

	return ContractReport{
		RIC:        ric,
		OutputPath: path,
		Attempted:  res.Attempted,
		Matched:    res.Matched(),
		Exact:      res.ExactMatches,
		Fuzzy:      res.FuzzyMatches,
		MatchRate:  res.MatchRate(),
	}, nil
}

// contracts returns the sorted unique RICs in the snapshot history, or just
// the requested one when the run is restricted.
func (r *Runner) contracts(snaps []models.LobSnapshot) []string {
	if r.ric != "" {
		return []string{r.ric}
	}
	seen := make(map[string]struct{})
	var rics []string
	for i := range snaps {
		ric := snaps[i].RIC
		if ric == "" {
			continue
		}
		if _, ok := seen[ric]; !ok {
			seen[ric] = struct{}{}
			rics = append(rics, ric)
		}
	}
	sort.Strings(rics)
	return rics
}

func (r *Runner) logSummary(log *logger.Entry, ric string, res *engine.Result) {
	fields := logger.Fields{
		"attempted":      res.Attempted,
		"matched":        res.Matched(),
		"exact":          res.ExactMatches,
		"fuzzy":          res.FuzzyMatches,
		"match_rate":     fmt.Sprintf("%.2f%%", res.MatchRate()),
		"locator_errors": res.LocatorErrors,
	}
	for reason, n := range res.Skipped {
		fields["skipped_"+reason.String()] = n
	}
	for reason, n := range res.Unmatched {
		fields["unmatched_"+reason.String()] = n
	}
	log.WithFields(fields).Info("contract reconciliation complete")
}

func (r *Runner) emitMetrics(ric string, res *engine.Result) {
	if !r.cfg.Metrics.CloudWatch.Enabled {
		return
	}
	fields := logger.Fields{"ric": ric, "index": r.index}
	metrics.EmitMetric(logger.GetLogger(), "pipeline", "fills_attempted", float64(res.Attempted), fields)
	metrics.EmitMetric(logger.GetLogger(), "pipeline", "fills_matched", float64(res.Matched()), fields)
	metrics.EmitMetric(logger.GetLogger(), "pipeline", "match_rate", res.MatchRate(), logger.Fields{
		"ric": ric, "index": r.index, "unit": "percent",
	})
}
