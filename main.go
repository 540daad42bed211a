package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/QuantResearchTeam/futures-market-analysis/config"
	"github.com/QuantResearchTeam/futures-market-analysis/logger"
	"github.com/QuantResearchTeam/futures-market-analysis/metrics"
	"github.com/QuantResearchTeam/futures-market-analysis/pipeline"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	index := flag.String("index", "", "Index name of the snapshot history (required)")
	family := flag.String("family", "", "Contract family of the hedge data (required)")
	ric := flag.String("ric", "", "Restrict the run to a single contract RIC")
	threshold := flag.Float64("threshold", 0, "Forward window margin in seconds (overrides config)")
	output := flag.String("output", "", "Output directory (overrides config)")

	flag.Parse()

	if *index == "" || *family == "" {
		log.Error("both -index and -family are required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if *threshold > 0 {
		cfg.Matching.ThresholdSeconds = *threshold
	}
	if *output != "" {
		cfg.Writer.OutputDir = *output
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
		"index":   *index,
		"family":  *family,
	}).Info("starting reconciliation")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	runner := pipeline.New(cfg, *index, *family, *ric)

	reports, err := runner.Run(ctx)
	if err != nil {
		log.WithError(err).Error("reconciliation run failed")
		os.Exit(1)
	}

	for _, rep := range reports {
		log.WithFields(logger.Fields{
			"ric":        rep.RIC,
			"output":     rep.OutputPath,
			"attempted":  rep.Attempted,
			"matched":    rep.Matched,
			"exact":      rep.Exact,
			"fuzzy":      rep.Fuzzy,
			"match_rate": rep.MatchRate,
		}).Info("contract summary")
	}

	log.WithFields(logger.Fields{"contracts": len(reports)}).Info("reconciliation complete")
}
