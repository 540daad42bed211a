package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Data     DataConfig     `yaml:"data"`
	Matching MatchingConfig `yaml:"matching"`
	Ticks    TicksConfig    `yaml:"ticks"`
	Writer   WriterConfig   `yaml:"writer"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type DataConfig struct {
	// BasePath is the root of the local data tree.
	BasePath string `yaml:"base_path"`

	// LobDirPattern names the snapshot directory relative to BasePath;
	// {index} is replaced with the index name.
	LobDirPattern string `yaml:"lob_dir_pattern"`

	// FuturesDir holds per-family hedge data:
	// <base>/<futures_dir>/<family>/<ric>/<ric>.parquet
	FuturesDir string `yaml:"futures_dir"`
}

type MatchingConfig struct {
	ThresholdSeconds float64 `yaml:"threshold_seconds"`
	Workers          int     `yaml:"workers"`
}

// Threshold returns the forward window margin as a duration.
func (m MatchingConfig) Threshold() time.Duration {
	return time.Duration(m.ThresholdSeconds * float64(time.Second))
}

type TicksConfig struct {
	Default  float64            `yaml:"default"`
	Prefixes map[string]float64 `yaml:"prefixes"`
}

type WriterConfig struct {
	OutputDir   string `yaml:"output_dir"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Data: DataConfig{
			BasePath:      "data",
			LobDirPattern: "{index}_2024_data_parquet",
			FuturesDir:    "futures_data_local",
		},
		Matching: MatchingConfig{
			ThresholdSeconds: 5,
			Workers:          4,
		},
		Ticks: TicksConfig{
			Default: 0.5,
			Prefixes: map[string]float64{
				"FF": 0.5,  // FTSE futures
				"ES": 0.25, // E-mini S&P
				"NQ": 0.25, // E-mini NASDAQ
			},
		},
		Writer: WriterConfig{
			OutputDir:   "processed_matched_data",
			Compression: "snappy",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}

	if cfg.Matching.ThresholdSeconds <= 0 {
		return fmt.Errorf("matching.threshold_seconds must be greater than 0")
	}

	if cfg.Matching.Workers <= 0 {
		return fmt.Errorf("matching.workers must be greater than 0")
	}

	if cfg.Ticks.Default <= 0 {
		return fmt.Errorf("ticks.default must be greater than 0")
	}

	if cfg.Writer.OutputDir == "" {
		return fmt.Errorf("writer.output_dir is required")
	}

	if cfg.Storage.S3.Enabled && cfg.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
	}

	return nil
}
