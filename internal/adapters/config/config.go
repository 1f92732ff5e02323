package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/selivandex/vollab/pkg/models"
)

// Config represents application configuration
type Config struct {
	Dataset    DatasetConfig
	Run        RunConfig
	Models     ModelsConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	Report     ReportConfig
	Logging    LoggingConfig
}

// DatasetConfig selects and locates the input dataset
type DatasetConfig struct {
	Source string `envconfig:"DATASET_SOURCE" default:"csv"` // csv or postgres
	Path   string `envconfig:"DATASET_PATH" default:"data/sp500.csv"`
	Table  string `envconfig:"DATASET_TABLE" default:"sp500_features"`
	Target string `envconfig:"DATASET_TARGET" default:"volatility_1y"`
}

// RunConfig carries the per-run knobs that used to live in ambient state:
// seed, split fraction, fold count, parallelism, screening ceiling.
type RunConfig struct {
	Seed           int64   `envconfig:"RUN_SEED" default:"42"`
	TrainFraction  float64 `envconfig:"RUN_TRAIN_FRACTION" default:"0.8"`
	Folds          int     `envconfig:"RUN_FOLDS" default:"5"`
	Workers        int     `envconfig:"RUN_WORKERS" default:"0"` // 0 = NumCPU
	MaxVIF         float64 `envconfig:"RUN_MAX_VIF" default:"10"`
	DeriveMomentum bool    `envconfig:"RUN_DERIVE_MOMENTUM" default:"false"`
}

// ModelsConfig selects model families and how to combine them
type ModelsConfig struct {
	Families   []string `envconfig:"MODEL_FAMILIES" default:"linear"`
	Combine    string   `envconfig:"MODEL_COMBINE" default:"none"` // none, ensemble, stacked
	GridSearch bool     `envconfig:"MODEL_GRID_SEARCH" default:"true"`
}

// DatabaseConfig represents the optional Postgres run-history sink
type DatabaseConfig struct {
	Enabled  bool   `envconfig:"DB_ENABLED" default:"false"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"vollab"`
	User     string `envconfig:"DB_USER" required:"false"`
	Password string `envconfig:"DB_PASSWORD" required:"false"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// ClickHouseConfig represents the optional per-record prediction sink
type ClickHouseConfig struct {
	Enabled bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	DSN     string `envconfig:"CLICKHOUSE_DSN" default:"clickhouse://localhost:9000/vollab"`
	Table   string `envconfig:"CLICKHOUSE_TABLE" default:"run_predictions"`
}

// ReportConfig controls diagnostic output
type ReportConfig struct {
	OutputDir string `envconfig:"REPORT_OUTPUT_DIR" default:"reports"`
	Plots     bool   `envconfig:"REPORT_PLOTS" default:"true"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Dataset.Source != "csv" && c.Dataset.Source != "postgres" {
		return fmt.Errorf("%w: unknown dataset source %q", models.ErrConfiguration, c.Dataset.Source)
	}
	if c.Dataset.Target == "" {
		return fmt.Errorf("%w: target column must be set", models.ErrConfiguration)
	}

	if c.Run.TrainFraction <= 0 || c.Run.TrainFraction >= 1 {
		return fmt.Errorf("%w: train fraction must be in (0,1), got %g", models.ErrConfiguration, c.Run.TrainFraction)
	}
	if c.Run.Folds < 2 {
		return fmt.Errorf("%w: fold count must be at least 2, got %d", models.ErrConfiguration, c.Run.Folds)
	}
	if c.Run.MaxVIF <= 1 {
		return fmt.Errorf("%w: VIF ceiling must exceed 1, got %g", models.ErrConfiguration, c.Run.MaxVIF)
	}

	if len(c.Models.Families) == 0 {
		return fmt.Errorf("%w: at least one model family must be selected", models.ErrConfiguration)
	}
	switch c.Models.Combine {
	case "none", "ensemble", "stacked":
	default:
		return fmt.Errorf("%w: unknown combine mode %q", models.ErrConfiguration, c.Models.Combine)
	}
	if c.Models.Combine != "none" && len(c.Models.Families) < 2 {
		return fmt.Errorf("%w: combine mode %q needs at least two model families", models.ErrConfiguration, c.Models.Combine)
	}

	if c.Database.Enabled && c.Database.User == "" {
		return fmt.Errorf("%w: DB_USER is required when the database sink is enabled", models.ErrConfiguration)
	}

	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
