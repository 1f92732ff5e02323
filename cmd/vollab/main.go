package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/selivandex/vollab/internal/adapters/clickhouse"
	"github.com/selivandex/vollab/internal/adapters/config"
	"github.com/selivandex/vollab/internal/adapters/database"
	"github.com/selivandex/vollab/internal/dataset"
	"github.com/selivandex/vollab/internal/pipeline"
	"github.com/selivandex/vollab/internal/report"
	"github.com/selivandex/vollab/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("volatility pipeline starting",
		zap.String("dataset_source", cfg.Dataset.Source),
		zap.String("target", cfg.Dataset.Target),
	)

	// Optional Postgres: run-history sink and, when selected, dataset source.
	var db *database.DB
	if cfg.Database.Enabled || cfg.Dataset.Source == "postgres" {
		db, err = database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.Database.Enabled {
			if err := database.RunMigrations(db.Conn(), "./migrations"); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}
	}

	loader, err := buildLoader(cfg, db)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, loader)

	if cfg.Database.Enabled {
		p.SetRunStore(report.NewRepository(db.DB()))
	}

	if cfg.ClickHouse.Enabled {
		ch, err := clickhouse.New(&cfg.ClickHouse)
		if err != nil {
			return err
		}
		defer ch.Close()
		p.SetPredictionStore(ch)
	}

	if cfg.Report.Plots {
		plotter, err := report.NewPlotter(cfg.Report.OutputDir)
		if err != nil {
			return err
		}
		p.SetPlotter(plotter)
	}

	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	result.Print()
	return nil
}

// buildLoader selects the dataset source.
func buildLoader(cfg *config.Config, db *database.DB) (pipeline.Loader, error) {
	switch cfg.Dataset.Source {
	case "postgres":
		return dataset.NewPostgresLoader(db.DB(), cfg.Dataset.Table, cfg.Dataset.Target), nil
	default:
		return dataset.NewCSVLoader(cfg.Dataset.Path, cfg.Dataset.Target), nil
	}
}
