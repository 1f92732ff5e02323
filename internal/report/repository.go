package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
)

// Repository persists run history to Postgres.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a run-history repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SaveRun inserts one run report.
func (r *Repository) SaveRun(ctx context.Context, report *models.RunReport) error {
	params, err := json.Marshal(report.SelectedParams)
	if err != nil {
		return fmt.Errorf("failed to encode selected params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs
		(id, model_family, combine_mode, selected_params, rmse, r2, mae,
		 train_records, test_records, feature_count, seed, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		report.ID,
		report.Family,
		report.CombineMode,
		params,
		report.Metrics.RMSE,
		report.Metrics.R2,
		report.Metrics.MAE,
		report.TrainRecords,
		report.TestRecords,
		report.FeatureCount,
		report.Seed,
		report.StartedAt,
		report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Debug("run saved",
		zap.String("run_id", report.ID.String()),
		zap.String("family", report.Family),
	)

	return nil
}
