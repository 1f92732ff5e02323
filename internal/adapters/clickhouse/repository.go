package clickhouse

import (
	"context"
	"fmt"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/vollab/internal/adapters/config"
	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
)

// Repository stores per-record predictions in ClickHouse
type Repository struct {
	db    *sqlx.DB
	table string
}

// New opens a ClickHouse connection through the std driver
func New(cfg *config.ClickHouseConfig) (*Repository, error) {
	db, err := sqlx.Connect("clickhouse", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	logger.Info("ClickHouse connection established",
		zap.String("table", cfg.Table),
	)

	return &Repository{db: db, table: cfg.Table}, nil
}

// SavePredictions saves one model's test predictions for a run
func (r *Repository) SavePredictions(ctx context.Context, runID uuid.UUID, ps *models.PredictionSet) error {
	if len(ps.Predictions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(fmt.Sprintf(`
		INSERT INTO %s
		(run_id, model, date, symbol, actual, predicted)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.table))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range ps.Predictions {
		_, err = stmt.ExecContext(ctx,
			runID.String(),
			ps.Model,
			p.Date,
			p.Symbol,
			p.Actual,
			p.Predicted,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert prediction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved predictions to ClickHouse",
		zap.String("model", ps.Model),
		zap.Int("count", len(ps.Predictions)),
	)

	return nil
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.db.Close()
}
