package dataset

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
)

// PostgresLoader reads the dataset from a table with the same column names
// the CSV surface uses.
type PostgresLoader struct {
	db     *sqlx.DB
	table  string
	target string
}

// NewPostgresLoader creates a Postgres dataset loader
func NewPostgresLoader(db *sqlx.DB, table, target string) *PostgresLoader {
	return &PostgresLoader{db: db, table: table, target: target}
}

// Load selects every row of the table into a Dataset
func (l *PostgresLoader) Load(ctx context.Context) (*models.Dataset, error) {
	rows, err := l.db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %s", l.table))
	if err != nil {
		return nil, fmt.Errorf("%w: query dataset table: %v", models.ErrData, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: read columns: %v", models.ErrData, err)
	}

	var columns []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true
		if !nonNumeric[name] {
			columns = append(columns, name)
		}
	}
	for _, required := range []string{models.ColDate, models.ColSymbol, l.target} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: dataset table is missing column %q", models.ErrData, required)
		}
	}

	ds := &models.Dataset{Columns: columns}

	for rows.Next() {
		raw := make(map[string]interface{}, len(names))
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", models.ErrData, err)
		}

		rec := models.Record{
			Company:     asString(raw[models.ColCompany]),
			Sector:      asString(raw[models.ColSector]),
			Country:     asString(raw[models.ColCountry]),
			CountryRisk: asString(raw[models.ColCountryRisk]),
			Symbol:      asString(raw[models.ColSymbol]),
			Values:      make(map[string]float64, len(columns)),
		}
		if t, ok := raw[models.ColDate].(time.Time); ok {
			rec.Date = t
		}
		if rec.Symbol == "" || rec.Date.IsZero() {
			continue
		}

		for _, name := range columns {
			rec.Values[name] = asFloat(raw[name])
		}
		// decimal.NewFromFloat panics on NaN, so only project present cells
		if v := rec.Value(models.ColClose); !math.IsNaN(v) {
			rec.Close = models.NewDecimal(v)
		}
		if v := rec.Value(models.ColRevenue); !math.IsNaN(v) {
			rec.Revenue = models.NewDecimal(v)
		}
		if v := rec.Value(models.ColMarketCap); !math.IsNaN(v) {
			rec.MarketCap = models.NewDecimal(v)
		}

		ds.Records = append(ds.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %v", models.ErrData, err)
	}

	logger.Info("dataset loaded from postgres",
		zap.String("table", l.table),
		zap.Int("records", ds.Len()),
		zap.Int("numeric_columns", len(ds.Columns)),
	)

	return ds, nil
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
