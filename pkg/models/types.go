package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Canonical column names shared by the loaders, screener and reporters.
const (
	ColDate        = "date"
	ColSymbol      = "symbol"
	ColCompany     = "company"
	ColSector      = "sector"
	ColCountry     = "hq_country"
	ColCountryRisk = "country_risk"

	ColClose     = "close_price"
	ColRevenue   = "revenue"
	ColMarketCap = "market_cap"

	// DefaultTarget is the one-year trailing volatility column.
	DefaultTarget = "volatility_1y"
)

// Record is a single per-stock, per-date observation.
type Record struct {
	Date    time.Time
	Symbol  string
	Company string

	Sector      string
	Country     string
	CountryRisk string

	// Monetary attributes keep decimal precision from the source; their
	// float64 projections live in Values under the Col* names.
	Close     decimal.Decimal
	Revenue   decimal.Decimal
	MarketCap decimal.Decimal

	// Values holds every numeric modeling column by name, target included.
	// Missing cells are NaN.
	Values map[string]float64
}

// Key identifies a record by (date, symbol), the natural dataset identity.
func (r *Record) Key() string {
	return r.Date.Format("2006-01-02") + "|" + r.Symbol
}

// Value returns a numeric column of the record, NaN when absent.
func (r *Record) Value(column string) float64 {
	v, ok := r.Values[column]
	if !ok {
		return math.NaN()
	}
	return v
}

// Dataset is an ordered collection of records with a fixed set of numeric
// columns established at load time.
type Dataset struct {
	Columns []string
	Records []Record
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// HasColumn reports whether a numeric column exists.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column extracts one numeric column in record order.
func (d *Dataset) Column(name string) ([]float64, error) {
	if !d.HasColumn(name) {
		return nil, fmt.Errorf("%w: unknown column %q", ErrData, name)
	}
	out := make([]float64, len(d.Records))
	for i := range d.Records {
		out[i] = d.Records[i].Value(name)
	}
	return out, nil
}

// Matrix extracts the given columns as a row-major design matrix.
func (d *Dataset) Matrix(columns []string) ([][]float64, error) {
	for _, c := range columns {
		if !d.HasColumn(c) {
			return nil, fmt.Errorf("%w: unknown column %q", ErrData, c)
		}
	}
	rows := make([][]float64, len(d.Records))
	for i := range d.Records {
		row := make([]float64, len(columns))
		for j, c := range columns {
			row[j] = d.Records[i].Value(c)
		}
		rows[i] = row
	}
	return rows, nil
}

// Subset returns a new dataset holding the records at the given indices,
// sharing the column registry.
func (d *Dataset) Subset(indices []int) *Dataset {
	records := make([]Record, len(indices))
	for i, idx := range indices {
		records[i] = d.Records[idx]
	}
	return &Dataset{Columns: d.Columns, Records: records}
}

// DropMissing removes records carrying NaN in any numeric column and reports
// how many rows each column was responsible for dropping.
func (d *Dataset) DropMissing() (*Dataset, map[string]int) {
	dropped := make(map[string]int)
	kept := make([]Record, 0, len(d.Records))

	for i := range d.Records {
		clean := true
		for _, c := range d.Columns {
			if math.IsNaN(d.Records[i].Value(c)) {
				dropped[c]++
				clean = false
			}
		}
		if clean {
			kept = append(kept, d.Records[i])
		}
	}

	return &Dataset{Columns: d.Columns, Records: kept}, dropped
}

// FeatureSet is a named subset of a dataset's numeric columns. It never
// contains identifier, categorical or target columns.
type FeatureSet struct {
	Name    string
	Columns []string
}

// Split partitions a dataset into disjoint train and test subsets.
type Split struct {
	Train *Dataset
	Test  *Dataset
}

// Fold is one cross-validation partition of the training set.
type Fold struct {
	Train *Dataset
	Val   *Dataset
}

// Prediction pairs one test record with a model's prediction.
type Prediction struct {
	Date      time.Time
	Symbol    string
	Actual    float64
	Predicted float64
}

// Key returns the (date, symbol) identity of the underlying record.
func (p *Prediction) Key() string {
	return p.Date.Format("2006-01-02") + "|" + p.Symbol
}

// PredictionSet holds a model's predictions over a dataset.
type PredictionSet struct {
	Model       string
	Predictions []Prediction
}

// Residuals returns actual - predicted per record.
func (ps *PredictionSet) Residuals() []float64 {
	out := make([]float64, len(ps.Predictions))
	for i, p := range ps.Predictions {
		out[i] = p.Actual - p.Predicted
	}
	return out
}

// Metrics are the regression accuracy numbers for one evaluation.
type Metrics struct {
	RMSE    float64
	R2      float64
	MAE     float64
	Records int
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	ID             uuid.UUID
	Family         string
	CombineMode    string
	SelectedParams map[string]float64
	Seed           int64
	TrainRecords   int
	TestRecords    int
	FeatureCount   int
	Metrics        Metrics
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Print writes a formatted result block to stdout.
func (r *RunReport) Print() {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("VOLATILITY PIPELINE RESULTS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nRun:      %s\n", r.ID)
	fmt.Printf("Model:    %s (combine: %s)\n", r.Family, r.CombineMode)
	fmt.Printf("Seed:     %d\n", r.Seed)
	fmt.Printf("Records:  %d train / %d test\n", r.TrainRecords, r.TestRecords)
	fmt.Printf("Features: %d\n", r.FeatureCount)

	if len(r.SelectedParams) > 0 {
		fmt.Println("\nSELECTED HYPERPARAMETERS:")
		for name, v := range r.SelectedParams {
			fmt.Printf("  %-16s %g\n", name, v)
		}
	}

	fmt.Println("\nTEST METRICS:")
	fmt.Printf("  RMSE: %.6f\n", r.Metrics.RMSE)
	fmt.Printf("  R2:   %.4f\n", r.Metrics.R2)
	fmt.Printf("  MAE:  %.6f\n", r.Metrics.MAE)

	fmt.Printf("\nDuration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Println(strings.Repeat("=", 60))
}
