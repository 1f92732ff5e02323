package dataset

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/selivandex/vollab/pkg/models"
)

func TestCSVLoader_Load(t *testing.T) {
	path := writeCSV(t, `date,symbol,company,sector,close_price,market_cap,volatility_1y
2024-01-02,AAPL,Apple Inc,Technology,185.64,2900000000000,0.21
2024-01-02,XOM,Exxon Mobil,Energy,102.15,410000000000,0.18
2024-01-03,AAPL,Apple Inc,Technology,184.25,2880000000000,0.22
`)

	ds, err := NewCSVLoader(path, models.DefaultTarget).Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if ds.Len() != 3 {
		t.Fatalf("Expected 3 records, got %d", ds.Len())
	}

	// Identifier and categorical columns stay out of the numeric registry.
	for _, col := range ds.Columns {
		if col == models.ColDate || col == models.ColSymbol || col == models.ColCompany || col == models.ColSector {
			t.Errorf("Column %q should not be numeric", col)
		}
	}
	if !ds.HasColumn(models.ColClose) || !ds.HasColumn(models.DefaultTarget) {
		t.Errorf("Numeric columns missing from registry: %v", ds.Columns)
	}

	rec := ds.Records[0]
	if rec.Symbol != "AAPL" || rec.Sector != "Technology" {
		t.Errorf("Identity fields wrong: %+v", rec)
	}
	if rec.Date.Format("2006-01-02") != "2024-01-02" {
		t.Errorf("Date = %v, expected 2024-01-02", rec.Date)
	}
	if rec.Close.String() != "185.64" {
		t.Errorf("Close = %s, expected exact decimal 185.64", rec.Close.String())
	}
	if got := rec.Value(models.DefaultTarget); got != 0.21 {
		t.Errorf("Target = %v, expected 0.21", got)
	}
}

func TestCSVLoader_MalformedCellsBecomeNaN(t *testing.T) {
	path := writeCSV(t, `date,symbol,close_price,volatility_1y
2024-01-02,AAPL,185.64,n/a
2024-01-02,MSFT,,0.19
2024-01-03,AAPL,184.25,0.22
`)

	ds, err := NewCSVLoader(path, models.DefaultTarget).Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if ds.Len() != 3 {
		t.Fatalf("Malformed cells should not drop rows at load, got %d records", ds.Len())
	}
	if !math.IsNaN(ds.Records[0].Value(models.DefaultTarget)) {
		t.Error("Unparseable target cell should load as NaN")
	}
	if !math.IsNaN(ds.Records[1].Value(models.ColClose)) {
		t.Error("Empty monetary cell should load as NaN")
	}

	clean := Clean(ds)
	if clean.Len() != 1 {
		t.Errorf("Cleaning should drop both incomplete rows, got %d records", clean.Len())
	}
	if clean.Records[0].Symbol != "AAPL" || clean.Records[0].Date.Day() != 3 {
		t.Errorf("Wrong survivor after cleaning: %+v", clean.Records[0])
	}
}

func TestCSVLoader_MalformedRowsDropped(t *testing.T) {
	path := writeCSV(t, `date,symbol,volatility_1y
not-a-date,AAPL,0.2
2024-01-02,,0.2
2024-01-02,AAPL,0.2
`)

	ds, err := NewCSVLoader(path, models.DefaultTarget).Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if ds.Len() != 1 {
		t.Errorf("Rows without a usable key should be dropped, got %d records", ds.Len())
	}
}

func TestCSVLoader_ShortRowDoesNotTruncateFile(t *testing.T) {
	path := writeCSV(t, `date,symbol,volatility_1y
2024-01-02,AAPL,0.21
2024-01-02,XOM
2024-01-03,AAPL,0.22
2024-01-03,XOM,0.19
`)

	ds, err := NewCSVLoader(path, models.DefaultTarget).Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if ds.Len() != 3 {
		t.Fatalf("Short row should drop only itself, got %d of 3 records", ds.Len())
	}
	// The rows after the short one must survive.
	last := ds.Records[ds.Len()-1]
	if last.Symbol != "XOM" || last.Date.Day() != 3 {
		t.Errorf("Rows after the short one were lost, last record is %s %s",
			last.Symbol, last.Date.Format("2006-01-02"))
	}
}

func TestCSVLoader_MissingRequiredColumn(t *testing.T) {
	path := writeCSV(t, `date,symbol,close_price
2024-01-02,AAPL,185.64
`)

	_, err := NewCSVLoader(path, models.DefaultTarget).Load(context.Background())
	if !errors.Is(err, models.ErrData) {
		t.Errorf("Missing target column should be a data error, got %v", err)
	}
}

func TestCSVLoader_MissingFile(t *testing.T) {
	_, err := NewCSVLoader(filepath.Join(t.TempDir(), "absent.csv"), models.DefaultTarget).Load(context.Background())
	if !errors.Is(err, models.ErrData) {
		t.Errorf("Missing file should be a data error, got %v", err)
	}
}

func TestCSVLoader_CancelledContext(t *testing.T) {
	path := writeCSV(t, `date,symbol,volatility_1y
2024-01-02,AAPL,0.2
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewCSVLoader(path, models.DefaultTarget).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}
