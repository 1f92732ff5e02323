package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
)

// identifier and categorical columns are never part of the numeric registry
var nonNumeric = map[string]bool{
	models.ColDate:        true,
	models.ColSymbol:      true,
	models.ColCompany:     true,
	models.ColSector:      true,
	models.ColCountry:     true,
	models.ColCountryRisk: true,
}

// monetary columns are parsed as decimals before the float projection
var monetary = map[string]bool{
	models.ColClose:     true,
	models.ColRevenue:   true,
	models.ColMarketCap: true,
}

// CSVLoader reads the per-stock, per-date dataset from a rectangular CSV file
type CSVLoader struct {
	Path   string
	Target string
}

// NewCSVLoader creates a CSV dataset loader
func NewCSVLoader(path, target string) *CSVLoader {
	return &CSVLoader{Path: path, Target: target}
}

// Load reads the whole file into a Dataset. The header row names the
// columns; every column not known as identifier or categorical is numeric.
// Malformed or empty numeric cells become NaN and fall to the missing-value
// policy instead of aborting the load.
func (l *CSVLoader) Load(ctx context.Context) (*models.Dataset, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open dataset: %v", models.ErrData, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", models.ErrData, err)
	}

	index := make(map[string]int, len(header))
	var columns []string
	for i, name := range header {
		index[name] = i
		if !nonNumeric[name] {
			columns = append(columns, name)
		}
	}

	for _, required := range []string{models.ColDate, models.ColSymbol, l.Target} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: dataset is missing column %q", models.ErrData, required)
		}
	}

	ds := &models.Dataset{Columns: columns}
	malformed := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Short rows and quoting faults drop only the offending row.
			malformed++
			continue
		}

		rec, ok := l.parseRow(row, header, index)
		if !ok {
			malformed++
			continue
		}
		ds.Records = append(ds.Records, rec)
	}

	if malformed > 0 {
		logger.Warn("dropped malformed rows during load",
			zap.Int("rows", malformed),
		)
	}

	logger.Info("dataset loaded",
		zap.String("path", l.Path),
		zap.Int("records", ds.Len()),
		zap.Int("numeric_columns", len(ds.Columns)),
	)

	return ds, nil
}

// parseRow converts one CSV row into a Record. Rows with an unparseable date
// or empty symbol are unusable and reported as malformed.
func (l *CSVLoader) parseRow(row, header []string, index map[string]int) (models.Record, bool) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	date, err := time.Parse("2006-01-02", cell(models.ColDate))
	if err != nil {
		return models.Record{}, false
	}
	symbol := cell(models.ColSymbol)
	if symbol == "" {
		return models.Record{}, false
	}

	rec := models.Record{
		Date:        date,
		Symbol:      symbol,
		Company:     cell(models.ColCompany),
		Sector:      cell(models.ColSector),
		Country:     cell(models.ColCountry),
		CountryRisk: cell(models.ColCountryRisk),
		Values:      make(map[string]float64, len(header)),
	}

	for _, name := range header {
		if nonNumeric[name] {
			continue
		}
		raw := cell(name)
		if monetary[name] {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				rec.Values[name] = math.NaN()
				continue
			}
			switch name {
			case models.ColClose:
				rec.Close = d
			case models.ColRevenue:
				rec.Revenue = d
			case models.ColMarketCap:
				rec.MarketCap = d
			}
			rec.Values[name] = models.ToFloat64(d)
			continue
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			rec.Values[name] = math.NaN()
			continue
		}
		rec.Values[name] = v
	}

	return rec, true
}

// Clean applies the missing-value policy: drop rows with NaN in any numeric
// column, loudly. Dropping is deliberate and audited rather than silent
// (the per-column counts say which inputs are responsible).
func Clean(ds *models.Dataset) *models.Dataset {
	clean, dropped := ds.DropMissing()
	if len(dropped) > 0 {
		for column, n := range dropped {
			logger.Warn("column caused dropped rows",
				zap.String("column", column),
				zap.Int("rows", n),
			)
		}
		logger.Warn("records dropped by missing-value policy",
			zap.Int("before", ds.Len()),
			zap.Int("after", clean.Len()),
		)
	}
	return clean
}
