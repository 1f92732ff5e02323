package models

import (
	"math"
	"testing"
	"time"
)

func TestRecord_KeyAndValue(t *testing.T) {
	rec := Record{
		Date:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Symbol: "AAPL",
		Values: map[string]float64{"x": 1.5},
	}

	if got := rec.Key(); got != "2024-03-05|AAPL" {
		t.Errorf("Key = %q, expected 2024-03-05|AAPL", got)
	}
	if got := rec.Value("x"); got != 1.5 {
		t.Errorf("Value(x) = %v, expected 1.5", got)
	}
	if got := rec.Value("absent"); !math.IsNaN(got) {
		t.Errorf("Missing column should read as NaN, got %v", got)
	}
}

func TestDataset_ColumnAndMatrix(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"a", "b"},
		Records: []Record{
			{Symbol: "S1", Values: map[string]float64{"a": 1, "b": 10}},
			{Symbol: "S2", Values: map[string]float64{"a": 2, "b": 20}},
		},
	}

	col, err := ds.Column("b")
	if err != nil {
		t.Fatalf("Failed to extract column: %v", err)
	}
	if col[0] != 10 || col[1] != 20 {
		t.Errorf("Column b = %v, expected [10 20]", col)
	}

	if _, err := ds.Column("missing"); err == nil {
		t.Error("Unknown column should error")
	}

	m, err := ds.Matrix([]string{"b", "a"})
	if err != nil {
		t.Fatalf("Failed to build matrix: %v", err)
	}
	if m[1][0] != 20 || m[1][1] != 2 {
		t.Errorf("Matrix row 1 = %v, expected [20 2] in requested column order", m[1])
	}
}

func TestDataset_DropMissing(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"a", "b"},
		Records: []Record{
			{Symbol: "S1", Values: map[string]float64{"a": 1, "b": 1}},
			{Symbol: "S2", Values: map[string]float64{"a": math.NaN(), "b": 2}},
			{Symbol: "S3", Values: map[string]float64{"a": 3, "b": math.NaN()}},
			{Symbol: "S4", Values: map[string]float64{"a": math.NaN(), "b": math.NaN()}},
		},
	}

	clean, dropped := ds.DropMissing()

	if clean.Len() != 1 || clean.Records[0].Symbol != "S1" {
		t.Errorf("Expected only S1 to survive, got %d records", clean.Len())
	}
	if dropped["a"] != 2 || dropped["b"] != 2 {
		t.Errorf("Per-column drop counts = %v, expected a:2 b:2", dropped)
	}
}

func TestDataset_Subset(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"a"},
		Records: []Record{
			{Symbol: "S1", Values: map[string]float64{"a": 1}},
			{Symbol: "S2", Values: map[string]float64{"a": 2}},
			{Symbol: "S3", Values: map[string]float64{"a": 3}},
		},
	}

	sub := ds.Subset([]int{2, 0})
	if sub.Len() != 2 || sub.Records[0].Symbol != "S3" || sub.Records[1].Symbol != "S1" {
		t.Errorf("Subset order wrong: %+v", sub.Records)
	}
}

func TestDecimalHelpers(t *testing.T) {
	d := NewDecimal(185.64)
	if got := ToFloat64(d); math.Abs(got-185.64) > 1e-12 {
		t.Errorf("Round trip = %v, expected 185.64", got)
	}
}

func TestPredictionSet_Residuals(t *testing.T) {
	ps := &PredictionSet{
		Predictions: []Prediction{
			{Actual: 2, Predicted: 1.5},
			{Actual: 3, Predicted: 3.5},
		},
	}

	r := ps.Residuals()
	if r[0] != 0.5 || r[1] != -0.5 {
		t.Errorf("Residuals = %v, expected [0.5 -0.5]", r)
	}
}
