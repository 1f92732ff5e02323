package evaluate

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/selivandex/vollab/pkg/models"
)

func TestComputeMetrics(t *testing.T) {
	ps := predictionSet("m", []float64{1, 2, 3, 4}, []float64{1.5, 2, 2.5, 4})

	m := ComputeMetrics(ps)

	// Residuals: -0.5, 0, 0.5, 0. SSres = 0.5, mean actual = 2.5, SStot = 5.
	if math.Abs(m.RMSE-math.Sqrt(0.125)) > 1e-12 {
		t.Errorf("RMSE = %v, expected %v", m.RMSE, math.Sqrt(0.125))
	}
	if math.Abs(m.MAE-0.25) > 1e-12 {
		t.Errorf("MAE = %v, expected 0.25", m.MAE)
	}
	if math.Abs(m.R2-0.9) > 1e-12 {
		t.Errorf("R2 = %v, expected 0.9", m.R2)
	}
	if m.Records != 4 {
		t.Errorf("Records = %d, expected 4", m.Records)
	}
}

func TestComputeMetrics_PerfectFit(t *testing.T) {
	ps := predictionSet("m", []float64{1, 2, 3}, []float64{1, 2, 3})

	m := ComputeMetrics(ps)
	if m.RMSE != 0 || m.MAE != 0 {
		t.Errorf("Perfect fit should have zero error, got RMSE=%v MAE=%v", m.RMSE, m.MAE)
	}
	if m.R2 != 1 {
		t.Errorf("Perfect fit R2 = %v, expected 1", m.R2)
	}
}

func TestComputeMetrics_ConstantActuals(t *testing.T) {
	ps := predictionSet("m", []float64{5, 5, 5}, []float64{4, 5, 6})

	if m := ComputeMetrics(ps); m.R2 != 0 {
		t.Errorf("Zero-variance actuals should report R2 = 0, got %v", m.R2)
	}
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(&models.PredictionSet{Model: "m"})
	if m.RMSE != 0 || m.R2 != 0 || m.MAE != 0 || m.Records != 0 {
		t.Errorf("Empty set should yield zero metrics, got %+v", m)
	}
}

func TestEnsemble_MeanProperty(t *testing.T) {
	actual := []float64{1, 2, 3, 4, 5}
	a := predictionSet("a", actual, []float64{2, 4, 6, 8, 10})
	b := predictionSet("b", actual, []float64{0, 0, 0, 0, 0})
	c := predictionSet("c", actual, []float64{1, 2, 3, 4, 5})

	out, err := Ensemble(a, b, c)
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}

	if len(out.Predictions) != len(actual) {
		t.Fatalf("Expected %d predictions, got %d", len(actual), len(out.Predictions))
	}
	for i, p := range out.Predictions {
		want := (a.Predictions[i].Predicted + b.Predictions[i].Predicted + c.Predictions[i].Predicted) / 3
		if math.Abs(p.Predicted-want) > 1e-12 {
			t.Errorf("Record %d: ensemble = %v, expected mean %v", i, p.Predicted, want)
		}
		if p.Actual != actual[i] {
			t.Errorf("Record %d: actual = %v, expected %v", i, p.Actual, actual[i])
		}
	}
}

func TestEnsemble_JoinsOnKeyNotOrder(t *testing.T) {
	actual := []float64{1, 2, 3}
	a := predictionSet("a", actual, []float64{10, 20, 30})
	b := predictionSet("b", actual, []float64{100, 200, 300})

	// Reverse the second set; the join must still pair matching records.
	for i, j := 0, len(b.Predictions)-1; i < j; i, j = i+1, j-1 {
		b.Predictions[i], b.Predictions[j] = b.Predictions[j], b.Predictions[i]
	}

	out, err := Ensemble(a, b)
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}

	for i := range out.Predictions {
		expected := (float64(i+1)*10 + float64(i+1)*100) / 2
		if math.Abs(out.Predictions[i].Predicted-expected) > 1e-12 {
			t.Errorf("Record %d: ensemble = %v, expected %v", i, out.Predictions[i].Predicted, expected)
		}
	}
}

func TestEnsemble_MismatchedRecords(t *testing.T) {
	a := predictionSet("a", []float64{1, 2, 3}, []float64{1, 2, 3})
	b := predictionSet("b", []float64{1, 2}, []float64{1, 2})

	if _, err := Ensemble(a, b); !errors.Is(err, models.ErrData) {
		t.Errorf("Mismatched record counts should be a data error, got %v", err)
	}
}

func TestEnsemble_DuplicateKeys(t *testing.T) {
	a := predictionSet("a", []float64{1, 2, 3}, []float64{1, 2, 3})
	b := predictionSet("b", []float64{1, 2, 3}, []float64{1, 2, 3})

	// Repeated (date, symbol) records make the join ambiguous.
	b.Predictions[2] = b.Predictions[0]

	if _, err := Ensemble(a, b); !errors.Is(err, models.ErrData) {
		t.Errorf("Duplicate keys should be a data error, got %v", err)
	}
}

func TestEnsemble_NeedsTwoSets(t *testing.T) {
	a := predictionSet("a", []float64{1, 2, 3}, []float64{1, 2, 3})

	if _, err := Ensemble(a); !errors.Is(err, models.ErrData) {
		t.Errorf("Single-set ensemble should be a data error, got %v", err)
	}
}

func TestStacker_RecoversLinearBlend(t *testing.T) {
	// Actual = 0.25*a + 0.75*b exactly; the combiner should find the blend.
	n := 40
	actuals := make([]float64, n)
	aPred := make([]float64, n)
	bPred := make([]float64, n)
	for i := 0; i < n; i++ {
		aPred[i] = float64(i)
		bPred[i] = math.Sin(float64(i)) * 10
		actuals[i] = 0.25*aPred[i] + 0.75*bPred[i]
	}

	a := predictionSet("a", actuals, aPred)
	b := predictionSet("b", actuals, bPred)

	stacker, err := FitStacker(a, b)
	if err != nil {
		t.Fatalf("Failed to fit stacker: %v", err)
	}

	coefs := stacker.Coefficients()
	if len(coefs) != 3 {
		t.Fatalf("Expected intercept plus 2 weights, got %d", len(coefs))
	}
	if math.Abs(coefs[0]) > 1e-8 {
		t.Errorf("Intercept = %v, expected 0", coefs[0])
	}
	if math.Abs(coefs[1]-0.25) > 1e-8 {
		t.Errorf("Weight a = %v, expected 0.25", coefs[1])
	}
	if math.Abs(coefs[2]-0.75) > 1e-8 {
		t.Errorf("Weight b = %v, expected 0.75", coefs[2])
	}

	out, err := stacker.Combine(a, b)
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}
	for i, p := range out.Predictions {
		if math.Abs(p.Predicted-p.Actual) > 1e-8 {
			t.Errorf("Record %d: stacked = %v, actual = %v", i, p.Predicted, p.Actual)
		}
	}
}

func TestStacker_IgnoresTestRecords(t *testing.T) {
	n := 30
	actuals := make([]float64, n)
	aPred := make([]float64, n)
	bPred := make([]float64, n)
	for i := 0; i < n; i++ {
		aPred[i] = float64(i)
		bPred[i] = float64(i % 7)
		actuals[i] = 0.5*aPred[i] + 0.5*bPred[i]
	}

	aTrain := predictionSet("a", actuals, aPred)
	bTrain := predictionSet("b", actuals, bPred)

	stacker, err := FitStacker(aTrain, bTrain)
	if err != nil {
		t.Fatalf("Failed to fit stacker: %v", err)
	}
	before := stacker.Coefficients()

	// Wildly perturbed test sets must not move the fitted weights.
	aTest := predictionSet("a", []float64{999, -999}, []float64{1e6, -1e6})
	bTest := predictionSet("b", []float64{999, -999}, []float64{-1e6, 1e6})
	if _, err := stacker.Combine(aTest, bTest); err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}

	after := stacker.Coefficients()
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("Coefficient %d changed after combining test records: %v vs %v", i, before[i], after[i])
		}
	}

	refit, err := FitStacker(aTrain, bTrain)
	if err != nil {
		t.Fatalf("Failed to refit stacker: %v", err)
	}
	again := refit.Coefficients()
	for i := range before {
		if before[i] != again[i] {
			t.Errorf("Coefficient %d not reproducible from the training sets alone: %v vs %v", i, before[i], again[i])
		}
	}
}

func TestStacker_InputCountMismatch(t *testing.T) {
	actuals := []float64{1, 2, 3, 4, 5}
	a := predictionSet("a", actuals, []float64{1, 2, 3, 4, 5})
	b := predictionSet("b", actuals, []float64{2, 3, 4, 5, 6})

	stacker, err := FitStacker(a, b)
	if err != nil {
		t.Fatalf("Failed to fit stacker: %v", err)
	}

	if _, err := stacker.Combine(a); !errors.Is(err, models.ErrData) {
		t.Errorf("Combining with fewer base models should be a data error, got %v", err)
	}
}

// predictionSet builds a set with unique (date, symbol) keys.
func predictionSet(name string, actuals, predicted []float64) *models.PredictionSet {
	ps := &models.PredictionSet{Model: name}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range actuals {
		ps.Predictions = append(ps.Predictions, models.Prediction{
			Date:      start.AddDate(0, 0, i),
			Symbol:    fmt.Sprintf("SYM%03d", i),
			Actual:    actuals[i],
			Predicted: predicted[i],
		})
	}
	return ps
}
