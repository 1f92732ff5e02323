package evaluate

import (
	"fmt"
	"math"
	"strings"

	"github.com/selivandex/vollab/internal/model"
	"github.com/selivandex/vollab/pkg/models"
)

// Evaluate runs a fitted model over a dataset and pairs every record with
// its prediction.
func Evaluate(m model.Predictor, ds *models.Dataset, fs models.FeatureSet, target, name string) (*models.PredictionSet, error) {
	x, err := ds.Matrix(fs.Columns)
	if err != nil {
		return nil, err
	}
	y, err := ds.Column(target)
	if err != nil {
		return nil, err
	}

	ps := &models.PredictionSet{Model: name}
	ps.Predictions = make([]models.Prediction, len(y))
	for i := range y {
		ps.Predictions[i] = models.Prediction{
			Date:      ds.Records[i].Date,
			Symbol:    ds.Records[i].Symbol,
			Actual:    y[i],
			Predicted: m.Predict(x[i]),
		}
	}
	return ps, nil
}

// ComputeMetrics derives RMSE, R² and MAE from a prediction set. R² is
// reported as 0 when the actuals have no variance, so a degenerate test
// slice degrades the diagnostic instead of faulting.
func ComputeMetrics(ps *models.PredictionSet) models.Metrics {
	n := len(ps.Predictions)
	if n == 0 {
		return models.Metrics{}
	}

	var mean float64
	for _, p := range ps.Predictions {
		mean += p.Actual
	}
	mean /= float64(n)

	var ssRes, ssTot, absSum float64
	for _, p := range ps.Predictions {
		r := p.Actual - p.Predicted
		ssRes += r * r
		absSum += math.Abs(r)
		d := p.Actual - mean
		ssTot += d * d
	}

	m := models.Metrics{
		RMSE:    math.Sqrt(ssRes / float64(n)),
		MAE:     absSum / float64(n),
		Records: n,
	}
	if ssTot > 0 {
		m.R2 = 1 - ssRes/ssTot
	}
	return m
}

// Ensemble combines two or more prediction sets over the same records by
// unweighted arithmetic mean, joined on (date, symbol).
func Ensemble(sets ...*models.PredictionSet) (*models.PredictionSet, error) {
	rows, err := align(sets)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(sets))
	for i, s := range sets {
		names[i] = s.Model
	}

	out := &models.PredictionSet{Model: "ensemble(" + strings.Join(names, ",") + ")"}
	out.Predictions = make([]models.Prediction, len(rows))
	for i, row := range rows {
		var sum float64
		for _, v := range row.base {
			sum += v
		}
		out.Predictions[i] = models.Prediction{
			Date:      row.meta.Date,
			Symbol:    row.meta.Symbol,
			Actual:    row.meta.Actual,
			Predicted: sum / float64(len(row.base)),
		}
	}
	return out, nil
}

// Stacker combines base models through a second-stage linear regression.
// The combiner is fit exclusively on training-set predictions; test records
// never reach the fit.
type Stacker struct {
	combiner *model.LinearRegression
	inputs   int
}

// FitStacker fits the second-stage regression of the actual target on the
// base models' predictions over the training set.
func FitStacker(trainSets ...*models.PredictionSet) (*Stacker, error) {
	rows, err := align(trainSets)
	if err != nil {
		return nil, err
	}

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, row := range rows {
		x[i] = row.base
		y[i] = row.meta.Actual
	}

	combiner, err := model.FitLinear(x, y)
	if err != nil {
		return nil, err
	}
	return &Stacker{combiner: combiner, inputs: len(trainSets)}, nil
}

// Coefficients exposes the fitted second-stage weights (intercept first).
func (s *Stacker) Coefficients() []float64 {
	out := make([]float64, 0, len(s.combiner.Coefficients)+1)
	out = append(out, s.combiner.Intercept)
	out = append(out, s.combiner.Coefficients...)
	return out
}

// Combine applies the fitted combiner to the base models' test predictions.
func (s *Stacker) Combine(testSets ...*models.PredictionSet) (*models.PredictionSet, error) {
	if len(testSets) != s.inputs {
		return nil, fmt.Errorf("%w: stacker was fit on %d base models, got %d", models.ErrData, s.inputs, len(testSets))
	}

	rows, err := align(testSets)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(testSets))
	for i, set := range testSets {
		names[i] = set.Model
	}

	out := &models.PredictionSet{Model: "stacked(" + strings.Join(names, ",") + ")"}
	out.Predictions = make([]models.Prediction, len(rows))
	for i, row := range rows {
		out.Predictions[i] = models.Prediction{
			Date:      row.meta.Date,
			Symbol:    row.meta.Symbol,
			Actual:    row.meta.Actual,
			Predicted: s.combiner.Predict(row.base),
		}
	}
	return out, nil
}

// alignedRow joins one record's predictions across base models.
type alignedRow struct {
	meta models.Prediction
	base []float64
}

// align joins prediction sets on (date, symbol), in the first set's order.
// Every set must cover exactly the same records.
func align(sets []*models.PredictionSet) ([]alignedRow, error) {
	if len(sets) < 2 {
		return nil, fmt.Errorf("%w: combining needs at least two prediction sets, got %d", models.ErrData, len(sets))
	}

	first := sets[0]
	for _, s := range sets[1:] {
		if len(s.Predictions) != len(first.Predictions) {
			return nil, fmt.Errorf("%w: prediction sets cover different records (%d vs %d)",
				models.ErrData, len(first.Predictions), len(s.Predictions))
		}
	}

	index := make([]map[string]float64, len(sets))
	for i, s := range sets {
		index[i] = make(map[string]float64, len(s.Predictions))
		for _, p := range s.Predictions {
			key := p.Key()
			// Duplicate keys make the join ambiguous.
			if _, ok := index[i][key]; ok {
				return nil, fmt.Errorf("%w: duplicate record %s in prediction set %q", models.ErrData, key, s.Model)
			}
			index[i][key] = p.Predicted
		}
	}

	rows := make([]alignedRow, len(first.Predictions))
	for i, p := range first.Predictions {
		base := make([]float64, len(sets))
		for j := range sets {
			v, ok := index[j][p.Key()]
			if !ok {
				return nil, fmt.Errorf("%w: record %s missing from prediction set %q", models.ErrData, p.Key(), sets[j].Model)
			}
			base[j] = v
		}
		rows[i] = alignedRow{meta: p, base: base}
	}
	return rows, nil
}
