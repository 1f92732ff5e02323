package trainer

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/selivandex/vollab/internal/model"
	"github.com/selivandex/vollab/internal/split"
	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
	"github.com/selivandex/vollab/pkg/worker"
)

// Trainer fits one model family on a training set, optionally sweeping a
// hyperparameter grid with cross-validated RMSE scoring.
type Trainer struct {
	folds   int
	seed    int64
	workers int
}

// New creates a trainer. workers bounds the sweep pool; non-positive means
// one worker per CPU.
func New(folds int, seed int64, workers int) *Trainer {
	return &Trainer{folds: folds, seed: seed, workers: workers}
}

// Result is a fitted model with the hyperparameters that produced it.
type Result struct {
	Predictor model.Predictor
	Family    model.Family
	Params    map[string]float64
	// CVScore is the winner's mean validation RMSE; NaN when no grid was swept.
	CVScore float64
}

// foldData is a read-only matrix view of one cross-validation fold.
type foldData struct {
	xFit [][]float64
	yFit []float64
	xVal [][]float64
	yVal []float64
}

// Fit fits the family on the training set. A nil grid fits once with family
// defaults. A non-nil grid is swept: every combination is scored by mean
// RMSE over the folds, the arg-min wins (first enumerated on ties), and the
// winner is refit on the full training set.
func (t *Trainer) Fit(ctx context.Context, train *models.Dataset, fs models.FeatureSet, target string, family model.Family, grid Grid) (*Result, error) {
	if len(fs.Columns) == 0 {
		return nil, fmt.Errorf("%w: no usable features to fit", models.ErrConfiguration)
	}

	x, err := train.Matrix(fs.Columns)
	if err != nil {
		return nil, err
	}
	y, err := train.Column(target)
	if err != nil {
		return nil, err
	}

	if grid == nil {
		m, err := model.Fit(family, x, y, nil, t.seed)
		if err != nil {
			return nil, err
		}
		return &Result{Predictor: m, Family: family, CVScore: math.NaN()}, nil
	}

	combos := grid.Combinations()
	if len(combos) == 0 {
		return nil, fmt.Errorf("%w: empty hyperparameter grid", models.ErrConfiguration)
	}

	folds, err := t.buildFolds(train, fs, target, family)
	if err != nil {
		return nil, err
	}

	scores, err := t.sweep(ctx, folds, family, combos)
	if err != nil {
		return nil, err
	}

	best := 0
	for i, s := range scores {
		if s < scores[best] {
			best = i
		}
	}

	logger.Info("grid search completed",
		zap.String("family", string(family)),
		zap.Int("combinations", len(combos)),
		zap.Float64("best_rmse", scores[best]),
		zap.Any("selected", combos[best]),
	)

	m, err := model.Fit(family, x, y, combos[best], t.seed)
	if err != nil {
		return nil, err
	}

	return &Result{
		Predictor: m,
		Family:    family,
		Params:    combos[best],
		CVScore:   scores[best],
	}, nil
}

// buildFolds materializes read-only fold matrices once so sweep workers
// share no mutable state.
func (t *Trainer) buildFolds(train *models.Dataset, fs models.FeatureSet, target string, family model.Family) ([]foldData, error) {
	folds, err := split.KFold(train, t.folds, t.seed)
	if err != nil {
		return nil, err
	}

	out := make([]foldData, len(folds))
	minRecords := model.MinRecords(family, len(fs.Columns))
	for i, f := range folds {
		if f.Train.Len() < minRecords {
			return nil, fmt.Errorf("%w: fold %d has %d records, below the minimum %d for family %s",
				models.ErrConfiguration, i, f.Train.Len(), minRecords, family)
		}

		if out[i].xFit, err = f.Train.Matrix(fs.Columns); err != nil {
			return nil, err
		}
		if out[i].yFit, err = f.Train.Column(target); err != nil {
			return nil, err
		}
		if out[i].xVal, err = f.Val.Matrix(fs.Columns); err != nil {
			return nil, err
		}
		if out[i].yVal, err = f.Val.Column(target); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// sweep scores every combination on the folds with a transient bounded pool.
// Each task writes only its own slot of the score slice; the caller does the
// arg-min reduction.
func (t *Trainer) sweep(ctx context.Context, folds []foldData, family model.Family, combos []map[string]float64) ([]float64, error) {
	scores := make([]float64, len(combos))

	tasks := make([]worker.Task, len(combos))
	for i := range combos {
		idx := i
		tasks[idx] = func(ctx context.Context) error {
			var total float64
			for _, f := range folds {
				m, err := model.Fit(family, f.xFit, f.yFit, combos[idx], t.seed)
				if err != nil {
					return fmt.Errorf("combination %d: %w", idx, err)
				}
				total += rmse(m, f.xVal, f.yVal)
			}
			scores[idx] = total / float64(len(folds))
			return nil
		}
	}

	pool := worker.NewPool(t.workers)
	if err := pool.Run(ctx, tasks); err != nil {
		return nil, err
	}
	return scores, nil
}

func rmse(m model.Predictor, x [][]float64, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i := range y {
		d := y[i] - m.Predict(x[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(y)))
}
