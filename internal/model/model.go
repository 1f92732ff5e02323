package model

import (
	"fmt"

	"github.com/selivandex/vollab/pkg/models"
)

// Family tags one of the supported regression model families.
type Family string

const (
	FamilyLinear          Family = "linear"
	FamilyRandomForest    Family = "random_forest"
	FamilyGradientBoosted Family = "gradient_boosted"
)

// ParseFamily validates a family tag from configuration.
func ParseFamily(s string) (Family, error) {
	switch Family(s) {
	case FamilyLinear, FamilyRandomForest, FamilyGradientBoosted:
		return Family(s), nil
	default:
		return "", fmt.Errorf("%w: unknown model family %q", models.ErrConfiguration, s)
	}
}

// Predictor is an opaque fitted model. Implementations are immutable after
// fitting.
type Predictor interface {
	Predict(features []float64) float64
}

// Importancer is implemented by predictors that can report per-feature
// importances for the diagnostics chart.
type Importancer interface {
	Importances() []float64
}

// Hyperparameter names shared by the trainer grids.
const (
	ParamTrees        = "trees"
	ParamMaxDepth     = "max_depth"
	ParamMinLeaf      = "min_leaf"
	ParamLearningRate = "learning_rate"
)

// MinRecords returns the minimum number of rows needed to fit a family over
// the given number of features.
func MinRecords(family Family, featureCount int) int {
	switch family {
	case FamilyLinear:
		return featureCount + 2
	default:
		return 5
	}
}

// Fit fits one model family on a row-major design matrix. Hyperparameters
// missing from params fall back to family defaults; the linear family takes
// none. Tree-based fitting is deterministic for a fixed seed.
func Fit(family Family, x [][]float64, y []float64, params map[string]float64, seed int64) (Predictor, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d feature rows for %d targets", models.ErrData, len(x), len(y))
	}
	featureCount := 0
	if len(x) > 0 {
		featureCount = len(x[0])
	}
	if len(y) < MinRecords(family, featureCount) {
		return nil, fmt.Errorf("%w: %d records is below the minimum %d for family %s",
			models.ErrConfiguration, len(y), MinRecords(family, featureCount), family)
	}

	switch family {
	case FamilyLinear:
		return FitLinear(x, y)
	case FamilyRandomForest:
		return FitForest(x, y, forestParams(params), seed)
	case FamilyGradientBoosted:
		return FitBoosted(x, y, boostParams(params), seed)
	default:
		return nil, fmt.Errorf("%w: unknown model family %q", models.ErrConfiguration, family)
	}
}

func paramOr(params map[string]float64, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}

func forestParams(params map[string]float64) ForestParams {
	return ForestParams{
		Trees:    int(paramOr(params, ParamTrees, 100)),
		MaxDepth: int(paramOr(params, ParamMaxDepth, 8)),
		MinLeaf:  int(paramOr(params, ParamMinLeaf, 2)),
	}
}

func boostParams(params map[string]float64) BoostParams {
	return BoostParams{
		Trees:        int(paramOr(params, ParamTrees, 100)),
		MaxDepth:     int(paramOr(params, ParamMaxDepth, 3)),
		MinLeaf:      int(paramOr(params, ParamMinLeaf, 2)),
		LearningRate: paramOr(params, ParamLearningRate, 0.1),
	}
}
