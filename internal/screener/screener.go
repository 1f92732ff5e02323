package screener

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
)

// aliasEps is the tolerance for treating features as perfectly linearly
// dependent.
const aliasEps = 1e-10

// Correlation is one feature's Pearson correlation with the target.
type Correlation struct {
	Feature     string
	Coefficient float64
}

// VIF is one feature's variance inflation factor.
type VIF struct {
	Feature string
	Value   float64
}

// Result holds the full screening diagnostics and the selected feature set.
type Result struct {
	Correlations []Correlation     // ordered by |r| descending
	VIFs         []VIF             // features that survived to VIF, same order as Correlations
	Excluded     map[string]string // feature -> exclusion reason
	Features     models.FeatureSet
}

// Screen computes target correlations and VIFs over the dataset's numeric
// feature columns and selects the features with VIF at or under maxVIF.
// Zero-variance features report zero correlation and are excluded from VIF;
// aliased features are dropped before VIF; a singular VIF regression excludes
// only the affected feature.
func Screen(ds *models.Dataset, target string, maxVIF float64) (*Result, error) {
	if ds.Len() < 3 {
		return nil, fmt.Errorf("%w: too few records to screen (%d)", models.ErrData, ds.Len())
	}

	y, err := ds.Column(target)
	if err != nil {
		return nil, err
	}

	res := &Result{Excluded: make(map[string]string)}

	var candidates []string
	series := make(map[string][]float64)
	for _, name := range ds.Columns {
		if name == target {
			continue
		}
		x, err := ds.Column(name)
		if err != nil {
			return nil, err
		}
		series[name] = x

		if stat.Variance(x, nil) == 0 {
			// No variance, no signal: zero correlation, no VIF.
			res.Excluded[name] = "zero variance"
			res.Correlations = append(res.Correlations, Correlation{Feature: name, Coefficient: 0})
			continue
		}

		r := stat.Correlation(x, y, nil)
		if math.IsNaN(r) {
			r = 0
		}
		res.Correlations = append(res.Correlations, Correlation{Feature: name, Coefficient: r})
		candidates = append(candidates, name)
	}

	sort.SliceStable(res.Correlations, func(i, j int) bool {
		return math.Abs(res.Correlations[i].Coefficient) > math.Abs(res.Correlations[j].Coefficient)
	})

	candidates = dropAliased(candidates, series, res.Excluded)

	vifByName := computeVIFs(candidates, series, res.Excluded)

	// Report VIFs and select, keeping the correlation ordering.
	selected := make([]string, 0, len(vifByName))
	for _, c := range res.Correlations {
		v, ok := vifByName[c.Feature]
		if !ok {
			continue
		}
		res.VIFs = append(res.VIFs, VIF{Feature: c.Feature, Value: v})
		if v <= maxVIF {
			selected = append(selected, c.Feature)
		} else {
			res.Excluded[c.Feature] = fmt.Sprintf("VIF %.1f above ceiling %.1f", v, maxVIF)
		}
	}

	res.Features = models.FeatureSet{Name: "screened", Columns: selected}

	logger.Info("feature screening completed",
		zap.Int("candidates", len(res.Correlations)),
		zap.Int("selected", len(selected)),
		zap.Int("excluded", len(res.Excluded)),
	)

	return res, nil
}

// dropAliased removes features that are perfect linear duplicates of an
// earlier feature, so VIF regressions stay defined.
func dropAliased(candidates []string, series map[string][]float64, excluded map[string]string) []string {
	kept := make([]string, 0, len(candidates))
	for _, name := range candidates {
		aliased := false
		for _, prev := range kept {
			r := stat.Correlation(series[name], series[prev], nil)
			if math.Abs(r) > 1-aliasEps {
				excluded[name] = "aliased with " + prev
				aliased = true
				break
			}
		}
		if !aliased {
			kept = append(kept, name)
		}
	}
	return kept
}

// computeVIFs regresses each feature on the remaining ones. A singular
// regression excludes only that feature.
func computeVIFs(candidates []string, series map[string][]float64, excluded map[string]string) map[string]float64 {
	out := make(map[string]float64, len(candidates))

	for i, name := range candidates {
		if len(candidates) == 1 {
			out[name] = 1
			continue
		}

		others := make([][]float64, 0, len(candidates)-1)
		for j, other := range candidates {
			if j != i {
				others = append(others, series[other])
			}
		}

		r2, err := regressionR2(others, series[name])
		if err != nil {
			logger.Warn("VIF regression degenerate, feature excluded",
				zap.String("feature", name),
				zap.Error(err),
			)
			excluded[name] = "singular VIF regression"
			continue
		}

		if 1-r2 < 1e-12 {
			excluded[name] = "aliased (VIF unbounded)"
			continue
		}
		out[name] = 1 / (1 - r2)
	}

	return out
}

// regressionR2 fits y on the given predictor columns with an intercept and
// returns the coefficient of determination.
func regressionR2(columns [][]float64, y []float64) (float64, error) {
	n := len(y)
	p := len(columns)
	if n <= p+1 {
		return 0, fmt.Errorf("%w: %d records for %d predictors", models.ErrNumeric, n, p)
	}

	a := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 1)
		for j, col := range columns {
			a.Set(i, j+1, col[i])
		}
	}
	b := mat.NewVecDense(n, y)

	var beta mat.VecDense
	if err := beta.SolveVec(a, b); err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrNumeric, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(a, &beta)

	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssRes += r * r
		d := y[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0, fmt.Errorf("%w: zero target variance", models.ErrNumeric)
	}

	return 1 - ssRes/ssTot, nil
}
