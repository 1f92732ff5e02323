package model

import (
	"fmt"
	"math/rand"

	"github.com/selivandex/vollab/pkg/models"
)

// BoostParams configure a gradient-boosted trees fit.
type BoostParams struct {
	Trees        int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
}

// GradientBoosted is a stagewise ensemble of shallow CART trees fit on
// residuals with shrinkage.
type GradientBoosted struct {
	base         float64
	trees        []*regressionTree
	learningRate float64
	featureCount int
}

// FitBoosted fits gradient-boosted trees for squared error: start from the
// target mean, then repeatedly fit a shallow tree to the residuals and add a
// shrunk copy of it.
func FitBoosted(x [][]float64, y []float64, p BoostParams, seed int64) (*GradientBoosted, error) {
	if p.Trees < 1 || p.MaxDepth < 1 || p.MinLeaf < 1 {
		return nil, fmt.Errorf("%w: boosting parameters must be positive (trees=%d depth=%d min_leaf=%d)",
			models.ErrConfiguration, p.Trees, p.MaxDepth, p.MinLeaf)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return nil, fmt.Errorf("%w: learning rate must be in (0,1], got %g", models.ErrConfiguration, p.LearningRate)
	}

	n := len(y)
	featureCount := len(x[0])
	rng := rand.New(rand.NewSource(seed))
	tp := treeParams{maxDepth: p.MaxDepth, minLeaf: p.MinLeaf}

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	base := rowMean(y, rows)
	residuals := make([]float64, n)
	for i := range y {
		residuals[i] = y[i] - base
	}

	trees := make([]*regressionTree, 0, p.Trees)
	for t := 0; t < p.Trees; t++ {
		tree := growTree(x, residuals, rows, tp, rng, featureCount)
		trees = append(trees, tree)
		for i := range residuals {
			residuals[i] -= p.LearningRate * tree.predict(x[i])
		}
	}

	return &GradientBoosted{
		base:         base,
		trees:        trees,
		learningRate: p.LearningRate,
		featureCount: featureCount,
	}, nil
}

// Predict returns the base value plus the shrunk sum of the stage trees.
func (m *GradientBoosted) Predict(features []float64) float64 {
	out := m.base
	for _, t := range m.trees {
		out += m.learningRate * t.predict(features)
	}
	return out
}

// Importances sums each feature's split gains across stages, normalized to 1.
func (m *GradientBoosted) Importances() []float64 {
	return normalizedGains(m.trees, m.featureCount)
}
