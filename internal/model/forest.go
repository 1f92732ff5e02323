package model

import (
	"fmt"
	"math/rand"

	"github.com/selivandex/vollab/pkg/models"
)

// ForestParams configure a random forest fit.
type ForestParams struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
}

// RandomForest is a bagged ensemble of CART regression trees with
// per-split feature subsampling.
type RandomForest struct {
	trees        []*regressionTree
	featureCount int
}

// FitForest fits a random forest. Each tree sees a bootstrap sample of the
// rows and sqrt-ish feature subsets per split; the fit is deterministic for
// a fixed seed.
func FitForest(x [][]float64, y []float64, p ForestParams, seed int64) (*RandomForest, error) {
	if p.Trees < 1 || p.MaxDepth < 1 || p.MinLeaf < 1 {
		return nil, fmt.Errorf("%w: forest parameters must be positive (trees=%d depth=%d min_leaf=%d)",
			models.ErrConfiguration, p.Trees, p.MaxDepth, p.MinLeaf)
	}

	n := len(y)
	featureCount := len(x[0])
	maxFeatures := featureCount/3 + 1

	rng := rand.New(rand.NewSource(seed))
	tp := treeParams{maxDepth: p.MaxDepth, minLeaf: p.MinLeaf, maxFeatures: maxFeatures}

	trees := make([]*regressionTree, p.Trees)
	rows := make([]int, n)
	for t := 0; t < p.Trees; t++ {
		for i := range rows {
			rows[i] = rng.Intn(n)
		}
		trees[t] = growTree(x, y, rows, tp, rng, featureCount)
	}

	return &RandomForest{trees: trees, featureCount: featureCount}, nil
}

// Predict averages the trees.
func (m *RandomForest) Predict(features []float64) float64 {
	var sum float64
	for _, t := range m.trees {
		sum += t.predict(features)
	}
	return sum / float64(len(m.trees))
}

// Importances sums each feature's split gains across trees, normalized to 1.
func (m *RandomForest) Importances() []float64 {
	return normalizedGains(m.trees, m.featureCount)
}

func normalizedGains(trees []*regressionTree, featureCount int) []float64 {
	out := make([]float64, featureCount)
	var total float64
	for _, t := range trees {
		for f, g := range t.gains {
			out[f] += g
			total += g
		}
	}
	if total > 0 {
		for f := range out {
			out[f] /= total
		}
	}
	return out
}
