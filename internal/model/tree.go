package model

import (
	"math/rand"
	"sort"
)

// treeParams are the growth limits for one CART regression tree.
type treeParams struct {
	maxDepth    int
	minLeaf     int
	maxFeatures int // candidate features per split; 0 means all
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// regressionTree is a variance-reduction CART tree. gains accumulates the
// squared-error reduction attributed to each feature across all splits.
type regressionTree struct {
	root  *treeNode
	gains []float64
}

// growTree fits a tree on the rows of the design matrix listed in rows.
func growTree(x [][]float64, y []float64, rows []int, p treeParams, rng *rand.Rand, featureCount int) *regressionTree {
	t := &regressionTree{gains: make([]float64, featureCount)}
	t.root = t.build(x, y, rows, 0, p, rng, featureCount)
	return t
}

func (t *regressionTree) predict(features []float64) float64 {
	node := t.root
	for !node.leaf {
		if features[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func (t *regressionTree) build(x [][]float64, y []float64, rows []int, depth int, p treeParams, rng *rand.Rand, featureCount int) *treeNode {
	mean := rowMean(y, rows)

	if depth >= p.maxDepth || len(rows) < 2*p.minLeaf {
		return &treeNode{leaf: true, value: mean}
	}

	best, ok := findBestSplit(x, y, rows, p, rng, featureCount)
	if !ok {
		return &treeNode{leaf: true, value: mean}
	}
	t.gains[best.feature] += best.gain

	return &treeNode{
		feature:   best.feature,
		threshold: best.threshold,
		left:      t.build(x, y, best.left, depth+1, p, rng, featureCount),
		right:     t.build(x, y, best.right, depth+1, p, rng, featureCount),
	}
}

type splitCandidate struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

// findBestSplit scans candidate features for the split with the largest
// squared-error reduction that keeps minLeaf rows on both sides.
func findBestSplit(x [][]float64, y []float64, rows []int, p treeParams, rng *rand.Rand, featureCount int) (splitCandidate, bool) {
	n := len(rows)

	var sum, sumSq float64
	for _, r := range rows {
		sum += y[r]
		sumSq += y[r] * y[r]
	}
	sseTotal := sumSq - sum*sum/float64(n)

	features := candidateFeatures(featureCount, p.maxFeatures, rng)

	var best splitCandidate
	found := false

	sorted := make([]int, n)
	for _, f := range features {
		copy(sorted, rows)
		sort.Slice(sorted, func(a, b int) bool { return x[sorted[a]][f] < x[sorted[b]][f] })

		var leftSum, leftSq float64
		for i := 0; i < n-1; i++ {
			v := y[sorted[i]]
			leftSum += v
			leftSq += v * v

			k := i + 1
			if k < p.minLeaf || n-k < p.minLeaf {
				continue
			}
			// No valid threshold between equal values.
			if x[sorted[i]][f] == x[sorted[i+1]][f] {
				continue
			}

			rightSum := sum - leftSum
			rightSq := sumSq - leftSq
			sseLeft := leftSq - leftSum*leftSum/float64(k)
			sseRight := rightSq - rightSum*rightSum/float64(n-k)
			gain := sseTotal - sseLeft - sseRight

			if gain > 1e-12 && (!found || gain > best.gain) {
				best = splitCandidate{
					feature:   f,
					threshold: (x[sorted[i]][f] + x[sorted[i+1]][f]) / 2,
					gain:      gain,
				}
				best.left = append(best.left[:0], sorted[:k]...)
				best.right = append(best.right[:0], sorted[k:]...)
				found = true
			}
		}
	}

	if !found {
		return splitCandidate{}, false
	}
	return best, true
}

func candidateFeatures(featureCount, maxFeatures int, rng *rand.Rand) []int {
	if maxFeatures <= 0 || maxFeatures >= featureCount {
		all := make([]int, featureCount)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return rng.Perm(featureCount)[:maxFeatures]
}

func rowMean(y []float64, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += y[r]
	}
	return sum / float64(len(rows))
}
