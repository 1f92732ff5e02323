package trainer

import "github.com/selivandex/vollab/internal/model"

// Axis is one hyperparameter dimension of a search grid.
type Axis struct {
	Name   string
	Values []float64
}

// Grid is an ordered hyperparameter grid. Axis order is meaningful: it fixes
// the enumeration order and therefore the deterministic tie-break.
type Grid []Axis

// Combinations enumerates every hyperparameter combination with the first
// axis varying slowest.
func (g Grid) Combinations() []map[string]float64 {
	if len(g) == 0 {
		return nil
	}

	combos := []map[string]float64{{}}
	for _, axis := range g {
		next := make([]map[string]float64, 0, len(combos)*len(axis.Values))
		for _, combo := range combos {
			for _, v := range axis.Values {
				c := make(map[string]float64, len(combo)+1)
				for k, cv := range combo {
					c[k] = cv
				}
				c[axis.Name] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// DefaultGrid returns the stock sweep for a family. The linear family has no
// hyperparameters and gets no grid.
func DefaultGrid(family model.Family) Grid {
	switch family {
	case model.FamilyRandomForest:
		return Grid{
			{Name: model.ParamTrees, Values: []float64{100, 300}},
			{Name: model.ParamMaxDepth, Values: []float64{6, 10}},
			{Name: model.ParamMinLeaf, Values: []float64{2, 5}},
		}
	case model.FamilyGradientBoosted:
		return Grid{
			{Name: model.ParamTrees, Values: []float64{100, 300}},
			{Name: model.ParamLearningRate, Values: []float64{0.05, 0.1}},
			{Name: model.ParamMaxDepth, Values: []float64{2, 3}},
		}
	default:
		return nil
	}
}
