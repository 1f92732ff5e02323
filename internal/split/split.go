package split

import (
	"fmt"
	"math/rand"

	"github.com/selivandex/vollab/pkg/models"
)

// New deterministically partitions the dataset into train (floor(fraction*n)
// records) and test (the remainder). The same seed always yields the same
// partition.
func New(ds *models.Dataset, fraction float64, seed int64) (*models.Split, error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, fmt.Errorf("%w: split fraction must be in (0,1), got %g", models.ErrConfiguration, fraction)
	}

	n := ds.Len()
	nTrain := int(fraction * float64(n))
	if nTrain == 0 || nTrain == n {
		return nil, fmt.Errorf("%w: fraction %g leaves an empty partition for %d records", models.ErrConfiguration, fraction, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	return &models.Split{
		Train: ds.Subset(perm[:nTrain]),
		Test:  ds.Subset(perm[nTrain:]),
	}, nil
}

// KFold partitions the training set into k disjoint folds of near-equal size
// whose union is the full set. Each fold pairs its validation slice with the
// remaining records as fitting data.
func KFold(train *models.Dataset, k int, seed int64) ([]models.Fold, error) {
	n := train.Len()
	if k < 2 {
		return nil, fmt.Errorf("%w: fold count must be at least 2, got %d", models.ErrConfiguration, k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: fold count %d exceeds record count %d", models.ErrConfiguration, k, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	folds := make([]models.Fold, 0, k)
	base := n / k
	extra := n % k // first `extra` folds take one more record

	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		valIdx := perm[start : start+size]
		fitIdx := make([]int, 0, n-size)
		fitIdx = append(fitIdx, perm[:start]...)
		fitIdx = append(fitIdx, perm[start+size:]...)

		folds = append(folds, models.Fold{
			Train: train.Subset(fitIdx),
			Val:   train.Subset(valIdx),
		})
		start += size
	}

	return folds, nil
}
