package features

import (
	"math"
	"sort"

	"github.com/cinar/indicator"
	"go.uber.org/zap"

	"github.com/selivandex/vollab/pkg/logger"
	"github.com/selivandex/vollab/pkg/models"
)

// Derived momentum columns appended to the dataset.
const (
	ColMomentumRSI = "momentum_rsi_14"
	ColSMAGap      = "close_sma_gap_20"
	ColReturnStd   = "return_std_20"
)

const (
	rsiWarmup = 14
	smaPeriod = 20
)

// Derive appends per-symbol momentum columns computed from the closing-price
// series ordered by date: 14-period RSI, the gap between close and its
// 20-period SMA, and the 20-period rolling standard deviation of returns.
// Records without enough history get NaN and fall to the missing-value
// policy downstream.
func Derive(ds *models.Dataset) *models.Dataset {
	bySymbol := make(map[string][]int)
	for i := range ds.Records {
		sym := ds.Records[i].Symbol
		bySymbol[sym] = append(bySymbol[sym], i)
	}

	for _, indices := range bySymbol {
		sort.Slice(indices, func(a, b int) bool {
			return ds.Records[indices[a]].Date.Before(ds.Records[indices[b]].Date)
		})
		deriveSymbol(ds, indices)
	}

	ds.Columns = append(ds.Columns, ColMomentumRSI, ColSMAGap, ColReturnStd)

	logger.Info("derived momentum features",
		zap.Int("symbols", len(bySymbol)),
		zap.Strings("columns", []string{ColMomentumRSI, ColSMAGap, ColReturnStd}),
	)

	return ds
}

// deriveSymbol fills the momentum columns for one symbol's date-ordered slice.
func deriveSymbol(ds *models.Dataset, indices []int) {
	closes := make([]float64, len(indices))
	for i, idx := range indices {
		closes[i] = ds.Records[idx].Value(models.ColClose)
	}

	if len(closes) <= smaPeriod {
		for _, idx := range indices {
			ds.Records[idx].Values[ColMomentumRSI] = math.NaN()
			ds.Records[idx].Values[ColSMAGap] = math.NaN()
			ds.Records[idx].Values[ColReturnStd] = math.NaN()
		}
		return
	}

	_, rsi := indicator.Rsi(closes)
	sma := indicator.Sma(smaPeriod, closes)

	returns := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		returns[i] = closes[i]/closes[i-1] - 1
	}
	retStd := indicator.Std(smaPeriod, returns)

	for i, idx := range indices {
		rec := &ds.Records[idx]

		if i < rsiWarmup {
			rec.Values[ColMomentumRSI] = math.NaN()
		} else {
			rec.Values[ColMomentumRSI] = rsi[i]
		}

		if i < smaPeriod-1 || sma[i] == 0 {
			rec.Values[ColSMAGap] = math.NaN()
		} else {
			rec.Values[ColSMAGap] = closes[i]/sma[i] - 1
		}

		if i < smaPeriod {
			rec.Values[ColReturnStd] = math.NaN()
		} else {
			rec.Values[ColReturnStd] = retStd[i]
		}
	}
}
