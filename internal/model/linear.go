package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/selivandex/vollab/pkg/models"
)

// LinearRegression is an ordinary-least-squares fit with intercept.
type LinearRegression struct {
	Intercept    float64
	Coefficients []float64
}

// FitLinear solves the least-squares problem for the design matrix. A
// singular or near-singular design surfaces a numeric error.
func FitLinear(x [][]float64, y []float64) (*LinearRegression, error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, fmt.Errorf("%w: empty or mismatched design matrix", models.ErrData)
	}
	p := len(x[0])

	a := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			a.Set(i, j+1, x[i][j])
		}
	}
	b := mat.NewVecDense(n, y)

	var beta mat.VecDense
	if err := beta.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: design matrix is not invertible: %v", models.ErrNumeric, err)
	}

	coefs := make([]float64, p)
	for j := 0; j < p; j++ {
		coefs[j] = beta.AtVec(j + 1)
	}

	return &LinearRegression{
		Intercept:    beta.AtVec(0),
		Coefficients: coefs,
	}, nil
}

// Predict returns intercept + dot(coefficients, features).
func (m *LinearRegression) Predict(features []float64) float64 {
	out := m.Intercept
	for j, c := range m.Coefficients {
		if j < len(features) {
			out += c * features[j]
		}
	}
	return out
}

// Importances reports absolute coefficient magnitudes.
func (m *LinearRegression) Importances() []float64 {
	out := make([]float64, len(m.Coefficients))
	for j, c := range m.Coefficients {
		out[j] = math.Abs(c)
	}
	return out
}
