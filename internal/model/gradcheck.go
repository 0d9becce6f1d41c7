package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// NumericalGradient approximates the batch loss gradient at p with central
// finite differences over (w, b).
func NumericalGradient(b Batch, p Params) (Gradient, error) {
	if err := checkBatch(b, p); err != nil {
		return Gradient{}, err
	}
	dim := p.Dim()
	theta := append(p.Weights(), p.B)

	loss := func(x []float64) float64 {
		q := Params{W: mat.NewVecDense(dim, append([]float64(nil), x[:dim]...)), B: x[dim]}
		pred, err := Predict(b.X, q)
		if err != nil {
			return math.NaN()
		}
		l, err := SquaredLoss(pred, b.Y)
		if err != nil {
			return math.NaN()
		}
		return l
	}

	grad := fd.Gradient(nil, loss, theta, &fd.Settings{Formula: fd.Central, Step: 1e-6})
	return Gradient{W: mat.NewVecDense(dim, grad[:dim]), B: grad[dim]}, nil
}

// MaxAbsDiff returns the largest componentwise difference between a and b.
func MaxAbsDiff(a, b Gradient) float64 {
	diff := math.Abs(a.B - b.B)
	for i := 0; i < a.W.Len(); i++ {
		diff = math.Max(diff, math.Abs(a.W.AtVec(i)-b.W.AtVec(i)))
	}
	return diff
}

// CheckGradient compares the closed-form gradient with the finite-difference
// one and fails when any component differs by more than tol.
func CheckGradient(b Batch, p Params, tol float64) (float64, error) {
	analytic, _, err := ComputeGradient(b, p)
	if err != nil {
		return 0, err
	}
	numeric, err := NumericalGradient(b, p)
	if err != nil {
		return 0, err
	}
	diff := MaxAbsDiff(analytic, numeric)
	if diff > tol {
		return diff, fmt.Errorf("gradient check: max abs diff %g exceeds %g", diff, tol)
	}
	return diff, nil
}
