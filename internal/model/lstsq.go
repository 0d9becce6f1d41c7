package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LeastSquares solves min ||[X 1]·θ - y||² and returns θ as Params.
func LeastSquares(x *mat.Dense, y *mat.VecDense) (Params, error) {
	rows, cols := x.Dims()
	if rows != y.Len() {
		return Params{}, fmt.Errorf("%w: %d feature rows, %d targets", ErrShapeMismatch, rows, y.Len())
	}
	if rows <= cols {
		return Params{}, fmt.Errorf("%w: need more than %d rows for a least-squares fit, got %d", ErrShapeMismatch, cols, rows)
	}

	a := mat.NewDense(rows, cols+1, nil)
	a.Slice(0, rows, 0, cols).(*mat.Dense).Copy(x)
	ones := make([]float64, rows)
	for i := range ones {
		ones[i] = 1
	}
	a.SetCol(cols, ones)

	var theta mat.VecDense
	if err := theta.SolveVec(a, y); err != nil {
		return Params{}, fmt.Errorf("least squares: %w", err)
	}
	w := mat.VecDenseCopyOf(theta.SliceVec(0, cols))
	return Params{W: w, B: theta.AtVec(cols)}, nil
}
