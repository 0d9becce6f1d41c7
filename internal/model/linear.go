package model

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrShapeMismatch reports inputs whose lengths or feature dimensions disagree.
var ErrShapeMismatch = errors.New("shape mismatch")

// Params holds the weight vector and bias of an affine predictor.
type Params struct {
	W *mat.VecDense
	B float64
}

// Gradient has the same shape as Params.
type Gradient struct {
	W *mat.VecDense
	B float64
}

// NewParams draws weights from N(0, 0.01^2) and zeroes the bias.
func NewParams(dim int, seed int64) (Params, error) {
	if dim <= 0 {
		return Params{}, fmt.Errorf("%w: dimension must be > 0 (got %d)", ErrShapeMismatch, dim)
	}
	rng := rand.New(rand.NewSource(seed))
	w := make([]float64, dim)
	for i := range w {
		w[i] = rng.NormFloat64() * 0.01
	}
	return Params{W: mat.NewVecDense(dim, w)}, nil
}

// Dim returns the feature dimension of p.
func (p Params) Dim() int {
	if p.W == nil {
		return 0
	}
	return p.W.Len()
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	out := Params{B: p.B}
	if p.W != nil {
		out.W = mat.VecDenseCopyOf(p.W)
	}
	return out
}

// Weights returns the weight vector as a fresh slice.
func (p Params) Weights() []float64 {
	out := make([]float64, p.Dim())
	for i := range out {
		out[i] = p.W.AtVec(i)
	}
	return out
}

// Predict returns X·w + b for each row of x.
func Predict(x mat.Matrix, p Params) (*mat.VecDense, error) {
	rows, cols := x.Dims()
	if cols != p.Dim() {
		return nil, fmt.Errorf("%w: features have %d columns, weights have %d", ErrShapeMismatch, cols, p.Dim())
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrShapeMismatch)
	}
	out := mat.NewVecDense(rows, nil)
	out.MulVec(x, p.W)
	floats.AddConst(p.B, out.RawVector().Data)
	return out, nil
}

// SquaredLoss is the mean of the squared elementwise differences.
func SquaredLoss(pred, target mat.Vector) (float64, error) {
	if pred.Len() != target.Len() {
		return 0, fmt.Errorf("%w: %d predictions, %d targets", ErrShapeMismatch, pred.Len(), target.Len())
	}
	if pred.Len() == 0 {
		return 0, fmt.Errorf("%w: empty input", ErrShapeMismatch)
	}
	sq := make([]float64, pred.Len())
	for i := range sq {
		d := pred.AtVec(i) - target.AtVec(i)
		sq[i] = d * d
	}
	return stat.Mean(sq, nil), nil
}

// ComputeGradient returns the gradient of the batch-mean squared error with
// respect to p, and the loss at p.
//
//	dL/dw = (2/k) Xᵀ(ŷ - y)
//	dL/db = (2/k) Σ(ŷ - y)
func ComputeGradient(b Batch, p Params) (Gradient, float64, error) {
	if err := checkBatch(b, p); err != nil {
		return Gradient{}, 0, err
	}
	s, err := accumulate(b.X, b.Y, p)
	if err != nil {
		return Gradient{}, 0, err
	}
	g, loss := s.finish()
	return g, loss, nil
}

// partialSums are the additive pieces of the gradient over a row range.
type partialSums struct {
	xtr  *mat.VecDense
	r    float64
	sq   float64
	rows int
}

func accumulate(x *mat.Dense, y *mat.VecDense, p Params) (partialSums, error) {
	pred, err := Predict(x, p)
	if err != nil {
		return partialSums{}, err
	}
	pred.SubVec(pred, y)
	res := pred.RawVector().Data

	xtr := mat.NewVecDense(p.Dim(), nil)
	xtr.MulVec(x.T(), pred)
	return partialSums{
		xtr:  xtr,
		r:    floats.Sum(res),
		sq:   floats.Dot(res, res),
		rows: len(res),
	}, nil
}

func (s *partialSums) add(o partialSums) {
	s.xtr.AddVec(s.xtr, o.xtr)
	s.r += o.r
	s.sq += o.sq
	s.rows += o.rows
}

func (s partialSums) finish() (Gradient, float64) {
	k := float64(s.rows)
	w := mat.NewVecDense(s.xtr.Len(), nil)
	w.ScaleVec(2/k, s.xtr)
	return Gradient{W: w, B: 2 / k * s.r}, s.sq / k
}

func checkBatch(b Batch, p Params) error {
	if b.X == nil || b.Y == nil {
		return fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	rows, cols := b.X.Dims()
	if rows != b.Y.Len() {
		return fmt.Errorf("%w: %d feature rows, %d targets", ErrShapeMismatch, rows, b.Y.Len())
	}
	if cols != p.Dim() {
		return fmt.Errorf("%w: features have %d columns, weights have %d", ErrShapeMismatch, cols, p.Dim())
	}
	return nil
}

// Linear is an affine regressor trained with plain SGD. With more than one
// worker the batch rows are split into contiguous shards whose partial sums
// are joined before the single parameter update.
type Linear struct {
	params  Params
	opt     *SGD
	workers int
}

// NewLinear wraps params with an SGD optimizer.
func NewLinear(params Params, lr float64, workers int) (*Linear, error) {
	if params.Dim() == 0 {
		return nil, fmt.Errorf("%w: params have no weights", ErrShapeMismatch)
	}
	opt, err := NewSGD(lr)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	return &Linear{params: params.Clone(), opt: opt, workers: workers}, nil
}

// Params returns a copy of the current parameters.
func (m *Linear) Params() Params {
	return m.params.Clone()
}

// Gradient computes the batch gradient at the current parameters.
func (m *Linear) Gradient(batch Batch) (Gradient, float64, error) {
	if err := checkBatch(batch, m.params); err != nil {
		return Gradient{}, 0, err
	}
	rows := batch.Len()
	workers := m.workers
	if workers > rows {
		workers = rows
	}
	if workers <= 1 {
		return ComputeGradient(batch, m.params)
	}

	parts := make([]partialSums, workers)
	errs := make([]error, workers)
	chunk := (rows + workers - 1) / workers
	cols := m.params.Dim()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		lo := i * chunk
		hi := lo + chunk
		if hi > rows {
			hi = rows
		}
		if lo >= hi {
			parts[i] = partialSums{xtr: mat.NewVecDense(cols, nil)}
			continue
		}
		wg.Add(1)
		go func(i, lo, hi int) {
			defer wg.Done()
			x := batch.X.Slice(lo, hi, 0, cols).(*mat.Dense)
			y := batch.Y.SliceVec(lo, hi).(*mat.VecDense)
			parts[i], errs[i] = accumulate(x, y, m.params)
		}(i, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Gradient{}, 0, err
		}
	}
	total := parts[0]
	for _, p := range parts[1:] {
		total.add(p)
	}
	g, loss := total.finish()
	return g, loss, nil
}

// TrainStep applies one SGD update and returns the batch loss measured
// before the update.
func (m *Linear) TrainStep(batch Batch) (float64, error) {
	g, loss, err := m.Gradient(batch)
	if err != nil {
		return 0, err
	}
	if err := m.opt.Step(&m.params, g); err != nil {
		return 0, err
	}
	return loss, nil
}
