package model

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func randomBatch(rng *rand.Rand, rows, cols int) Batch {
	x := make([]float64, rows*cols)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	y := make([]float64, rows)
	for i := range y {
		y[i] = rng.NormFloat64() * 3
	}
	index := make([]int, rows)
	for i := range index {
		index[i] = i
	}
	return Batch{X: mat.NewDense(rows, cols, x), Y: mat.NewVecDense(rows, y), Index: index}
}

func randomParams(rng *rand.Rand, dim int) Params {
	w := make([]float64, dim)
	for i := range w {
		w[i] = rng.NormFloat64()
	}
	return Params{W: mat.NewVecDense(dim, w), B: rng.NormFloat64()}
}

func TestPredictAffine(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 2, -1, 0.5})
	p := Params{W: mat.NewVecDense(2, []float64{2, -3.4}), B: 4.2}
	pred, err := Predict(x, p)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []float64{2 - 6.8 + 4.2, -2 - 1.7 + 4.2}
	for i, v := range want {
		if math.Abs(pred.AtVec(i)-v) > 1e-12 {
			t.Fatalf("pred[%d]=%f want %f", i, pred.AtVec(i), v)
		}
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	x := mat.NewDense(2, 3, nil)
	p := Params{W: mat.NewVecDense(2, nil)}
	if _, err := Predict(x, p); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestSquaredLoss(t *testing.T) {
	pred := mat.NewVecDense(3, []float64{1, 2, 3})
	loss, err := SquaredLoss(pred, mat.NewVecDense(3, []float64{1, 2, 3}))
	if err != nil {
		t.Fatalf("SquaredLoss: %v", err)
	}
	if loss != 0 {
		t.Fatalf("expected zero loss for equal vectors, got %f", loss)
	}

	loss, err = SquaredLoss(pred, mat.NewVecDense(3, []float64{0, 2, 5}))
	if err != nil {
		t.Fatalf("SquaredLoss: %v", err)
	}
	if math.Abs(loss-5.0/3.0) > 1e-12 {
		t.Fatalf("expected loss 5/3, got %f", loss)
	}

	if _, err := SquaredLoss(pred, mat.NewVecDense(2, nil)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestSquaredLossNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(10)
		a := mat.NewVecDense(n, nil)
		b := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			a.SetVec(i, rng.NormFloat64())
			b.SetVec(i, rng.NormFloat64())
		}
		loss, err := SquaredLoss(a, b)
		if err != nil {
			t.Fatalf("SquaredLoss: %v", err)
		}
		if loss <= 0 {
			t.Fatalf("expected positive loss for distinct vectors, got %f", loss)
		}
	}
}

func TestComputeGradientMatchesFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 20; trial++ {
		dim := 1 + rng.Intn(4)
		batch := randomBatch(rng, 1+rng.Intn(8), dim)
		p := randomParams(rng, dim)

		diff, err := CheckGradient(batch, p, 1e-4)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if diff < 0 {
			t.Fatalf("negative diff %g", diff)
		}
	}
}

func TestComputeGradientLossMatchesSquaredLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	batch := randomBatch(rng, 6, 2)
	p := randomParams(rng, 2)
	_, loss, err := ComputeGradient(batch, p)
	if err != nil {
		t.Fatalf("ComputeGradient: %v", err)
	}
	pred, _ := Predict(batch.X, p)
	want, _ := SquaredLoss(pred, batch.Y)
	if math.Abs(loss-want) > 1e-12 {
		t.Fatalf("loss %f want %f", loss, want)
	}
}

func TestComputeGradientRejectsMismatchedBatch(t *testing.T) {
	batch := Batch{X: mat.NewDense(3, 2, nil), Y: mat.NewVecDense(2, nil)}
	p := Params{W: mat.NewVecDense(2, nil)}
	if _, _, err := ComputeGradient(batch, p); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestParallelGradientMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	batch := randomBatch(rng, 13, 3)
	p := randomParams(rng, 3)

	want, wantLoss, err := ComputeGradient(batch, p)
	if err != nil {
		t.Fatalf("ComputeGradient: %v", err)
	}
	for _, workers := range []int{2, 3, 4, 13, 32} {
		m, err := NewLinear(p, 0.01, workers)
		if err != nil {
			t.Fatalf("NewLinear: %v", err)
		}
		got, loss, err := m.Gradient(batch)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if d := MaxAbsDiff(got, want); d > 1e-12 {
			t.Fatalf("workers=%d: gradient differs by %g", workers, d)
		}
		if math.Abs(loss-wantLoss) > 1e-12 {
			t.Fatalf("workers=%d: loss %f want %f", workers, loss, wantLoss)
		}
	}
}

func TestSGDStepDescends(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	for trial := 0; trial < 20; trial++ {
		batch := randomBatch(rng, 4, 2)
		m, err := NewLinear(randomParams(rng, 2), 0.01, 1)
		if err != nil {
			t.Fatalf("NewLinear: %v", err)
		}
		before, err := m.TrainStep(batch)
		if err != nil {
			t.Fatalf("TrainStep: %v", err)
		}
		_, after, err := ComputeGradient(batch, m.Params())
		if err != nil {
			t.Fatalf("ComputeGradient: %v", err)
		}
		if after > before {
			t.Fatalf("trial %d: loss rose from %f to %f", trial, before, after)
		}
	}
}

func TestSGDStepUpdatesInPlace(t *testing.T) {
	opt, err := NewSGD(0.5)
	if err != nil {
		t.Fatalf("NewSGD: %v", err)
	}
	p := Params{W: mat.NewVecDense(2, []float64{1, 1}), B: 1}
	g := Gradient{W: mat.NewVecDense(2, []float64{2, -4}), B: 1}
	if err := opt.Step(&p, g); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !floats.EqualApprox(p.Weights(), []float64{0, 3}, 1e-12) || p.B != 0.5 {
		t.Fatalf("unexpected params w=%v b=%f", p.Weights(), p.B)
	}
}

func TestNewSGDRejectsNonPositiveRate(t *testing.T) {
	for _, lr := range []float64{0, -0.001, math.NaN()} {
		if _, err := NewSGD(lr); !errors.Is(err, ErrInvalidLearningRate) {
			t.Fatalf("lr=%g: expected ErrInvalidLearningRate, got %v", lr, err)
		}
	}
}

func TestLeastSquaresRecoversPlane(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	rows := 50
	x := mat.NewDense(rows, 2, nil)
	y := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		y.SetVec(i, 2*a-3.4*b+4.2)
	}
	p, err := LeastSquares(x, y)
	if err != nil {
		t.Fatalf("LeastSquares: %v", err)
	}
	if !floats.EqualApprox(p.Weights(), []float64{2, -3.4}, 1e-9) || math.Abs(p.B-4.2) > 1e-9 {
		t.Fatalf("unexpected fit w=%v b=%f", p.Weights(), p.B)
	}
}

func TestLinearTrainStepReducesLoss(t *testing.T) {
	p, err := NewParams(2, 1)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	m, err := NewLinear(p, 0.1, 1)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	batch := Batch{
		X: mat.NewDense(2, 2, []float64{0.1, 0.2, 0.4, 0.3}),
		Y: mat.NewVecDense(2, []float64{1, 2}),
	}
	loss1, err := m.TrainStep(batch)
	if err != nil {
		t.Fatalf("TrainStep: %v", err)
	}
	loss2, err := m.TrainStep(batch)
	if err != nil {
		t.Fatalf("TrainStep: %v", err)
	}
	if loss2 > loss1 {
		t.Fatalf("expected loss to decrease; loss1=%f loss2=%f", loss1, loss2)
	}
}
