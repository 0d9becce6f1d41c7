package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"linreg-forge/internal/model"
)

// ErrInvalidOptions indicates generator or iterator options that cannot
// produce data.
var ErrInvalidOptions = errors.New("dataset: invalid options")

// Dataset is an immutable set of feature rows and scalar targets.
type Dataset struct {
	X *mat.Dense
	Y *mat.VecDense
}

// GenerateOptions configures the synthetic generator.
type GenerateOptions struct {
	NumSamples  int
	NumFeatures int
	TrueWeights []float64
	TrueBias    float64
	NoiseStd    float64
	Seed        int64
}

// Generate draws NumSamples standard normal feature rows and targets
// y = x·TrueWeights + TrueBias + N(0, NoiseStd²). The same seed always yields
// the same dataset.
func Generate(opts GenerateOptions) (*Dataset, error) {
	if opts.NumSamples <= 0 {
		return nil, fmt.Errorf("%w: num samples must be > 0 (got %d)", ErrInvalidOptions, opts.NumSamples)
	}
	if opts.NumFeatures <= 0 {
		return nil, fmt.Errorf("%w: num features must be > 0 (got %d)", ErrInvalidOptions, opts.NumFeatures)
	}
	if len(opts.TrueWeights) != opts.NumFeatures {
		return nil, fmt.Errorf("%w: %d true weights for %d features",
			model.ErrShapeMismatch, len(opts.TrueWeights), opts.NumFeatures)
	}
	if opts.NoiseStd < 0 {
		return nil, fmt.Errorf("%w: noise std must be >= 0 (got %g)", ErrInvalidOptions, opts.NoiseStd)
	}

	n, d := opts.NumSamples, opts.NumFeatures
	rng := rand.New(rand.NewSource(opts.Seed))

	features := make([]float64, n*d)
	for i := range features {
		features[i] = rng.NormFloat64()
	}
	x := mat.NewDense(n, d, features)

	y := mat.NewVecDense(n, nil)
	y.MulVec(x, mat.NewVecDense(d, append([]float64(nil), opts.TrueWeights...)))
	for i := 0; i < n; i++ {
		y.SetVec(i, y.AtVec(i)+opts.TrueBias+rng.NormFloat64()*opts.NoiseStd)
	}

	return &Dataset{X: x, Y: y}, nil
}

// Len returns the number of samples.
func (ds *Dataset) Len() int {
	return ds.Y.Len()
}

// Dim returns the feature dimensionality.
func (ds *Dataset) Dim() int {
	_, d := ds.X.Dims()
	return d
}

// Batch copies the rows at indices into a new batch.
func (ds *Dataset) Batch(indices []int) (model.Batch, error) {
	if len(indices) == 0 {
		return model.Batch{}, fmt.Errorf("%w: empty index list", ErrInvalidOptions)
	}
	d := ds.Dim()
	x := mat.NewDense(len(indices), d, nil)
	y := mat.NewVecDense(len(indices), nil)
	for row, idx := range indices {
		if idx < 0 || idx >= ds.Len() {
			return model.Batch{}, fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidOptions, idx, ds.Len())
		}
		x.SetRow(row, ds.X.RawRowView(idx))
		y.SetVec(row, ds.Y.AtVec(idx))
	}
	return model.Batch{X: x, Y: y, Index: append([]int(nil), indices...)}, nil
}

// TargetStats returns the mean and standard deviation of the targets.
func (ds *Dataset) TargetStats() (mean, std float64) {
	return stat.MeanStdDev(ds.Y.RawVector().Data, nil)
}
