package model

import "gonum.org/v1/gonum/mat"

// Batch represents a minibatch of feature rows and their targets.
type Batch struct {
	X *mat.Dense
	Y *mat.VecDense
	// Index holds the dataset row of each batch row.
	Index []int
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int {
	if b.Y == nil {
		return 0
	}
	return b.Y.Len()
}

// Model defines the minimal training functionality required by the trainer.
type Model interface {
	TrainStep(batch Batch) (float64, error)
	Params() Params
}

var _ Model = (*Linear)(nil)
