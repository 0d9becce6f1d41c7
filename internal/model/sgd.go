package model

import (
	"errors"
	"fmt"
)

// ErrInvalidLearningRate is returned for a learning rate that is not > 0.
var ErrInvalidLearningRate = errors.New("learning rate must be > 0")

// SGD is stochastic gradient descent with a fixed step size.
type SGD struct {
	LearningRate float64
}

// NewSGD validates lr and returns the optimizer.
func NewSGD(lr float64) (*SGD, error) {
	if !(lr > 0) {
		return nil, fmt.Errorf("%w (got %g)", ErrInvalidLearningRate, lr)
	}
	return &SGD{LearningRate: lr}, nil
}

// Step updates p in place: param -= lr * grad.
func (o *SGD) Step(p *Params, g Gradient) error {
	if g.W == nil || g.W.Len() != p.Dim() {
		return fmt.Errorf("%w: gradient does not match %d weights", ErrShapeMismatch, p.Dim())
	}
	p.W.AddScaledVec(p.W, -o.LearningRate, g.W)
	p.B -= o.LearningRate * g.B
	return nil
}
