package metrics

// SmoothedLoss is an exponential moving average of batch losses started at
// zero, read through a bias-corrected estimate.
type SmoothedLoss struct {
	alpha  float64
	moving float64
	weight float64
	est    float64
	iter   int
}

// NewSmoothedLoss returns an average with smoothing constant alpha in (0, 1).
func NewSmoothedLoss(alpha float64) *SmoothedLoss {
	return &SmoothedLoss{alpha: alpha}
}

// Update folds loss into the average and returns the corrected estimate.
func (s *SmoothedLoss) Update(loss float64) float64 {
	s.iter++
	s.moving = (1-s.alpha)*s.moving + s.alpha*loss
	// weight tracks 1 - (1-alpha)^iter with the same recurrence as moving.
	// Updating est incrementally keeps est == moving/weight while making the
	// first estimate exactly the first loss.
	s.weight = (1-s.alpha)*s.weight + s.alpha
	s.est += s.alpha / s.weight * (loss - s.est)
	return s.est
}

// Estimate is moving / (1 - (1-alpha)^iter), or 0 before the first update.
func (s *SmoothedLoss) Estimate() float64 {
	return s.est
}

// Moving returns the uncorrected average.
func (s *SmoothedLoss) Moving() float64 {
	return s.moving
}

// Iter returns the number of updates so far.
func (s *SmoothedLoss) Iter() int {
	return s.iter
}
