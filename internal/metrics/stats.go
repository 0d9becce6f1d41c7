package metrics

import "time"

// Window accumulates per-batch timing and raw loss between two reports.
type Window struct {
	samples  int
	batches  int
	data     time.Duration
	compute  time.Duration
	lossSum  float64
	lastLoss float64
}

// Record adds one batch to the window.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, loss float64) {
	w.samples += batchSize
	w.batches++
	w.data += dataTime
	w.compute += computeTime
	w.lossSum += loss
	w.lastLoss = loss
}

// Snapshot summarises the window and clears it.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Batches: w.batches, LastLoss: w.lastLoss}
	if total := w.data + w.compute; total > 0 {
		snap.SamplesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.batches > 0 {
		n := float64(w.batches)
		snap.AvgDataMS = w.data.Seconds() * 1000 / n
		snap.AvgComputeMS = w.compute.Seconds() * 1000 / n
		snap.MeanLoss = w.lossSum / n
	}
	*w = Window{}
	return snap
}

// Snapshot is the loggable view of a Window.
type Snapshot struct {
	Batches       int
	SamplesPerSec float64
	AvgDataMS     float64
	AvgComputeMS  float64
	// MeanLoss is the unsmoothed average batch loss over the window.
	MeanLoss float64
	LastLoss float64
}
