package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"linreg-forge/internal/dataset"
	"linreg-forge/internal/metrics"
	"linreg-forge/internal/model"
)

const defaultLogEvery = 500

// gradTolerance bounds the analytic vs finite-difference gradient gap.
const gradTolerance = 1e-4

// State is the position of the trainer in its run.
type State int

const (
	NotStarted State = iota
	EpochInProgress
	EpochComplete
	TrainingComplete
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case EpochInProgress:
		return "epoch_in_progress"
	case EpochComplete:
		return "epoch_complete"
	case TrainingComplete:
		return "training_complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Epochs       int
	BatchSize    int
	Shuffle      bool
	DropLast     bool
	LearningRate float64
	Smoothing    float64
	Seed         int64
	LogEvery     int
	NumWorkers   int
	GradCheck    bool

	// OnReport, if set, receives every report as it is produced.
	OnReport func(Report)
}

// Report is the smoothed loss after Batch batches of Epoch (both 1-based).
// Iter counts batches across the whole run.
type Report struct {
	Epoch        int
	Batch        int
	Iter         int
	SmoothedLoss float64
}

// Result is what a run leaves behind.
type Result struct {
	Params       model.Params
	Reports      []Report
	EpochLosses  []float64
	Iterations   int
	SmoothedLoss float64
}

// Trainer owns the parameters and the smoothing state for one run.
type Trainer struct {
	cfg    RunConfig
	ds     *dataset.Dataset
	it     *dataset.Iterator
	mdl    model.Model
	smooth *metrics.SmoothedLoss
	window metrics.Window
	state  State

	reports     []Report
	epochLosses []float64
}

// New validates cfg and prepares a trainer over ds.
func New(ds *dataset.Dataset, cfg RunConfig) (*Trainer, error) {
	if ds == nil {
		return nil, errors.New("trainer: dataset is nil")
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("trainer: epochs must be > 0 (got %d)", cfg.Epochs)
	}
	if !(cfg.Smoothing > 0 && cfg.Smoothing < 1) {
		return nil, fmt.Errorf("trainer: smoothing must be in (0, 1) (got %g)", cfg.Smoothing)
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = defaultLogEvery
	}

	it, err := dataset.NewIterator(ds, dataset.IteratorOptions{
		BatchSize: cfg.BatchSize,
		Shuffle:   cfg.Shuffle,
		DropLast:  cfg.DropLast,
		Seed:      cfg.Seed + 2,
	})
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}

	params, err := model.NewParams(ds.Dim(), cfg.Seed+1)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	mdl, err := model.NewLinear(params, cfg.LearningRate, cfg.NumWorkers)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}

	return &Trainer{
		cfg:    cfg,
		ds:     ds,
		it:     it,
		mdl:    mdl,
		smooth: metrics.NewSmoothedLoss(cfg.Smoothing),
		state:  NotStarted,
	}, nil
}

// Run builds a trainer and executes the whole training workload.
func Run(ctx context.Context, ds *dataset.Dataset, cfg RunConfig) (Result, error) {
	t, err := New(ds, cfg)
	if err != nil {
		return Result{}, err
	}
	return t.Run(ctx)
}

// State reports where the trainer is.
func (t *Trainer) State() State {
	return t.state
}

// Params returns a copy of the current parameters.
func (t *Trainer) Params() model.Params {
	return t.mdl.Params()
}

// Run trains for the configured number of epochs. When ctx is cancelled the
// loop stops between batches and returns ctx.Err() alongside the partial
// result.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	if t.state != NotStarted {
		return t.result(), fmt.Errorf("trainer: already ran (state %s)", t.state)
	}

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		t.it.Reset()
		for batchNum := 1; ; batchNum++ {
			select {
			case <-ctx.Done():
				return t.result(), ctx.Err()
			default:
			}

			startData := time.Now()
			batch, ok := t.it.Next()
			if !ok {
				break
			}
			dataTime := time.Since(startData)
			t.state = EpochInProgress

			if t.cfg.GradCheck && t.smooth.Iter() == 0 {
				diff, err := model.CheckGradient(batch, t.mdl.Params(), gradTolerance)
				if err != nil {
					return t.result(), fmt.Errorf("trainer: %w", err)
				}
				log.Printf("grad_check max_abs_diff=%.3g", diff)
			}

			startCompute := time.Now()
			loss, err := t.mdl.TrainStep(batch)
			if err != nil {
				return t.result(), fmt.Errorf("trainer: epoch %d batch %d: %w", epoch, batchNum, err)
			}
			computeTime := time.Since(startCompute)

			est := t.smooth.Update(loss)
			t.window.Record(batch.Len(), dataTime, computeTime, loss)

			if batchNum%t.cfg.LogEvery == 0 {
				t.report(Report{Epoch: epoch, Batch: batchNum, Iter: t.smooth.Iter(), SmoothedLoss: est})
			}
		}
		t.state = EpochComplete

		epochLoss, err := t.datasetLoss()
		if err != nil {
			return t.result(), fmt.Errorf("trainer: epoch %d: %w", epoch, err)
		}
		t.epochLosses = append(t.epochLosses, epochLoss)
		log.Printf("epoch=%d iter=%d loss=%.6f smoothed_loss=%.6f",
			epoch, t.smooth.Iter(), epochLoss, t.smooth.Estimate())
	}

	t.state = TrainingComplete
	return t.result(), nil
}

func (t *Trainer) report(r Report) {
	snap := t.window.Snapshot()
	log.Printf("epoch=%d batch=%d iter=%d smoothed_loss=%.6f window_loss=%.6f samples_per_sec=%.1f data_ms=%.3f compute_ms=%.3f",
		r.Epoch,
		r.Batch,
		r.Iter,
		r.SmoothedLoss,
		snap.MeanLoss,
		snap.SamplesPerSec,
		snap.AvgDataMS,
		snap.AvgComputeMS,
	)
	t.reports = append(t.reports, r)
	if t.cfg.OnReport != nil {
		t.cfg.OnReport(r)
	}
}

func (t *Trainer) datasetLoss() (float64, error) {
	pred, err := model.Predict(t.ds.X, t.mdl.Params())
	if err != nil {
		return 0, err
	}
	return model.SquaredLoss(pred, t.ds.Y)
}

func (t *Trainer) result() Result {
	return Result{
		Params:       t.mdl.Params(),
		Reports:      append([]Report(nil), t.reports...),
		EpochLosses:  append([]float64(nil), t.epochLosses...),
		Iterations:   t.smooth.Iter(),
		SmoothedLoss: t.smooth.Estimate(),
	}
}
