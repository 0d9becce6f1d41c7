package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/klauspost/cpuid/v2"

	"linreg-forge/internal/config"
	"linreg-forge/internal/dataset"
	"linreg-forge/internal/model"
	"linreg-forge/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/demo.yaml", "Path to YAML config")
	numSamples := flag.Int("num-samples", 0, "Number of synthetic samples")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	lr := flag.Float64("lr", 0, "Learning rate")
	smoothing := flag.Float64("smoothing", 0, "Loss smoothing constant")
	numWorkers := flag.Int("num-workers", 0, "Number of gradient workers")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log every N batches")
	noShuffle := flag.Bool("no-shuffle", false, "Keep natural sample order")
	dropLast := flag.Bool("drop-last", false, "Drop a final short batch")
	gradCheck := flag.Bool("grad-check", false, "Verify the gradient on the first batch")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		NumSamples:   *numSamples,
		BatchSize:    *batchSize,
		Epochs:       *epochs,
		LearningRate: *lr,
		Smoothing:    *smoothing,
		Seed:         *seed,
		LogEvery:     *logEvery,
		NumWorkers:   *numWorkers,
		NoShuffle:    *noShuffle,
		DropLast:     *dropLast,
		GradCheck:    *gradCheck,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("cpu=%q physical_cores=%d logical_cores=%d workers=%d",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cfg.NumWorkers)

	ds, err := dataset.Generate(dataset.GenerateOptions{
		NumSamples:  cfg.NumSamples,
		NumFeatures: cfg.NumFeatures,
		TrueWeights: cfg.TrueWeights,
		TrueBias:    cfg.TrueBias,
		NoiseStd:    cfg.NoiseStd,
		Seed:        cfg.Seed,
	})
	if err != nil {
		log.Fatalf("generate dataset: %v", err)
	}
	mean, std := ds.TargetStats()
	log.Printf("samples=%d features=%d target_mean=%.4f target_std=%.4f", ds.Len(), ds.Dim(), mean, std)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg := trainer.RunConfig{
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		Shuffle:      cfg.Shuffle,
		DropLast:     cfg.DropLast,
		LearningRate: cfg.LearningRate,
		Smoothing:    cfg.Smoothing,
		Seed:         cfg.Seed,
		LogEvery:     cfg.LogEvery,
		NumWorkers:   cfg.NumWorkers,
		GradCheck:    cfg.GradCheck,
	}

	res, err := trainer.Run(ctx, ds, runCfg)
	if errors.Is(err, context.Canceled) {
		log.Printf("interrupted after %d batches", res.Iterations)
	} else if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	log.Printf("learned w=%v b=%.6f", res.Params.Weights(), res.Params.B)
	log.Printf("true    w=%v b=%.6f", cfg.TrueWeights, cfg.TrueBias)

	if ols, err := model.LeastSquares(ds.X, ds.Y); err != nil {
		log.Printf("least squares baseline unavailable: %v", err)
	} else {
		log.Printf("least squares w=%v b=%.6f", ols.Weights(), ols.B)
	}
}
