package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/cpuid/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks configuration values that cannot describe a run.
var ErrInvalidConfig = errors.New("invalid configuration")

const defaultLogEvery = 500

// Config captures the runtime knobs for a training run.
type Config struct {
	NumSamples  int       `yaml:"num_samples"`
	NumFeatures int       `yaml:"num_features"`
	TrueWeights []float64 `yaml:"true_weights"`
	TrueBias    float64   `yaml:"true_bias"`
	NoiseStd    float64   `yaml:"noise_std"`

	BatchSize    int     `yaml:"batch_size"`
	Shuffle      bool    `yaml:"shuffle"`
	DropLast     bool    `yaml:"drop_last"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Smoothing    float64 `yaml:"smoothing"`

	Seed       int64 `yaml:"seed"`
	LogEvery   int   `yaml:"log_every"`
	NumWorkers int   `yaml:"num_workers"`
	GradCheck  bool  `yaml:"grad_check"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	NumSamples   int
	BatchSize    int
	Epochs       int
	LearningRate float64
	Smoothing    float64
	Seed         int64
	LogEvery     int
	NumWorkers   int
	NoShuffle    bool
	DropLast     bool
	GradCheck    bool
}

// Default returns the reference scenario: y = 2*x0 - 3.4*x1 + 4.2 plus
// Gaussian noise with standard deviation 0.01.
func Default() *Config {
	return &Config{
		NumSamples:   10000,
		NumFeatures:  2,
		TrueWeights:  []float64{2, -3.4},
		TrueBias:     4.2,
		NoiseStd:     0.01,
		BatchSize:    4,
		Shuffle:      true,
		Epochs:       2,
		LearningRate: 0.001,
		Smoothing:    0.01,
		Seed:         42,
		LogEvery:     defaultLogEvery,
		NumWorkers:   1,
	}
}

// Load reads a Config from YAML on top of Default and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.NumSamples > 0 {
		c.NumSamples = o.NumSamples
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Smoothing > 0 {
		c.Smoothing = o.Smoothing
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.NoShuffle {
		c.Shuffle = false
	}
	if o.DropLast {
		c.DropLast = true
	}
	if o.GradCheck {
		c.GradCheck = true
	}
}

// Validate verifies the config is runnable. Unset log_every and num_workers
// are filled in.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.NumSamples <= 0 {
		return fmt.Errorf("%w: num_samples must be > 0 (got %d)", ErrInvalidConfig, c.NumSamples)
	}
	if c.NumFeatures <= 0 {
		return fmt.Errorf("%w: num_features must be > 0 (got %d)", ErrInvalidConfig, c.NumFeatures)
	}
	if len(c.TrueWeights) != c.NumFeatures {
		return fmt.Errorf("%w: true_weights has %d entries, num_features is %d",
			ErrInvalidConfig, len(c.TrueWeights), c.NumFeatures)
	}
	if c.NoiseStd < 0 || math.IsNaN(c.NoiseStd) {
		return fmt.Errorf("%w: noise_std must be >= 0 (got %g)", ErrInvalidConfig, c.NoiseStd)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be > 0 (got %d)", ErrInvalidConfig, c.BatchSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be > 0 (got %d)", ErrInvalidConfig, c.Epochs)
	}
	if !(c.LearningRate > 0) {
		return fmt.Errorf("%w: learning_rate must be > 0 (got %g)", ErrInvalidConfig, c.LearningRate)
	}
	if !(c.Smoothing > 0 && c.Smoothing < 1) {
		return fmt.Errorf("%w: smoothing must be in (0, 1) (got %g)", ErrInvalidConfig, c.Smoothing)
	}
	if c.DropLast && c.BatchSize > c.NumSamples {
		return fmt.Errorf("%w: drop_last with batch_size %d > num_samples %d yields no batches",
			ErrInvalidConfig, c.BatchSize, c.NumSamples)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = defaultLogEvery
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = DefaultWorkers()
	}
	return nil
}

// DefaultWorkers is the number of physical cores, or 1 when cpuid cannot
// tell.
func DefaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return 1
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}
