// Package scnn describes the configuration of a spherical CNN experiment and
// the model contract the experiment runner trains against.
//
// The graph convolution network itself lives outside this module; Readout is
// a reference backend that honours the same contract.
package scnn

import (
	"fmt"

	"github.com/YuminosukeSato/scnnexp/pkg/errors"
)

// Config holds every hyperparameter of one experiment. It is the mutable
// input of NewParams; models only ever see the resulting Params.
type Config struct {
	DirName    string
	Conv       string
	Pool       string
	Activation string
	Statistics string // "" は統計層なし

	Nsides []int

	NumEpochs      int
	BatchSize      int
	F              []int
	K              []int
	BatchNorm      []bool
	Regularization float64
	M              []int

	DecayRate    float64
	Dropout      float64 // keep probability
	LearningRate float64
	Momentum     float64
	Adam         bool
	DecaySteps   float64
	Use4         bool

	EvalFrequency int
}

func (c Config) clone() Config {
	c.Nsides = append([]int(nil), c.Nsides...)
	c.F = append([]int(nil), c.F...)
	c.K = append([]int(nil), c.K...)
	c.BatchNorm = append([]bool(nil), c.BatchNorm...)
	c.M = append([]int(nil), c.M...)
	return c
}

// Params is the frozen configuration of one experiment. The zero value is
// not usable; build it with NewParams.
type Params struct {
	cfg     Config
	indexes []LevelIndexes
	order   int
}

// NewParams validates cfg and freezes a copy of it. order is the HEALPix
// subdivision order the per-level pixel indexes are computed for.
func NewParams(cfg Config, order int) (Params, error) {
	if cfg.DirName == "" {
		return Params{}, errors.NewValidationError("dir_name", "must not be empty", cfg.DirName)
	}
	if len(cfg.Nsides) == 0 {
		return Params{}, errors.NewValidationError("nsides", "at least one resolution is required", cfg.Nsides)
	}
	if len(cfg.F) != len(cfg.K) || len(cfg.F) != len(cfg.BatchNorm) {
		return Params{}, errors.NewValidationError("F",
			fmt.Sprintf("F, K and batch_norm must have the same length (%d, %d, %d)", len(cfg.F), len(cfg.K), len(cfg.BatchNorm)),
			cfg.F)
	}
	if len(cfg.Nsides) != len(cfg.F) {
		return Params{}, errors.NewValidationError("nsides",
			fmt.Sprintf("one resolution per graph convolution layer is required (got %d for %d layers)", len(cfg.Nsides), len(cfg.F)),
			cfg.Nsides)
	}
	if len(cfg.M) == 0 || cfg.M[len(cfg.M)-1] < 2 {
		return Params{}, errors.NewValidationError("M", "the last fully connected layer must have at least two classes", cfg.M)
	}
	if cfg.NumEpochs <= 0 || cfg.BatchSize <= 0 {
		return Params{}, errors.NewValidationError("batch_size", "num_epochs and batch_size must be positive", cfg.BatchSize)
	}
	if cfg.EvalFrequency < 0 {
		return Params{}, errors.NewValidationError("eval_frequency", "must not be negative", cfg.EvalFrequency)
	}
	if cfg.Dropout <= 0 || cfg.Dropout > 1 {
		return Params{}, errors.NewValidationError("dropout", "keep probability must be in (0, 1]", cfg.Dropout)
	}

	indexes, err := Nside2Indexes(cfg.Nsides, order)
	if err != nil {
		return Params{}, err
	}

	return Params{cfg: cfg.clone(), indexes: indexes, order: order}, nil
}

// Config returns a copy of the configuration; changing it does not affect p.
func (p Params) Config() Config {
	return p.cfg.clone()
}

// DirName is the directory name used under summaries/ and checkpoints/.
func (p Params) DirName() string { return p.cfg.DirName }

// Order returns the HEALPix subdivision order.
func (p Params) Order() int { return p.order }

// Nsides returns a copy of the per-layer resolutions.
func (p Params) Nsides() []int {
	return append([]int(nil), p.cfg.Nsides...)
}

// Indexes returns a copy of the per-layer pixel index descriptors.
func (p Params) Indexes() []LevelIndexes {
	return append([]LevelIndexes(nil), p.indexes...)
}

// NumClasses is the width of the last fully connected layer.
func (p Params) NumClasses() int {
	return p.cfg.M[len(p.cfg.M)-1]
}

// InputSize is the number of pixels of one sample at the finest resolution.
func (p Params) InputSize() int {
	return p.indexes[0].Count
}
