// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gan

import (
	"github.com/gomlx/gan1d/networks"
	"github.com/pkg/errors"
)

// Defaults for Config.
const (
	DefaultNumSteps  = 3000
	DefaultBatchSize = 12
	DefaultLogEvery  = 100
	DefaultRange     = 8.0
	DefaultSeed      = 42

	// DefaultLearningRate is the adversarial Adam learning rate.
	DefaultLearningRate = 1e-4
)

// Config holds every recognized training option.
type Config struct {
	// NumSteps of adversarial training.
	NumSteps int

	// BatchSize of every sampled batch.
	BatchSize int

	// Extragradient selects the lookahead update rule instead of plain
	// alternating descent.
	Extragradient bool

	// Minibatch enables the minibatch-discrimination layer in the
	// discriminator.
	Minibatch bool

	// LogEvery is the logging interval in steps.
	LogEvery int

	// CaptureFrames records a diagnostics frame every step, for animation.
	CaptureFrames bool

	// HiddenDim is the width of every hidden layer.
	HiddenDim int

	// NumKernels and KernelDim configure the minibatch-discrimination
	// layer.
	NumKernels int
	KernelDim  int

	// PretrainSteps of density-regression pretraining for the
	// discriminator. Zero disables pretraining.
	PretrainSteps int

	// LearningRate of the adversarial optimizers.
	LearningRate float64

	// Range is the half-width of the noise/diagnostics interval.
	Range float64

	// Seed for every random source (host sampling and weight
	// initialization).
	Seed uint64
}

// NewConfig returns a Config with the default hyperparameters.
func NewConfig() *Config {
	return &Config{
		NumSteps:     DefaultNumSteps,
		BatchSize:    DefaultBatchSize,
		LogEvery:     DefaultLogEvery,
		HiddenDim:    networks.DefaultHiddenDim,
		NumKernels:   networks.DefaultNumKernels,
		KernelDim:    networks.DefaultKernelDim,
		LearningRate: DefaultLearningRate,
		Range:        DefaultRange,
		Seed:         DefaultSeed,
	}
}

// Validate returns an error on non-sensical settings.
func (c *Config) Validate() error {
	if c.NumSteps < 0 || c.PretrainSteps < 0 {
		return errors.Errorf("step counts must be non-negative, got steps=%d pretrain=%d",
			c.NumSteps, c.PretrainSteps)
	}
	if c.BatchSize < 1 {
		return errors.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.LogEvery < 1 {
		return errors.Errorf("logging interval must be at least 1, got %d", c.LogEvery)
	}
	if c.HiddenDim < 1 || c.NumKernels < 1 || c.KernelDim < 1 {
		return errors.Errorf("network dimensions must be at least 1, got hidden=%d kernels=%d kernelDim=%d",
			c.HiddenDim, c.NumKernels, c.KernelDim)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning rate must be positive, got %g", c.LearningRate)
	}
	if c.Range <= 0 {
		return errors.Errorf("range must be positive, got %g", c.Range)
	}
	return nil
}

// pretrainLearningRate follows the original schedule: the minibatch layer
// requires a much lower rate to stay stable.
func (c *Config) pretrainLearningRate() float64 {
	if c.Minibatch {
		return 1e-4
	}
	return 5e-3
}
