// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gan

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func newTestConfig() *Config {
	config := NewConfig()
	config.NumSteps = 10
	config.LogEvery = 1
	return config
}

func newTestTrainer(t *testing.T, config *Config) *Trainer {
	trainer, err := NewTrainer(graphtest.BuildTestBackend(), config)
	require.NoError(t, err)
	trainer.LogWriter = &bytes.Buffer{}
	return trainer
}

// paramValues reads every parameter into host values, for deep comparison.
func paramValues(t *testing.T, params []*context.Variable) []any {
	values := make([]any, len(params))
	for i, v := range params {
		values[i] = v.MustValue().Value()
	}
	return values
}

func TestDiscriminatorStepDecreasesLossOnItsBatch(t *testing.T) {
	trainer := newTestTrainer(t, newTestConfig())
	x := trainer.data.Sample(trainer.config.BatchSize)
	z := trainer.noise.Sample(trainer.config.BatchSize)

	before, _, err := trainer.Losses(x, z)
	require.NoError(t, err)
	_, err = trainer.trainDiscExec.Exec(trainer.batch(x), trainer.batch(z))
	require.NoError(t, err)
	after, _, err := trainer.Losses(x, z)
	require.NoError(t, err)

	assert.Less(t, after, before,
		"a discriminator update must decrease its loss on the batch it was computed from")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	trainer := newTestTrainer(t, newTestConfig())
	params := trainer.dOpt.Params(trainer.ctx)
	require.NotEmpty(t, params)

	before := paramValues(t, params)
	snap, err := snapshotParams(params)
	require.NoError(t, err)

	_, _, err = trainer.StandardStep()
	require.NoError(t, err)
	require.NotEqual(t, before, paramValues(t, params))

	require.NoError(t, restoreParams(params, snap))
	assert.Equal(t, before, paramValues(t, params))
}

func TestExtragradientDiffersFromTrialStep(t *testing.T) {
	config := newTestConfig()
	config.Extragradient = true
	trainer := newTestTrainer(t, config)
	params := trainer.dOpt.Params(trainer.ctx)

	initial := paramValues(t, params)

	// Replay the lookahead sequence by hand, capturing the trial point the
	// full step discards.
	snap, err := snapshotParams(params)
	require.NoError(t, err)
	gSnap, err := snapshotParams(trainer.gOpt.Params(trainer.ctx))
	require.NoError(t, err)

	b := trainer.config.BatchSize
	x := trainer.data.Sample(b)
	z := trainer.noise.Sample(b)
	grads, err := trainer.gradients(x, z)
	require.NoError(t, err)
	_, _, err = trainer.applyGradients(x, z, grads)
	require.NoError(t, err)
	trial := paramValues(t, params)

	x = trainer.data.Sample(b)
	z = trainer.noise.Sample(b)
	lookahead, err := trainer.gradients(x, z)
	require.NoError(t, err)
	require.NoError(t, restoreParams(params, snap))
	require.NoError(t, restoreParams(trainer.gOpt.Params(trainer.ctx), gSnap))
	_, _, err = trainer.applyGradients(x, z, lookahead)
	require.NoError(t, err)
	final := paramValues(t, params)

	assert.NotEqual(t, initial, final, "the step must move the parameters")
	assert.NotEqual(t, trial, final,
		"the final point must differ from the trial point: the lookahead gradients apply to the restored parameters")
}

func TestExtragradientStepDeterminism(t *testing.T) {
	config := newTestConfig()
	config.Extragradient = true

	run := func() ([]any, float64, float64) {
		trainer := newTestTrainer(t, config)
		lossD, lossG, err := trainer.ExtragradientStep()
		require.NoError(t, err)
		return paramValues(t, trainer.dOpt.Params(trainer.ctx)), lossD, lossG
	}
	params1, lossD1, lossG1 := run()
	params2, lossD2, lossG2 := run()

	assert.Equal(t, lossD1, lossD2)
	assert.Equal(t, lossG1, lossG2)
	assert.Equal(t, params1, params2)
}

func TestPretrainWeightTransfer(t *testing.T) {
	config := newTestConfig()
	config.PretrainSteps = 5
	trainer := newTestTrainer(t, config)

	require.NoError(t, trainer.pretrain())

	src := trainer.preOpt.Params(trainer.ctx)
	dst := trainer.dOpt.Params(trainer.ctx)
	require.NotEmpty(t, src)
	require.Len(t, dst, len(src))
	assert.Equal(t, paramValues(t, src), paramValues(t, dst))
}

func TestRunLogsEveryStepWithFiniteLosses(t *testing.T) {
	for _, extragradient := range []bool{false, true} {
		name := "standard"
		if extragradient {
			name = "extragradient"
		}
		t.Run(name, func(t *testing.T) {
			config := newTestConfig()
			config.Extragradient = extragradient
			trainer := newTestTrainer(t, config)
			var log bytes.Buffer
			trainer.LogWriter = &log

			require.NoError(t, trainer.Run())

			lines := strings.Split(strings.TrimRight(log.String(), "\n"), "\n")
			require.Len(t, lines, config.NumSteps)
			for i, line := range lines {
				var step int
				var lossD, lossG float64
				_, err := fmt.Sscanf(line, "%d: %g\t%g", &step, &lossD, &lossG)
				require.NoError(t, err, "line %q", line)
				assert.Equal(t, i, step)
				assert.True(t, isFinite(lossD), "lossD %v at step %d", lossD, step)
				assert.True(t, isFinite(lossG), "lossG %v at step %d", lossG, step)
			}
		})
	}
}

func TestSampleDiagnostics(t *testing.T) {
	config := newTestConfig()
	config.Minibatch = true
	trainer := newTestTrainer(t, config)

	// 25 points with batch size 12 exercises the padded final chunk.
	const points, bins = 25, 10
	frame, err := trainer.SampleDiagnostics(points, bins)
	require.NoError(t, err)

	require.Len(t, frame.Boundary, points)
	require.Len(t, frame.RealDensity, bins)
	require.Len(t, frame.GeneratedDensity, bins)
	for _, v := range frame.Boundary {
		assert.True(t, isFinite(v))
		assert.GreaterOrEqual(t, v, 0.0, "scores pass through a final ReLU")
	}

	// The real density integrates to one over the range: all modes of the
	// target lie inside [-Range, Range].
	width := 2 * config.Range / float64(bins)
	var mass float64
	for _, d := range frame.RealDensity {
		assert.GreaterOrEqual(t, d, 0.0)
		mass += d * width
	}
	assert.InDelta(t, 1.0, mass, 1e-9)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, NewConfig().Validate())

	bad := NewConfig()
	bad.BatchSize = 0
	require.Error(t, bad.Validate())

	bad = NewConfig()
	bad.LearningRate = -1
	require.Error(t, bad.Validate())

	bad = NewConfig()
	bad.LogEvery = 0
	require.Error(t, bad.Validate())
}
