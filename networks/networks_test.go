// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	_ "github.com/gomlx/gomlx/backends/default"
)

func newTestContext() *context.Context {
	ctx := context.New()
	return ctx.Checked(false).
		WithInitializer(Orthogonal(rand.New(rand.NewSource(42)), OrthogonalGain))
}

func batchOf(values []float32) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(values, len(values), 1)
}

func TestGeneratorShape(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := newTestContext()
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, z *Node) *Node {
		return Generator(ctx.In("gen"), z, DefaultHiddenDim)
	})
	require.NoError(t, err)
	out, err := exec.Exec(batchOf(make([]float32, 12)))
	require.NoError(t, err)
	require.Equal(t, []int{12, 1}, out[0].Shape().Dimensions)
}

func TestDiscriminatorShapeAndSharing(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := newTestContext()
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
		return Discriminator(ctx.In("disc"), x, DefaultHiddenDim, DefaultNumKernels, DefaultKernelDim, false)
	})
	require.NoError(t, err)
	out, err := exec.Exec(batchOf(make([]float32, 12)))
	require.NoError(t, err)
	require.Equal(t, []int{12, 1}, out[0].Shape().Dimensions)

	// A second invocation against the same scope reuses the parameters:
	// the variable count must not grow.
	numVars := ctx.NumVariables()
	_, err = exec.Exec(batchOf(make([]float32, 12)))
	require.NoError(t, err)
	assert.Equal(t, numVars, ctx.NumVariables())
}

func TestMinibatchFeatureWidth(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := newTestContext()
	const (
		batchSize  = 4
		inputDim   = 8
		numKernels = 5
		kernelDim  = 3
	)
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
		return MinibatchFeatures(ctx.In("minibatch"), x, numKernels, kernelDim)
	})
	require.NoError(t, err)
	input := tensors.FromFlatDataAndDimensions(make([]float32, batchSize*inputDim), batchSize, inputDim)
	out, err := exec.Exec(input)
	require.NoError(t, err)
	require.Equal(t, []int{batchSize, inputDim + numKernels}, out[0].Shape().Dimensions)
}

func TestMinibatchSingleExampleSelfTerm(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := newTestContext()
	const (
		inputDim   = 8
		numKernels = 5
		kernelDim  = 3
	)
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
		return MinibatchFeatures(ctx.In("minibatch"), x, numKernels, kernelDim)
	})
	require.NoError(t, err)

	// With a batch of one, each kernel feature is the closeness of the
	// example to itself: exp(-0) == 1.
	input := make([]float32, inputDim)
	for i := range input {
		input[i] = float32(i) * 0.1
	}
	out, err := exec.Exec(tensors.FromFlatDataAndDimensions(input, 1, inputDim))
	require.NoError(t, err)
	row := out[0].Value().([][]float32)[0]
	require.Len(t, row, inputDim+numKernels)
	for k := 0; k < numKernels; k++ {
		assert.InDelta(t, 1.0, row[inputDim+k], 1e-5)
	}
}

func TestMinibatchBatchOrderInvariance(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := newTestContext()
	const (
		batchSize = 3
		inputDim  = 4
	)
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
		return MinibatchFeatures(ctx.In("minibatch"), x, DefaultNumKernels, DefaultKernelDim)
	})
	require.NoError(t, err)

	input := [][]float32{
		{0.1, -0.2, 0.3, 0.4},
		{1.0, 2.0, -1.0, 0.5},
		{-0.7, 0.0, 0.2, 0.9},
	}
	flat := func(rows [][]float32) *tensors.Tensor {
		data := make([]float32, 0, batchSize*inputDim)
		for _, r := range rows {
			data = append(data, r...)
		}
		return tensors.FromFlatDataAndDimensions(data, batchSize, inputDim)
	}
	out, err := exec.Exec(flat(input))
	require.NoError(t, err)
	original := out[0].Value().([][]float32)

	// Reversing the batch must reverse the output rows, nothing else.
	reversed := [][]float32{input[2], input[1], input[0]}
	out, err = exec.Exec(flat(reversed))
	require.NoError(t, err)
	swapped := out[0].Value().([][]float32)
	for i := 0; i < batchSize; i++ {
		assert.InDeltaSlice(t, original[i], swapped[batchSize-1-i], 1e-5)
	}
}

func TestOrthogonalInitializer(t *testing.T) {
	backend := graphtest.BuildTestBackend()

	// Square, before the gain: Wᵀ W == I.
	const dim = 32
	w := orthogonalMatrix(rand.New(rand.NewSource(42)), dim, dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			var dot float64
			for k := 0; k < dim; k++ {
				dot += w[k*dim+i] * w[k*dim+j]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, dot, 1e-9)
		}
	}

	// Biases (rank 1) initialize to zero, weights to the scaled matrix.
	ctx := context.New().Checked(false).
		WithInitializer(Orthogonal(rand.New(rand.NewSource(42)), OrthogonalGain))
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, x *Node) *Node {
		return Generator(ctx.In("gen"), x, DefaultHiddenDim)
	})
	require.NoError(t, err)
	_, err = exec.Exec(batchOf(make([]float32, 2)))
	require.NoError(t, err)

	biases := ctx.GetVariableByScopeAndName("/gen/g0/dense", "biases")
	require.NotNil(t, biases)
	for _, b := range biases.MustValue().Value().([]float32) {
		assert.Zero(t, b)
	}
	weights := ctx.GetVariableByScopeAndName("/gen/g0/dense", "weights")
	require.NotNil(t, weights)
	require.Equal(t, []int{1, DefaultHiddenDim}, weights.Shape().Dimensions)
}
