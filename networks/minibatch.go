// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// MinibatchFeatures appends minibatch-discrimination features to x,
// following "Improved Techniques for Training GANs" (Salimans et al., 2016).
//
// The (batch, dim) input is projected to numKernels×kernelDim values per
// example. For every pair of examples the L1 distance between their kernel
// vectors is passed through a negative exponential, and these closeness
// scores are summed over the batch, yielding one extra feature per kernel.
// The result, shape (batch, dim+numKernels), gives the discriminator a
// batch-relative signal: a generator collapsed onto a single mode produces
// examples that are all close to each other, which no per-example feature
// can reveal.
//
// The sum runs over every example including the example itself (the
// self-term contributes exp(0) == 1 per kernel), so the output is invariant
// to batch order and every step is differentiable.
func MinibatchFeatures(ctx *context.Context, x *Node, numKernels, kernelDim int) *Node {
	batchSize := x.Shape().Dimensions[0]
	projected := layers.Dense(ctx, x, true, numKernels*kernelDim)
	kernels := Reshape(projected, batchSize, numKernels, kernelDim)

	// Pairwise differences: (batch, kernels, dims, 1) - (1, kernels, dims, batch)
	// broadcasts to (batch, kernels, dims, batch).
	diffs := Sub(
		InsertAxes(kernels, -1),
		InsertAxes(TransposeAllDims(kernels, 1, 2, 0), 0))
	l1 := ReduceSum(Abs(diffs), 2)          // (batch, kernels, batch)
	closeness := ReduceSum(Exp(Neg(l1)), 2) // (batch, kernels)
	return Concatenate([]*Node{x, closeness}, -1)
}
