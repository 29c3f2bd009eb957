// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package networks builds the generator and discriminator computation
// graphs of the 1D adversarial model.
//
// Both networks are small MLPs over scalar inputs, built with layers.Dense
// on context scopes: the discriminator is invoked twice per training step
// (once on real data, once on generated data) against the same scope, so
// the two call sites share one parameter set.
package networks

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// Default network dimensions.
const (
	// DefaultHiddenDim is the width of the hidden layers.
	DefaultHiddenDim = 32

	// DefaultNumKernels and DefaultKernelDim configure the
	// minibatch-discrimination layer.
	DefaultNumKernels = 5
	DefaultKernelDim  = 3
)

// Generator maps a (batch, 1) noise tensor to a (batch, 1) tensor of
// generated samples: two ReLU hidden layers and a linear scalar output.
func Generator(ctx *context.Context, z *Node, hiddenDim int) *Node {
	h0 := activations.Relu(layers.Dense(ctx.In("g0"), z, true, hiddenDim))
	h1 := activations.Relu(layers.Dense(ctx.In("g1"), h0, true, hiddenDim))
	return layers.Dense(ctx.In("g2"), h1, true, 1)
}

// Discriminator scores a (batch, 1) input with a single (batch, 1) value.
//
// Two ReLU hidden layers are followed by either the minibatch-discrimination
// layer or, when disabled, one more ReLU layer of the same width as a
// capacity substitute: without batch-level features the network needs the
// extra layer to separate the two distributions. The output layer is ReLU,
// so the score is non-negative but unbounded above; the loss is responsible
// for keeping its logs finite.
func Discriminator(ctx *context.Context, x *Node, hiddenDim, numKernels, kernelDim int, minibatch bool) *Node {
	h0 := activations.Relu(layers.Dense(ctx.In("d0"), x, true, hiddenDim))
	h1 := activations.Relu(layers.Dense(ctx.In("d1"), h0, true, hiddenDim))
	var h2 *Node
	if minibatch {
		h2 = MinibatchFeatures(ctx.In("minibatch"), h1, numKernels, kernelDim)
	} else {
		h2 = activations.Relu(layers.Dense(ctx.In("d2"), h1, true, hiddenDim))
	}
	return activations.Relu(layers.Dense(ctx.In("d3"), h2, true, 1))
}
