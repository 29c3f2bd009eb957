// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gan

import (
	"fmt"
	"sort"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	initializer "github.com/gomlx/gomlx/pkg/ml/context/initializers"
)

// Adam hyperparameters shared by every parameter set. The low first-moment
// decay follows the adversarial-training setup of the original model.
const (
	AdamBeta1   = 0.5
	AdamBeta2   = 0.999
	AdamEpsilon = 1e-8

	// optimizerStateScope is where moment variables and step counters
	// live, outside every bound parameter scope.
	optimizerStateScope = "/optimizers"
)

// ScopedAdam is an Adam optimizer bound to one named parameter set: the
// trainable variables under a single context scope. Each scope (pretrain,
// discriminator, generator) gets its own adapter with independent moment
// state, and only that adapter ever updates the scope's parameters.
//
// It supports both usage modes the training loops need: MinimizeGraph
// computes and applies in one graph (standard loop), while GradientsGraph
// and ApplyGraph separate the two so gradients can be applied after a
// parameter restore (extragradient loop).
type ScopedAdam struct {
	name         string
	scope        string
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
}

// NewScopedAdam creates an adapter bound to the trainable variables under
// the given absolute scope.
func NewScopedAdam(name, scope string, learningRate float64) *ScopedAdam {
	return &ScopedAdam{
		name:         name,
		scope:        scope,
		learningRate: learningRate,
		beta1:        AdamBeta1,
		beta2:        AdamBeta2,
		epsilon:      AdamEpsilon,
	}
}

// Params returns the bound parameter set in deterministic (sorted
// scope-and-name) order. The order is the contract shared by GradientsGraph,
// ApplyGraph, snapshots and the pretraining weight transfer.
func (o *ScopedAdam) Params(ctx *context.Context) []*context.Variable {
	var params []*context.Variable
	ctx.InAbsPath(o.scope).EnumerateVariablesInScope(func(v *context.Variable) {
		if v.Trainable {
			params = append(params, v)
		}
	})
	sort.Slice(params, func(i, j int) bool {
		return params[i].ScopeAndName() < params[j].ScopeAndName()
	})
	return params
}

// GradientsGraph builds the gradients of loss with respect to the bound
// parameters, in Params order, without touching any state.
func (o *ScopedAdam) GradientsGraph(ctx *context.Context, g *Graph, loss *Node) []*Node {
	if !loss.Shape().IsScalar() {
		exceptions.Panicf("ScopedAdam %q requires a scalar loss, got shape %s", o.name, loss.Shape())
	}
	params := o.Params(ctx)
	if len(params) == 0 {
		exceptions.Panicf("ScopedAdam %q found no trainable variables under scope %q", o.name, o.scope)
	}
	wrt := make([]*Node, len(params))
	for i, v := range params {
		wrt[i] = v.ValueGraph(g)
	}
	return Gradient(loss, wrt...)
}

// ApplyGraph updates the bound parameters in place with the given gradients
// (one per parameter, in Params order), advancing the Adam moments and step
// counter. The gradients may come from GradientsGraph in this same graph or
// be fed as graph inputs, as the extragradient loop does.
func (o *ScopedAdam) ApplyGraph(ctx *context.Context, g *Graph, grads []*Node) {
	params := o.Params(ctx)
	if len(grads) != len(params) {
		exceptions.Panicf("ScopedAdam %q: %d gradients for %d parameters", o.name, len(grads), len(params))
	}
	dtype := grads[0].DType()
	stateCtx := ctx.InAbsPath(optimizerStateScope).In(o.name).
		Checked(false).WithInitializer(initializer.Zero)

	stepVar := stateCtx.VariableWithShape("step", shapes.Make(dtype)).SetTrainable(false)
	step := OnePlus(stepVar.ValueGraph(g))
	stepVar.SetValueGraph(step)

	learningRate := Scalar(g, dtype, o.learningRate)
	beta1 := Scalar(g, dtype, o.beta1)
	beta2 := Scalar(g, dtype, o.beta2)
	epsilon := Scalar(g, dtype, o.epsilon)
	debias1 := Inverse(OneMinus(Pow(beta1, step)))
	debias2 := Inverse(OneMinus(Pow(beta2, step)))

	for i, v := range params {
		o.applyParamGraph(stateCtx, g, v, grads[i], learningRate, beta1, debias1, beta2, debias2, epsilon)
	}
}

// MinimizeGraph is the combined compute-and-apply mode used by the standard
// training loop.
func (o *ScopedAdam) MinimizeGraph(ctx *context.Context, g *Graph, loss *Node) {
	o.ApplyGraph(ctx, g, o.GradientsGraph(ctx, g, loss))
}

// applyParamGraph performs the Adam update of one parameter and its two
// moment estimates.
func (o *ScopedAdam) applyParamGraph(stateCtx *context.Context, g *Graph, v *context.Variable,
	grad, learningRate, beta1, debias1, beta2, debias2, epsilon *Node) {

	m1Var, m2Var := o.momentVariables(stateCtx, v)
	moment1 := Add(Mul(beta1, m1Var.ValueGraph(g)), Mul(OneMinus(beta1), grad))
	m1Var.SetValueGraph(moment1)
	moment2 := Add(Mul(beta2, m2Var.ValueGraph(g)), Mul(OneMinus(beta2), Square(grad)))
	m2Var.SetValueGraph(moment2)

	stepDirection := Div(
		Mul(moment1, debias1),
		Add(Sqrt(Mul(moment2, debias2)), epsilon))
	v.SetValueGraph(Sub(v.ValueGraph(g), Mul(learningRate, stepDirection)))
}

// momentVariables returns (creating if needed) the moment estimates of one
// parameter, stored under the optimizer state scope mirroring the
// parameter's own scope.
func (o *ScopedAdam) momentVariables(stateCtx *context.Context, v *context.Variable) (m1, m2 *context.Variable) {
	scoped := stateCtx.In(context.EscapeScopeName(v.ScopeAndName()))
	m1 = scoped.VariableWithShape(fmt.Sprintf("%s_1st_moment", v.Name()), v.Shape()).SetTrainable(false)
	m2 = scoped.VariableWithShape(fmt.Sprintf("%s_2nd_moment", v.Name()), v.Shape()).SetTrainable(false)
	return
}
