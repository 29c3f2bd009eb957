// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gan trains a generator/discriminator pair to approximate a fixed
// one-dimensional data distribution.
//
// The package owns the adversarial loss definitions, the three parameter
// scopes (pretrain, discriminator, generator) with one Adam adapter each,
// and the two training-loop variants: plain alternating descent and the
// extragradient (lookahead) rule, which snapshots parameters, takes a trial
// step, recomputes gradients at the trial point and applies them to the
// restored parameters.
package gan

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/gomlx/gan1d/distributions"
	"github.com/gomlx/gan1d/networks"
)

// Parameter scopes. Each is updated exclusively by its own ScopedAdam,
// except for the one-time pretraining weight transfer into the
// discriminator scope.
const (
	ScopePretrain      = "/dpre"
	ScopeDiscriminator = "/disc"
	ScopeGenerator     = "/gen"
)

// scoreEpsilon bounds discriminator scores away from {0, 1} inside the
// loss. The final ReLU leaves scores unbounded, so without this the log
// terms can reach ±Inf on the very first step; the clamp is a deliberate
// deviation from the original formulation (see DESIGN.md) and applies to
// the loss only — the decision boundary is sampled from the raw score.
const scoreEpsilon = 1e-6

// Trainer drives adversarial training over one GoMLX context. Use
// NewTrainer, then Run (or the individual step methods).
//
// Execution is single-threaded: each step fully completes before the next
// begins, and the context variables are only ever mutated by the optimizer
// applies and the explicit snapshot restore.
type Trainer struct {
	backend backends.Backend
	config  *Config
	ctx     *context.Context

	rng   *rand.Rand
	data  *distributions.Data
	noise *distributions.Noise

	preOpt, dOpt, gOpt *ScopedAdam
	numDiscParams      int

	pretrainExec  *context.Exec
	trainDiscExec *context.Exec
	trainGenExec  *context.Exec
	lossesExec    *context.Exec
	gradsExec     *context.Exec
	applyExec     *context.Exec
	scoreExec     *context.Exec
	generateExec  *context.Exec

	frames []*Frame

	// LogWriter receives the periodic loss lines. Defaults to stdout.
	LogWriter io.Writer

	// OnStep, if set, is called after every completed training step.
	OnStep func(step int, lossD, lossG float64)
}

// NewTrainer builds the model variables and all computation graphs needed
// by the configured training mode.
func NewTrainer(backend backends.Backend, config *Config) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewSource(config.Seed)
	t := &Trainer{
		backend:   backend,
		config:    config,
		rng:       rand.New(src),
		data:      distributions.NewData(src),
		noise:     distributions.NewNoise(src, config.Range),
		preOpt:    NewScopedAdam("dpre", ScopePretrain, config.pretrainLearningRate()),
		dOpt:      NewScopedAdam("disc", ScopeDiscriminator, config.LearningRate),
		gOpt:      NewScopedAdam("gen", ScopeGenerator, config.LearningRate),
		LogWriter: os.Stdout,
	}
	t.ctx = context.New().Checked(false).
		WithInitializer(networks.Orthogonal(t.rng, networks.OrthogonalGain))
	if err := t.setup(); err != nil {
		return nil, err
	}
	return t, nil
}

// setup creates the execs and materializes the generator/discriminator
// variables with a single forward pass, so that parameter enumeration (for
// gradients, snapshots and the pretraining transfer) is stable before any
// update runs.
func (t *Trainer) setup() error {
	var err error
	buildExec, err := context.NewExec(t.backend, t.ctx,
		func(ctx *context.Context, x, z *Node) (d1, d2, generated *Node) {
			generated = t.generatorGraph(ctx, z)
			d1 = t.discriminatorGraph(ctx, x)
			d2 = t.discriminatorGraph(ctx, generated)
			return
		})
	if err != nil {
		return errors.WithMessage(err, "building model graph")
	}
	zeros := make([]float64, t.config.BatchSize)
	if _, err = buildExec.Exec(t.batch(zeros), t.batch(zeros)); err != nil {
		return errors.WithMessage(err, "initializing model variables")
	}
	buildExec.Finalize()
	t.numDiscParams = len(t.dOpt.Params(t.ctx))

	t.trainDiscExec, err = context.NewExec(t.backend, t.ctx,
		func(ctx *context.Context, x, z *Node) *Node {
			lossD, _ := t.adversarialLosses(ctx, x, z)
			t.dOpt.MinimizeGraph(ctx, x.Graph(), lossD)
			return lossD
		})
	if err != nil {
		return errors.WithMessage(err, "building discriminator step graph")
	}
	t.trainGenExec, err = context.NewExec(t.backend, t.ctx,
		func(ctx *context.Context, z *Node) *Node {
			d2 := t.discriminatorGraph(ctx, t.generatorGraph(ctx, z))
			lossG := generatorLoss(d2)
			t.gOpt.MinimizeGraph(ctx, z.Graph(), lossG)
			return lossG
		})
	if err != nil {
		return errors.WithMessage(err, "building generator step graph")
	}
	t.lossesExec, err = context.NewExec(t.backend, t.ctx,
		func(ctx *context.Context, x, z *Node) (lossD, lossG *Node) {
			return t.adversarialLosses(ctx, x, z)
		})
	if err != nil {
		return errors.WithMessage(err, "building loss graph")
	}
	t.gradsExec, err = context.NewExec(t.backend, t.ctx,
		func(ctx *context.Context, inputs []*Node) []*Node {
			x, z := inputs[0], inputs[1]
			g := x.Graph()
			lossD, lossG := t.adversarialLosses(ctx, x, z)
			grads := t.dOpt.GradientsGraph(ctx, g, lossD)
			return append(grads, t.gOpt.GradientsGraph(ctx, g, lossG)...)
		})
	if err != nil {
		return errors.WithMessage(err, "building gradients graph")
	}
	t.applyExec, err = context.NewExec(t.backend, t.ctx,
		func(ctx *context.Context, inputs []*Node) []*Node {
			x, z, grads := inputs[0], inputs[1], inputs[2:]
			g := x.Graph()
			lossD, lossG := t.adversarialLosses(ctx, x, z)
			t.dOpt.ApplyGraph(ctx, g, grads[:t.numDiscParams])
			t.gOpt.ApplyGraph(ctx, g, grads[t.numDiscParams:])
			return []*Node{lossD, lossG}
		})
	if err != nil {
		return errors.WithMessage(err, "building apply graph")
	}
	t.scoreExec, err = context.NewExec(t.backend, t.ctx,
		func(ctx *context.Context, x *Node) *Node {
			return t.discriminatorGraph(ctx, x)
		})
	if err != nil {
		return errors.WithMessage(err, "building score graph")
	}
	t.generateExec, err = context.NewExec(t.backend, t.ctx,
		func(ctx *context.Context, z *Node) *Node {
			return t.generatorGraph(ctx, z)
		})
	if err != nil {
		return errors.WithMessage(err, "building generate graph")
	}
	if t.config.PretrainSteps > 0 {
		t.pretrainExec, err = context.NewExec(t.backend, t.ctx,
			func(ctx *context.Context, probes, labels *Node) *Node {
				predicted := networks.Discriminator(ctx.InAbsPath(ScopePretrain), probes,
					t.config.HiddenDim, t.config.NumKernels, t.config.KernelDim, t.config.Minibatch)
				loss := ReduceAllMean(Square(Sub(predicted, labels)))
				t.preOpt.MinimizeGraph(ctx, probes.Graph(), loss)
				return loss
			})
		if err != nil {
			return errors.WithMessage(err, "building pretrain graph")
		}
	}
	return nil
}

// generatorGraph and discriminatorGraph bind the network builders to their
// scopes. The discriminator is built against one shared scope at every call
// site, which is what makes its dual invocation share parameters.
func (t *Trainer) generatorGraph(ctx *context.Context, z *Node) *Node {
	return networks.Generator(ctx.InAbsPath(ScopeGenerator), z, t.config.HiddenDim)
}

func (t *Trainer) discriminatorGraph(ctx *context.Context, x *Node) *Node {
	return networks.Discriminator(ctx.InAbsPath(ScopeDiscriminator), x,
		t.config.HiddenDim, t.config.NumKernels, t.config.KernelDim, t.config.Minibatch)
}

// adversarialLosses builds both loss heads over one real batch x and one
// noise batch z: lossD = -mean(log D1 + log(1-D2)), lossG = -mean(log D2).
func (t *Trainer) adversarialLosses(ctx *context.Context, x, z *Node) (lossD, lossG *Node) {
	d1 := boundedScore(t.discriminatorGraph(ctx, x))
	d2 := boundedScore(t.discriminatorGraph(ctx, t.generatorGraph(ctx, z)))
	lossD = Neg(ReduceAllMean(Add(Log(d1), Log(OneMinus(d2)))))
	lossG = Neg(ReduceAllMean(Log(d2)))
	return
}

func generatorLoss(d2 *Node) *Node {
	return Neg(ReduceAllMean(Log(boundedScore(d2))))
}

func boundedScore(d *Node) *Node {
	return ClipScalar(d, scoreEpsilon, 1-scoreEpsilon)
}

// Run executes pretraining (if configured) and then the configured number
// of adversarial steps, logging every LogEvery steps in the
// "{step}: {lossD}\t{lossG}" format and capturing frames when requested.
// A non-finite loss aborts the run.
func (t *Trainer) Run() error {
	if err := t.pretrain(); err != nil {
		return err
	}
	for step := 0; step < t.config.NumSteps; step++ {
		var lossD, lossG float64
		var err error
		if t.config.Extragradient {
			lossD, lossG, err = t.ExtragradientStep()
		} else {
			lossD, lossG, err = t.StandardStep()
		}
		if err != nil {
			return errors.WithMessagef(err, "training step %d", step)
		}
		if !isFinite(lossD) || !isFinite(lossG) {
			return errors.Errorf("non-finite losses at step %d: lossD=%v lossG=%v", step, lossD, lossG)
		}
		if step%t.config.LogEvery == 0 {
			fmt.Fprintf(t.LogWriter, "%d: %v\t%v\n", step, lossD, lossG)
		}
		if t.OnStep != nil {
			t.OnStep(step, lossD, lossG)
		}
		if t.config.CaptureFrames {
			frame, err := t.SampleDiagnostics(DiagnosticGridPoints, DiagnosticBins)
			if err != nil {
				return errors.WithMessagef(err, "capturing frame at step %d", step)
			}
			t.frames = append(t.frames, frame)
		}
	}
	return nil
}

// pretrain fits the pretrain-scope discriminator to the target density by
// MSE regression on uniform probe points in [-5, 5), then transfers the
// fitted weights into the discriminator scope. The transfer happens once
// and only when pretraining is enabled.
func (t *Trainer) pretrain() error {
	if t.config.PretrainSteps == 0 {
		return nil
	}
	b := t.config.BatchSize
	probes := make([]float64, b)
	labels := make([]float64, b)
	for step := 0; step < t.config.PretrainSteps; step++ {
		for i := range probes {
			probes[i] = (t.rng.Float64() - 0.5) * 10
			labels[i] = t.data.PDF(probes[i])
		}
		if _, err := t.pretrainExec.Exec(t.batch(probes), t.batch(labels)); err != nil {
			return errors.WithMessagef(err, "pretrain step %d", step)
		}
	}
	return t.copyPretrainedWeights()
}

// copyPretrainedWeights transfers the pretrain-scope parameter values into
// the discriminator scope by position: both scopes build the identical
// layer structure, so their sorted parameter lists line up one to one.
func (t *Trainer) copyPretrainedWeights() error {
	src := t.preOpt.Params(t.ctx)
	dst := t.dOpt.Params(t.ctx)
	if len(src) != len(dst) {
		return errors.Errorf("pretrain scope has %d parameters, discriminator scope has %d", len(src), len(dst))
	}
	for i, from := range src {
		if !from.Shape().Equal(dst[i].Shape()) {
			return errors.Errorf("pretrain parameter %q shape %s does not match %q shape %s",
				from.ScopeAndName(), from.Shape(), dst[i].ScopeAndName(), dst[i].Shape())
		}
		value, err := from.Value()
		if err != nil {
			return errors.WithMessagef(err, "reading pretrain parameter %q", from.ScopeAndName())
		}
		clone, err := value.LocalClone()
		if err != nil {
			return errors.WithMessagef(err, "cloning pretrain parameter %q", from.ScopeAndName())
		}
		if err := dst[i].SetValue(clone); err != nil {
			return errors.WithMessagef(err, "writing discriminator parameter %q", dst[i].ScopeAndName())
		}
	}
	return nil
}

// StandardStep performs one step of plain alternating descent: one combined
// compute-and-apply update of the discriminator on a (real, noise) batch
// pair, then one of the generator on a fresh noise batch.
func (t *Trainer) StandardStep() (lossD, lossG float64, err error) {
	b := t.config.BatchSize
	x := t.data.Sample(b)
	z := t.noise.Sample(b)
	outputs, err := t.trainDiscExec.Exec(t.batch(x), t.batch(z))
	if err != nil {
		return 0, 0, errors.WithMessage(err, "discriminator update")
	}
	lossD = scalarFloat(outputs[0])

	z = t.noise.Sample(b)
	outputs, err = t.trainGenExec.Exec(t.batch(z))
	if err != nil {
		return 0, 0, errors.WithMessage(err, "generator update")
	}
	lossG = scalarFloat(outputs[0])
	return lossD, lossG, nil
}

// ExtragradientStep performs one lookahead update:
//
//  1. snapshot the discriminator and generator parameter values;
//  2. compute both gradient sets on fresh batches, without applying;
//  3. apply them — a trial step;
//  4. compute both gradient sets again, on new batches, at the trial point;
//  5. restore the parameters from the snapshot;
//  6. apply the trial-point gradients to the restored parameters.
//
// The returned losses are evaluated at the restored parameters on the
// lookahead batches, in the same execution that applies the final update.
// Adam moment state is not part of the snapshot and advances through both
// applies.
func (t *Trainer) ExtragradientStep() (lossD, lossG float64, err error) {
	dParams := t.dOpt.Params(t.ctx)
	gParams := t.gOpt.Params(t.ctx)
	dSnap, err := snapshotParams(dParams)
	if err != nil {
		return 0, 0, errors.WithMessage(err, "snapshotting discriminator")
	}
	gSnap, err := snapshotParams(gParams)
	if err != nil {
		return 0, 0, errors.WithMessage(err, "snapshotting generator")
	}

	b := t.config.BatchSize
	x := t.data.Sample(b)
	z := t.noise.Sample(b)
	grads, err := t.gradients(x, z)
	if err != nil {
		return 0, 0, errors.WithMessage(err, "gradients at current point")
	}
	if _, _, err = t.applyGradients(x, z, grads); err != nil {
		return 0, 0, errors.WithMessage(err, "trial step")
	}

	x = t.data.Sample(b)
	z = t.noise.Sample(b)
	lookahead, err := t.gradients(x, z)
	if err != nil {
		return 0, 0, errors.WithMessage(err, "gradients at lookahead point")
	}
	if err = restoreParams(dParams, dSnap); err != nil {
		return 0, 0, errors.WithMessage(err, "restoring discriminator")
	}
	if err = restoreParams(gParams, gSnap); err != nil {
		return 0, 0, errors.WithMessage(err, "restoring generator")
	}
	lossD, lossG, err = t.applyGradients(x, z, lookahead)
	if err != nil {
		return 0, 0, errors.WithMessage(err, "applying lookahead gradients")
	}
	return lossD, lossG, nil
}

// gradients computes both gradient sets (discriminator first, then
// generator, each in Params order) without applying them.
func (t *Trainer) gradients(x, z []float64) ([]*tensors.Tensor, error) {
	return t.gradsExec.Exec(t.batch(x), t.batch(z))
}

// applyGradients applies previously computed gradients to the live
// parameters and returns both losses evaluated at the pre-apply values.
func (t *Trainer) applyGradients(x, z []float64, grads []*tensors.Tensor) (lossD, lossG float64, err error) {
	args := make([]any, 0, 2+len(grads))
	args = append(args, t.batch(x), t.batch(z))
	for _, grad := range grads {
		args = append(args, grad)
	}
	outputs, err := t.applyExec.Exec(args...)
	if err != nil {
		return 0, 0, err
	}
	return scalarFloat(outputs[0]), scalarFloat(outputs[1]), nil
}

// Losses evaluates both adversarial losses on the given batches without
// updating anything.
func (t *Trainer) Losses(x, z []float64) (lossD, lossG float64, err error) {
	outputs, err := t.lossesExec.Exec(t.batch(x), t.batch(z))
	if err != nil {
		return 0, 0, err
	}
	return scalarFloat(outputs[0]), scalarFloat(outputs[1]), nil
}

// Frames returns the frame records captured so far. The slice is only
// appended to during Run and must not be read concurrently with it.
func (t *Trainer) Frames() []*Frame { return t.frames }

// Data returns the target distribution bound to this trainer.
func (t *Trainer) Data() *distributions.Data { return t.data }

// Noise returns the noise distribution bound to this trainer.
func (t *Trainer) Noise() *distributions.Noise { return t.noise }

// batch reshapes host samples into the (batch, 1) float32 tensor every
// network input expects.
func (t *Trainer) batch(values []float64) *tensors.Tensor {
	data := make([]float32, len(values))
	for i, v := range values {
		data[i] = float32(v)
	}
	return tensors.FromFlatDataAndDimensions(data, len(data), 1)
}

func scalarFloat(t *tensors.Tensor) float64 {
	return shapes.ConvertTo[float64](t.Value())
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
