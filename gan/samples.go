// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gan

import (
	"sort"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/gomlx/gan1d/distributions"
)

// Diagnostics sampling defaults.
const (
	// DiagnosticGridPoints is how many points the decision boundary and
	// the histograms are sampled over.
	DiagnosticGridPoints = 10000

	// DiagnosticBins is the histogram bin count over [-Range, Range].
	DiagnosticBins = 100
)

// Frame is one diagnostics record: the discriminator decision boundary over
// a dense grid, plus density histograms of real and generated samples over
// the same range. Frames are appended once per step when animation is
// requested and handed to the visualizer after training completes.
type Frame struct {
	Boundary         []float64
	RealDensity      []float64
	GeneratedDensity []float64
}

// SampleDiagnostics captures a Frame from the current model state: the
// discriminator evaluated over a numPoints grid spanning [-Range, Range]
// (chunked through the network batch-size at a time), and numBins density
// histograms of numPoints real and generated samples.
func (t *Trainer) SampleDiagnostics(numPoints, numBins int) (*Frame, error) {
	if numPoints < 1 || numBins < 1 {
		return nil, errors.Errorf("diagnostics need positive sizes, got points=%d bins=%d", numPoints, numBins)
	}
	halfRange := t.config.Range
	grid := distributions.Linspace(-halfRange, halfRange, numPoints)

	boundary, err := t.evalChunked(t.scoreExec, grid)
	if err != nil {
		return nil, errors.WithMessage(err, "sampling decision boundary")
	}

	real := t.data.Sample(numPoints) // already sorted
	generated, err := t.evalChunked(t.generateExec, t.noise.Sample(numPoints))
	if err != nil {
		return nil, errors.WithMessage(err, "sampling generator")
	}
	sort.Float64s(generated)

	return &Frame{
		Boundary:         boundary,
		RealDensity:      densityHistogram(real, numBins, -halfRange, halfRange),
		GeneratedDensity: densityHistogram(generated, numBins, -halfRange, halfRange),
	}, nil
}

// evalChunked runs inputs through a single-output exec in chunks of the
// configured batch size, so batch-dependent layers (minibatch
// discrimination) see the batch size they were trained with. A final
// partial chunk is padded by repeating the last input and the padded
// outputs discarded, so every input gets a value; with the minibatch layer
// the padding slightly perturbs that chunk's batch statistics.
func (t *Trainer) evalChunked(exec *context.Exec, inputs []float64) ([]float64, error) {
	b := t.config.BatchSize
	out := make([]float64, 0, len(inputs))
	chunk := make([]float64, b)
	for start := 0; start < len(inputs); start += b {
		end := start + b
		if end > len(inputs) {
			end = len(inputs)
		}
		n := copy(chunk, inputs[start:end])
		for i := n; i < b; i++ {
			chunk[i] = inputs[len(inputs)-1]
		}
		outputs, err := exec.Exec(t.batch(chunk))
		if err != nil {
			return nil, err
		}
		rows := outputs[0].Value().([][]float32)
		for i := 0; i < n; i++ {
			out = append(out, float64(rows[i][0]))
		}
	}
	return out, nil
}

// densityHistogram bins sorted values into bins equal-width buckets over
// [lo, hi] and normalizes counts to a density (integral one over the
// range). Values outside the range are dropped before binning.
func densityHistogram(sorted []float64, bins int, lo, hi float64) []float64 {
	first := sort.SearchFloat64s(sorted, lo)
	last := sort.SearchFloat64s(sorted, hi)
	inRange := sorted[first:last]

	dividers := distributions.Linspace(lo, hi, bins+1)
	counts := stat.Histogram(nil, dividers, inRange, nil)

	width := (hi - lo) / float64(bins)
	total := float64(len(inRange))
	if total == 0 {
		return counts
	}
	for i := range counts {
		counts[i] /= total * width
	}
	return counts
}
