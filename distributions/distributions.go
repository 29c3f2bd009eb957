// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package distributions provides the two sampling components that feed the
// adversarial training loop: the fixed target data distribution (a mixture
// of four narrow Gaussians) and the stratified noise distribution used as
// generator input.
//
// Both take an explicit random source at construction, so a run is
// reproducible end to end from a single seed.
package distributions

import (
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Default parameters of the target distribution.
var (
	// DataModes are the centers of the four mixture components.
	DataModes = []float64{-6, -3, 3, 6}

	// DataSigma is the standard deviation of every component.
	DataSigma = 0.01
)

// NoiseJitter is the width of the uniform jitter added on top of the evenly
// spaced noise samples.
const NoiseJitter = 0.01

// Data is the fixed target distribution: an equal-weight mixture of narrow
// Gaussians centered at DataModes.
type Data struct {
	rng        *rand.Rand
	components []distuv.Normal
}

// NewData creates the target distribution drawing from the given source.
func NewData(src rand.Source) *Data {
	d := &Data{
		rng:        rand.New(src),
		components: make([]distuv.Normal, len(DataModes)),
	}
	for i, mu := range DataModes {
		d.components[i] = distuv.Normal{Mu: mu, Sigma: DataSigma, Src: src}
	}
	return d
}

// Sample returns n values drawn from the mixture, sorted ascending.
// Each draw picks one component uniformly and adds its Gaussian noise.
// The sort is required by the histogram code downstream (stat.Histogram
// takes sorted input), not by the training algorithm.
func (d *Data) Sample(n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = d.components[d.rng.Intn(len(d.components))].Rand()
	}
	sort.Float64s(samples)
	return samples
}

// PDF returns the mixture density at x: the mean of the component densities.
func (d *Data) PDF(x float64) float64 {
	var sum float64
	for _, c := range d.components {
		sum += c.Prob(x)
	}
	return sum / float64(len(d.components))
}

// Noise produces the generator input: stratified samples covering
// [-Range, Range] every call, each perturbed by a small uniform jitter.
// Unlike purely random sampling this guarantees the generator sees a
// well-spread set of inputs in every batch.
type Noise struct {
	// Range is the half-width of the sampled interval.
	Range float64

	rng *rand.Rand
}

// NewNoise creates the noise distribution over [-halfRange, halfRange].
func NewNoise(src rand.Source, halfRange float64) *Noise {
	return &Noise{Range: halfRange, rng: rand.New(src)}
}

// Sample returns n values evenly spaced over [-Range, Range] (endpoints
// included), each plus an independent uniform jitter in [0, NoiseJitter).
func (n *Noise) Sample(count int) []float64 {
	samples := Linspace(-n.Range, n.Range, count)
	for i := range samples {
		samples[i] += n.rng.Float64() * NoiseJitter
	}
	return samples
}

// Linspace returns count values evenly spaced over [start, stop], endpoints
// included. For count == 1 it returns just start.
func Linspace(start, stop float64, count int) []float64 {
	values := make([]float64, count)
	if count == 1 {
		values[0] = start
		return values
	}
	step := (stop - start) / float64(count-1)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	return values
}
