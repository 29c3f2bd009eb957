// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package visualizer

import (
	"image/gif"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/gan1d/distributions"
	"github.com/gomlx/gan1d/gan"
)

// syntheticFrame builds a plausible frame without running a model: a sigmoid
// boundary and two bumps for the densities, phase-shifted so animation
// frames differ.
func syntheticFrame(phase float64) *gan.Frame {
	const points, bins = 200, 50
	frame := &gan.Frame{
		Boundary:         make([]float64, points),
		RealDensity:      make([]float64, bins),
		GeneratedDensity: make([]float64, bins),
	}
	for i, x := range distributions.Linspace(-8, 8, points) {
		frame.Boundary[i] = 1 / (1 + math.Exp(-x))
	}
	for i, x := range distributions.Linspace(-8, 8, bins) {
		frame.RealDensity[i] = math.Exp(-(x - 3) * (x - 3))
		frame.GeneratedDensity[i] = math.Exp(-(x + 3 - phase) * (x + 3 - phase))
	}
	return frame
}

func TestSavePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gan1d.png")
	require.NoError(t, SavePlot(syntheticFrame(0), 8, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.False(t, img.Bounds().Empty())
}

func TestSaveAnimation(t *testing.T) {
	frames := []*gan.Frame{syntheticFrame(0), syntheticFrame(1), syntheticFrame(2)}
	path := filepath.Join(t.TempDir(), "gan1d.gif")
	require.NoError(t, SaveAnimation(frames, 8, path, DefaultFPS))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := gif.DecodeAll(f)
	require.NoError(t, err)
	require.Len(t, decoded.Image, len(frames))
	for _, delay := range decoded.Delay {
		assert.Equal(t, 100/DefaultFPS, delay)
	}
}

func TestSaveAnimationRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gan1d.gif")
	require.Error(t, SaveAnimation(nil, 8, path, DefaultFPS))
	require.Error(t, SaveAnimation([]*gan.Frame{syntheticFrame(0)}, 8, path, 0))
}
