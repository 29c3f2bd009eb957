// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package visualizer renders diagnostics frames captured during adversarial
// training: the discriminator decision boundary and the real/generated
// density histograms, as a static PNG or as an animation over the whole run.
package visualizer

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gomlx/gan1d/distributions"
	"github.com/gomlx/gan1d/gan"
)

// Canvas size of every rendered frame.
const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 6 * vg.Inch
)

var (
	boundaryColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	realColor      = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	generatedColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// newPlot lays one frame out as a plot: three lines over [-halfRange,
// halfRange], a fixed [0, 1] vertical range and a legend.
func newPlot(frame *gan.Frame, halfRange float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "1D Generative Adversarial Network"
	p.X.Label.Text = "Data values"
	p.Y.Label.Text = "Probability density"
	p.X.Min, p.X.Max = -halfRange, halfRange
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = true

	for _, series := range []struct {
		name   string
		values []float64
		color  color.RGBA
	}{
		{"decision boundary", frame.Boundary, boundaryColor},
		{"real data", frame.RealDensity, realColor},
		{"generated data", frame.GeneratedDensity, generatedColor},
	} {
		line, err := plotter.NewLine(lineXYs(series.values, halfRange))
		if err != nil {
			return nil, errors.WithMessagef(err, "building %s line", series.name)
		}
		line.Color = series.color
		p.Add(line)
		p.Legend.Add(series.name, line)
	}
	return p, nil
}

// lineXYs spreads values evenly over [-halfRange, halfRange]. Histogram
// series are plotted at their bin centers, which an even spread of
// bin-count points over the range is.
func lineXYs(values []float64, halfRange float64) plotter.XYs {
	n := len(values)
	width := 2 * halfRange / float64(n)
	xs := distributions.Linspace(-halfRange+width/2, halfRange-width/2, n)
	xys := make(plotter.XYs, n)
	for i, v := range values {
		xys[i].X = xs[i]
		xys[i].Y = v
	}
	return xys
}

// SavePlot renders one frame to a PNG file.
func SavePlot(frame *gan.Frame, halfRange float64, path string) error {
	p, err := newPlot(frame, halfRange)
	if err != nil {
		return err
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return errors.WithMessagef(err, "saving plot to %q", path)
	}
	return nil
}
