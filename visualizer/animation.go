// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package visualizer

import (
	"image"
	"image/color/palette"
	stddraw "image/draw"
	"image/gif"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/gomlx/gan1d/gan"
)

// DefaultFPS is the animation playback rate.
const DefaultFPS = 30

// SaveAnimation renders one plot per frame and encodes them as an animated
// GIF at the given playback rate.
func SaveAnimation(frames []*gan.Frame, halfRange float64, path string, fps int) error {
	if len(frames) == 0 {
		return errors.New("no frames to animate")
	}
	if fps < 1 || fps > 100 {
		return errors.Errorf("fps must be in [1, 100], got %d", fps)
	}

	anim := &gif.GIF{}
	delay := 100 / fps // GIF delays count in centiseconds.
	for i, frame := range frames {
		p, err := newPlot(frame, halfRange)
		if err != nil {
			return errors.WithMessagef(err, "frame %d", i)
		}
		canvas := vgimg.New(plotWidth, plotHeight)
		p.Draw(draw.New(canvas))
		anim.Image = append(anim.Image, quantize(canvas.Image()))
		anim.Delay = append(anim.Delay, delay)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.WithMessagef(err, "creating %q", path)
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		f.Close()
		return errors.WithMessagef(err, "encoding animation to %q", path)
	}
	return errors.WithMessagef(f.Close(), "closing %q", path)
}

// quantize dithers a rendered frame down to the 256-color palette GIF
// requires.
func quantize(img image.Image) *image.Paletted {
	bounds := img.Bounds()
	paletted := image.NewPaletted(bounds, palette.Plan9)
	stddraw.FloydSteinberg.Draw(paletted, bounds, img, bounds.Min)
	return paletted
}
