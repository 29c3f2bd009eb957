// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// gan1d trains a small generator/discriminator pair on a four-mode 1D
// Gaussian mixture and renders the resulting decision boundary and sample
// densities.
//
// Examples:
//
//	gan1d                          # plain alternating training, PNG report
//	gan1d -eg -minibatch           # extragradient rule + minibatch layer
//	gan1d -anim gan1d.gif          # also record a per-step animation
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/gomlx/gan1d/gan"
	"github.com/gomlx/gan1d/networks"
	"github.com/gomlx/gan1d/visualizer"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagNumSteps  = flag.Int("num_steps", gan.DefaultNumSteps, "Number of adversarial training steps.")
	flagBatchSize = flag.Int("batch_size", gan.DefaultBatchSize, "Samples per batch.")
	flagEG        = flag.Bool("eg", false, "Use the extragradient (lookahead) update rule instead of plain alternating descent.")
	flagMinibatch = flag.Bool("minibatch", false, "Enable the minibatch-discrimination layer in the discriminator.")
	flagLogEvery  = flag.Int("log_every", gan.DefaultLogEvery, "Steps between loss log lines.")

	flagHiddenDim = flag.Int("hidden_dim", networks.DefaultHiddenDim, "Width of the hidden layers.")
	flagPretrain  = flag.Int("pretrain_steps", 0, "Density-regression pretraining steps for the discriminator. Zero disables pretraining.")
	flagLR        = flag.Float64("learning_rate", gan.DefaultLearningRate, "Adam learning rate for both adversarial optimizers.")
	flagSeed      = flag.Uint64("seed", gan.DefaultSeed, "Seed for sampling and weight initialization.")

	flagOutput = flag.String("output", "gan1d.png", "PNG file for the final diagnostics plot.")
	flagAnim   = flag.String("anim", "", "GIF file for the per-step animation. Empty disables frame capture.")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 2, 0, 2)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).PaddingLeft(1).PaddingRight(1)
	valueStyle = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() > 0 {
		klog.Errorf("Unexpected arguments %q. See 'gan1d -help'.", flag.Args())
		os.Exit(1)
	}

	config := gan.NewConfig()
	config.NumSteps = *flagNumSteps
	config.BatchSize = *flagBatchSize
	config.Extragradient = *flagEG
	config.Minibatch = *flagMinibatch
	config.LogEvery = *flagLogEvery
	config.HiddenDim = *flagHiddenDim
	config.PretrainSteps = *flagPretrain
	config.LearningRate = *flagLR
	config.Seed = *flagSeed
	config.CaptureFrames = *flagAnim != ""

	backend := backends.MustNew()
	klog.V(1).Infof("backend: %s (%s)", backend.Name(), backend.Description())
	printConfig(config, backend.Name())

	trainer := must.M1(gan.NewTrainer(backend, config))
	pBar := progressbar.NewOptions(config.NumSteps,
		progressbar.OptionSetDescription("Training"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	trainer.OnStep = func(step int, lossD, lossG float64) {
		_ = pBar.Add(1)
	}

	start := time.Now()
	must.M(trainer.Run())
	_ = pBar.Finish()
	fmt.Fprintln(os.Stderr)

	elapsed := time.Since(start)
	rate := float64(config.NumSteps) / elapsed.Seconds()
	fmt.Printf("Trained %s steps in %s (%s steps/s)\n",
		humanize.Comma(int64(config.NumSteps)), elapsed.Round(time.Millisecond),
		humanize.FtoaWithDigits(rate, 1))

	var final *gan.Frame
	if frames := trainer.Frames(); len(frames) > 0 {
		final = frames[len(frames)-1]
		must.M(visualizer.SaveAnimation(frames, config.Range, *flagAnim, visualizer.DefaultFPS))
		fmt.Printf("Animation (%s frames) written to %s\n",
			humanize.Comma(int64(len(frames))), *flagAnim)
	} else {
		final = must.M1(trainer.SampleDiagnostics(gan.DiagnosticGridPoints, gan.DiagnosticBins))
	}
	must.M(visualizer.SavePlot(final, config.Range, *flagOutput))
	fmt.Printf("Plot written to %s\n", *flagOutput)
}

func printConfig(config *gan.Config, backendName string) {
	mode := "standard"
	if config.Extragradient {
		mode = "extragradient"
	}
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return keyStyle.Align(lipgloss.Right)
			}
			return valueStyle
		})
	table.Row("backend", backendName)
	table.Row("mode", mode)
	table.Row("steps", humanize.Comma(int64(config.NumSteps)))
	table.Row("batch size", humanize.Comma(int64(config.BatchSize)))
	table.Row("minibatch discrimination", fmt.Sprintf("%v", config.Minibatch))
	table.Row("pretrain steps", humanize.Comma(int64(config.PretrainSteps)))
	table.Row("learning rate", fmt.Sprintf("%g", config.LearningRate))
	table.Row("seed", fmt.Sprintf("%d", config.Seed))
	fmt.Println(titleStyle.Render("1D GAN"))
	fmt.Println(table.Render())
}
