package tlgan

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"
)

// DiscriminatorModel Binary classifier of images trained by direct supervised steps
type DiscriminatorModel interface {
	// Step Does single optimizer step on images x (n, 3, H, W) with labels y (n, 1). Returns loss
	Step(x, y *tensor.Dense) (float64, error)
	// Evaluate Returns loss and accuracy without updating parameters
	Evaluate(x, y *tensor.Dense) (float64, float64, error)
}

// GeneratorModel Image generator which can be checkpointed
type GeneratorModel interface {
	ImageGenerator
	Save(path string) error
}

// AdversarialModel Updates generator through frozen discriminator
type AdversarialModel interface {
	// Step Does single optimizer step of generator for latent batch z (n, latentDim) with labels y (n, 1). Returns loss
	Step(z, y *tensor.Dense) (float64, error)
}

// PerformanceSummarizer Evaluates models and emits artifacts for 0-indexed epoch
type PerformanceSummarizer interface {
	Summarize(epoch int) error
}

// Summarizer Evaluates discriminator on fresh real and fake batches, plots generated images and saves generator.
// Log line, plot and checkpoint are written independently: failure in the middle leaves partial artifacts.
type Summarizer struct {
	run           *Run
	generator     GeneratorModel
	discriminator DiscriminatorModel
	dataset       *Dataset
	rng           *rand.Rand

	latentDim int
	samples   int
	gridSize  int
}

// NewSummarizer Constructor for Summarizer
func NewSummarizer(cfg Config, run *Run, ds *Dataset, generator GeneratorModel, discriminator DiscriminatorModel, rng *rand.Rand) *Summarizer {
	return &Summarizer{
		run:           run,
		generator:     generator,
		discriminator: discriminator,
		dataset:       ds,
		rng:           rng,
		latentDim:     cfg.LatentDim,
		samples:       cfg.SummarySamples,
		gridSize:      cfg.GridSize,
	}
}

// Summarize See ref. to Summarizer. Artifacts are named by 1-indexed epoch
func (s *Summarizer) Summarize(epoch int) error {
	xReal, yReal, err := RealSamples(s.rng, s.dataset, s.samples)
	if err != nil {
		return errors.Wrap(err, "Can't prepare real samples")
	}
	_, accReal, err := s.discriminator.Evaluate(xReal, yReal)
	if err != nil {
		return errors.Wrap(err, "Can't evaluate discriminator on real samples")
	}
	xFake, yFake, err := FakeSamples(s.rng, s.generator, s.latentDim, s.samples)
	if err != nil {
		return errors.Wrap(err, "Can't prepare fake samples")
	}
	_, accFake, err := s.discriminator.Evaluate(xFake, yFake)
	if err != nil {
		return errors.Wrap(err, "Can't evaluate discriminator on fake samples")
	}
	if err = s.run.Logf(">Accuracy real: %.0f%%, fake: %.0f%%", accReal*100, accFake*100); err != nil {
		return err
	}
	if err = s.run.Flush(); err != nil {
		return err
	}
	klog.Infof("Epoch %d: accuracy real: %.0f%%, fake: %.0f%%", epoch+1, accReal*100, accFake*100)

	plotPath := s.run.PlotPath(epoch + 1)
	if err = SavePlot(xFake, s.gridSize, plotPath); err != nil {
		return errors.Wrap(err, "Can't save generated plot")
	}
	checkpointPath := s.run.CheckpointPath(epoch + 1)
	if err = s.generator.Save(checkpointPath); err != nil {
		return errors.Wrap(err, "Can't save generator")
	}
	klog.V(1).Infof("Epoch %d: saved '%s' and '%s'", epoch+1, plotPath, checkpointPath)
	return nil
}
