package tlgan

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Models Networks taking part in adversarial training
type Models struct {
	Generator     GeneratorModel
	Discriminator DiscriminatorModel
	GAN           AdversarialModel
	// Summarizer Optional. Default Summarizer is used when nil
	Summarizer PerformanceSummarizer

	closers []func() error
}

// NewModels Defines gorgonia-backed generator, discriminator and combined GAN for provided configuration
func NewModels(cfg Config) (*Models, error) {
	generator, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	discriminator, err := NewDiscriminator(cfg)
	if err != nil {
		return nil, err
	}
	definedGAN, err := NewGAN(generator, discriminator, cfg.BatchSize, cfg)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("Generator '%s' has %d parameters, discriminator has %d parameters", cfg.GeneratorVariant, generator.Network().NumParams(), discriminator.Network().NumParams())
	return &Models{
		Generator:     generator,
		Discriminator: discriminator,
		GAN:           definedGAN,
		closers:       []func() error{definedGAN.Close, discriminator.Close, generator.Close},
	}, nil
}

// Close Releases machines of gorgonia-backed models
func (m *Models) Close() error {
	var first error
	for _, closeFn := range m.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// Trainer Alternates discriminator and generator updates over epochs and batches
type Trainer struct {
	cfg     Config
	dataset *Dataset
	models  *Models
	run     *Run
	rng     *rand.Rand
}

// NewTrainer Constructor for Trainer
func NewTrainer(cfg Config, ds *Dataset, models *Models, run *Run, rng *rand.Rand) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid configuration")
	}
	if ds == nil || ds.Len == 0 {
		return nil, fmt.Errorf("Can't train on empty dataset")
	}
	if models == nil || models.Generator == nil || models.Discriminator == nil || models.GAN == nil {
		return nil, fmt.Errorf("Trainer needs generator, discriminator and GAN")
	}
	if run == nil {
		return nil, fmt.Errorf("Trainer needs run context")
	}
	if models.Summarizer == nil {
		models.Summarizer = NewSummarizer(cfg, run, ds, models.Generator, models.Discriminator, rng)
	}
	return &Trainer{
		cfg:     cfg,
		dataset: ds,
		models:  models,
		run:     run,
		rng:     rng,
	}, nil
}

// Train Runs training for configured number of epochs. Every batch does three steps in fixed order:
//
// 1. discriminator on real half-batch (labels 1)
// 2. discriminator on half-batch produced by current generator (labels 0)
// 3. generator through frozen discriminator on full latent batch with inverted labels (1)
//
// Performance is summarized after every cfg.SummaryEvery epochs.
//
func (tr *Trainer) Train() error {
	batches := tr.cfg.BatchesPerEpoch(tr.dataset.Len)
	halfBatch := tr.cfg.HalfBatch()
	klog.Infof("Training for %d epochs: %d batches per epoch, batch size %d, run directory '%s'", tr.cfg.Epochs, batches, tr.cfg.BatchSize, tr.run.Dir())
	for epoch := 0; epoch < tr.cfg.Epochs; epoch++ {
		st := time.Now()
		for b := 0; b < batches; b++ {
			d1, d2, g, err := tr.step(halfBatch)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("Epoch %d, batch %d", epoch+1, b+1))
			}
			if err = tr.run.Logf(">%d, %d/%d, d1=%.5f, d2=%.5f g=%.5f", epoch+1, b+1, batches, d1, d2, g); err != nil {
				return err
			}
			klog.V(2).Infof("Epoch %d, batch %d/%d: d1=%.5f, d2=%.5f, g=%.5f", epoch+1, b+1, batches, d1, d2, g)
		}
		if err := tr.run.Flush(); err != nil {
			return err
		}
		klog.V(1).Infof("Epoch %d done in %v", epoch+1, time.Since(st))
		if (epoch+1)%tr.cfg.SummaryEvery == 0 {
			if err := tr.models.Summarizer.Summarize(epoch); err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't summarize epoch %d", epoch+1))
			}
		}
	}
	return nil
}

func (tr *Trainer) step(halfBatch int) (float64, float64, float64, error) {
	xReal, yReal, err := RealSamples(tr.rng, tr.dataset, halfBatch)
	if err != nil {
		return 0, 0, 0, err
	}
	d1, err := tr.models.Discriminator.Step(xReal, yReal)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "Can't update discriminator on real samples")
	}
	xFake, yFake, err := FakeSamples(tr.rng, tr.models.Generator, tr.cfg.LatentDim, halfBatch)
	if err != nil {
		return 0, 0, 0, err
	}
	d2, err := tr.models.Discriminator.Step(xFake, yFake)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "Can't update discriminator on fake samples")
	}
	xGAN := LatentPoints(tr.rng, tr.cfg.LatentDim, tr.cfg.BatchSize)
	// inverted labels for the fake samples
	yGAN := Labels(tr.cfg.BatchSize, 1)
	g, err := tr.models.GAN.Step(xGAN, yGAN)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "Can't update generator")
	}
	return d1, d2, g, nil
}
