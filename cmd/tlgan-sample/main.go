package main

import (
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	tlgan "github.com/LdDl/tl-gan"
)

func main() {
	cfg := tlgan.DefaultConfig()
	var variant, checkpoint, output string
	var seed int64

	klog.InitFlags(nil)
	flag.StringVar(&checkpoint, "checkpoint", "", "Generator checkpoint (generator_model_<NNN>.gob)")
	flag.StringVar(&output, "o", "generated_plot.png", "Output PNG file")
	flag.IntVar(&cfg.LatentDim, "latent", cfg.LatentDim, "Size of latent space")
	flag.IntVar(&cfg.ImageHeight, "height", cfg.ImageHeight, "Image height")
	flag.IntVar(&cfg.ImageWidth, "width", cfg.ImageWidth, "Image width")
	flag.StringVar(&variant, "variant", string(cfg.GeneratorVariant), "Generator variant: plain | skip")
	flag.StringVar(&cfg.OutputActivation, "output_activation", "", "Generator output activation: tanh | linear | relu | sigmoid")
	flag.BoolVar(&cfg.BatchNorm, "batch_norm", cfg.BatchNorm, "Generator has been trained with normalized upsampling stages")
	flag.IntVar(&cfg.GeneratorChannels, "generator_channels", cfg.GeneratorChannels, "Channels of first generator feature map")
	flag.IntVar(&cfg.GridSize, "grid", cfg.GridSize, "Plot grid x grid images. Generator with batch norm normalizes over generated batch, so it needs grid >= 2")
	flag.Int64Var(&seed, "seed", 0, "Random seed (0 means current time)")
	flag.Parse()
	defer klog.Flush()

	cfg.GeneratorVariant = tlgan.GeneratorVariant(variant)
	if err := sample(cfg, checkpoint, output, seed); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func sample(cfg tlgan.Config, checkpoint, output string, seed int64) error {
	if checkpoint == "" {
		return errors.New("Checkpoint is required: use -checkpoint <file>")
	}
	if cfg.GridSize < 1 {
		return errors.Errorf("Grid size must be positive, but got %d", cfg.GridSize)
	}
	if cfg.GridSize < 2 && cfg.BatchNorm && cfg.GeneratorVariant == tlgan.GeneratorPlain {
		return errors.New("Batch norm generator can't produce single image: batch statistics of one sample collapse it; use -grid 2 or more")
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	generator, err := tlgan.NewGenerator(cfg)
	if err != nil {
		return err
	}
	defer generator.Close()
	if err = generator.Load(checkpoint); err != nil {
		return err
	}
	n := cfg.GridSize * cfg.GridSize
	images, _, err := tlgan.FakeSamples(rng, generator, cfg.LatentDim, n)
	if err != nil {
		return err
	}
	if err = tlgan.SavePlot(images, cfg.GridSize, output); err != nil {
		return err
	}
	klog.Infof("Saved %d generated images to '%s'", n, output)
	return nil
}
