package main

import (
	"flag"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	tlgan "github.com/LdDl/tl-gan"
)

type intsFlag []int

func (f *intsFlag) String() string {
	parts := make([]string, len(*f))
	for i, v := range *f {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (f *intsFlag) Set(s string) error {
	parsed := intsFlag{}
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return errors.Wrap(err, "Can't parse integer list")
		}
		parsed = append(parsed, v)
	}
	*f = parsed
	return nil
}

func main() {
	cfg := tlgan.DefaultConfig()
	widths := intsFlag(cfg.DiscriminatorWidths)
	var variant, loss string
	var threads int

	klog.InitFlags(nil)
	flag.StringVar(&cfg.DatasetPath, "d", "", "Path prefix of dataset (every file matching '<path>*' is loaded)")
	flag.StringVar(&cfg.DatasetPath, "dataset_path", "", "Alias for -d")
	flag.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Parent directory for run directories")
	flag.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "Number of epochs")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Batch size (discriminator steps use half of it)")
	flag.IntVar(&cfg.LatentDim, "latent", cfg.LatentDim, "Size of latent space")
	flag.IntVar(&cfg.ImageHeight, "height", cfg.ImageHeight, "Image height")
	flag.IntVar(&cfg.ImageWidth, "width", cfg.ImageWidth, "Image width")
	flag.IntVar(&cfg.BatchesPerEpochDivisor, "batch_divisor", 0, "batches_per_epoch = dataset_size / divisor (0 means 8 for 'plain' and 2 for 'skip')")
	flag.StringVar(&variant, "variant", string(cfg.GeneratorVariant), "Generator variant: plain | skip")
	flag.StringVar(&cfg.OutputActivation, "output_activation", "", "Generator output activation: tanh | linear | relu | sigmoid (empty means tanh for 'plain' and linear for 'skip')")
	flag.BoolVar(&cfg.BatchNorm, "batch_norm", cfg.BatchNorm, "Normalize upsampling stages of 'plain' generator")
	flag.IntVar(&cfg.GeneratorChannels, "generator_channels", cfg.GeneratorChannels, "Channels of first generator feature map")
	flag.Var(&widths, "discriminator_widths", "Comma separated channels of discriminator blocks")
	flag.IntVar(&cfg.DiscriminatorTop, "discriminator_top", cfg.DiscriminatorTop, "Channels of last discriminator convolution")
	flag.StringVar(&loss, "loss", string(cfg.Loss), "Loss: bce | bce_sigmoid | mse")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Random seed (0 means current time)")
	flag.IntVar(&threads, "threads", 0, "Limit of OS threads executing Go code (0 means no limit)")
	flag.Parse()
	defer klog.Flush()

	cfg.GeneratorVariant = tlgan.GeneratorVariant(variant)
	cfg.Loss = tlgan.LossKind(loss)
	cfg.DiscriminatorWidths = widths
	if threads > 0 {
		runtime.GOMAXPROCS(threads)
	}
	if err := run(cfg); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func run(cfg tlgan.Config) error {
	if cfg.DatasetPath == "" {
		return errors.New("Dataset path is required: use -d <path>")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "Invalid configuration")
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	rand.Seed(cfg.Seed)
	rng := rand.New(rand.NewSource(cfg.Seed))

	dataset, err := tlgan.LoadDataset(cfg.DatasetPath, cfg.ImageHeight, cfg.ImageWidth)
	if err != nil {
		return errors.Wrap(err, "Can't load dataset")
	}
	klog.Infof("Loaded %d images of %dx%d from '%s*'", dataset.Len, cfg.ImageHeight, cfg.ImageWidth, cfg.DatasetPath)

	models, err := tlgan.NewModels(cfg)
	if err != nil {
		return errors.Wrap(err, "Can't define models")
	}
	defer models.Close()

	runCtx, err := tlgan.NewRun(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer runCtx.Close()

	trainer, err := tlgan.NewTrainer(cfg, dataset, models, runCtx, rng)
	if err != nil {
		return err
	}
	if err = trainer.Train(); err != nil {
		return errors.Wrap(err, "Training failed")
	}
	klog.Infof("Done. Artifacts are in '%s'", runCtx.Dir())
	return runCtx.Close()
}
