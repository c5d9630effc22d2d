package tlgan

import (
	"fmt"
)

// GeneratorVariant Topology of generator network
type GeneratorVariant string

const (
	// GeneratorPlain Upsampling stack ending with convolution at the exact target resolution
	GeneratorPlain = GeneratorVariant("plain")
	// GeneratorSkip Upsampling stack with concatenated skip branches, followed by explicit resize
	GeneratorSkip = GeneratorVariant("skip")
)

// LossKind Objective used for both discriminator and generator updates
type LossKind string

const (
	// LossBCE Binary cross-entropy on discriminator logits
	LossBCE = LossKind("bce")
	// LossBCESigmoid Binary cross-entropy on probabilities: discriminator head is squashed by sigmoid
	LossBCESigmoid = LossKind("bce_sigmoid")
	// LossMSE Least squares objective on discriminator logits
	LossMSE = LossKind("mse")
)

// Config Hyperparameters of training run
type Config struct {
	// DatasetPath Prefix of dataset files: every file matching '<DatasetPath>*' is loaded
	DatasetPath string
	// OutputDir Parent directory for run directories
	OutputDir string

	ImageHeight int
	ImageWidth  int
	LatentDim   int

	Epochs    int
	BatchSize int
	// BatchesPerEpochDivisor batches_per_epoch = dataset_size / divisor. Zero means default of generator variant
	BatchesPerEpochDivisor int

	// SummaryEvery Summarize performance after every N-th epoch
	SummaryEvery int
	// SummarySamples Number of real and fake samples used for evaluation
	SummarySamples int
	// GridSize Plot GridSize x GridSize generated images
	GridSize int

	GeneratorVariant GeneratorVariant
	// OutputActivation One of 'tanh', 'linear', 'relu', 'sigmoid'. Empty means default of generator variant
	OutputActivation string
	// BatchNorm Normalize generator's upsampling stages (plain variant)
	BatchNorm bool
	// GeneratorChannels Channels of first feature map. Halved on each of four upsampling stages
	GeneratorChannels int
	// SkipBaseSize Spatial size of first feature map for skip variant
	SkipBaseSize int

	// DiscriminatorWidths Channels of convolution blocks, each block halves spatial size
	DiscriminatorWidths []int
	// DiscriminatorTop Channels of last convolution before flatten
	DiscriminatorTop int

	Loss                   LossKind
	DiscriminatorLearnRate float64
	GeneratorLearnRate     float64
	Beta1                  float64

	Seed int64
}

// DefaultConfig Returns default hyperparameters
func DefaultConfig() Config {
	return Config{
		OutputDir:              ".",
		ImageHeight:            64,
		ImageWidth:             64,
		LatentDim:              100,
		Epochs:                 200,
		BatchSize:              128,
		SummaryEvery:           10,
		SummarySamples:         150,
		GridSize:               7,
		GeneratorVariant:       GeneratorPlain,
		BatchNorm:              true,
		GeneratorChannels:      1024,
		SkipBaseSize:           4,
		DiscriminatorWidths:    []int{64, 128, 256, 512},
		DiscriminatorTop:       1024,
		Loss:                   LossBCE,
		DiscriminatorLearnRate: 2e-4,
		GeneratorLearnRate:     3e-4,
		Beta1:                  0.05,
	}
}

// Divisor Returns batches per epoch divisor with respect to generator variant
func (cfg Config) Divisor() int {
	if cfg.BatchesPerEpochDivisor > 0 {
		return cfg.BatchesPerEpochDivisor
	}
	if cfg.GeneratorVariant == GeneratorSkip {
		return 2
	}
	return 8
}

// OutputActivationName Returns generator output activation with respect to generator variant
func (cfg Config) OutputActivationName() string {
	if cfg.OutputActivation != "" {
		return cfg.OutputActivation
	}
	if cfg.GeneratorVariant == GeneratorSkip {
		return "linear"
	}
	return "tanh"
}

// HalfBatch Returns number of samples for each discriminator step
func (cfg Config) HalfBatch() int {
	return cfg.BatchSize / 2
}

// BatchesPerEpoch Returns number of batches for dataset of provided size
func (cfg Config) BatchesPerEpoch(datasetSize int) int {
	return datasetSize / cfg.Divisor()
}

// Validate Checks that hyperparameters are consistent
func (cfg Config) Validate() error {
	if cfg.ImageHeight < 1 || cfg.ImageWidth < 1 {
		return fmt.Errorf("Image size (%d, %d) does not make sense", cfg.ImageHeight, cfg.ImageWidth)
	}
	if cfg.LatentDim < 1 {
		return fmt.Errorf("Latent dimension must be positive, but got %d", cfg.LatentDim)
	}
	if cfg.Epochs < 0 {
		return fmt.Errorf("Number of epochs must be non-negative, but got %d", cfg.Epochs)
	}
	if cfg.BatchSize < 2 {
		return fmt.Errorf("Batch size must be at least 2, but got %d", cfg.BatchSize)
	}
	if cfg.BatchesPerEpochDivisor < 0 {
		return fmt.Errorf("Batches per epoch divisor must be positive, but got %d", cfg.BatchesPerEpochDivisor)
	}
	if cfg.SummaryEvery < 1 {
		return fmt.Errorf("Summary period must be positive, but got %d", cfg.SummaryEvery)
	}
	if cfg.GridSize < 1 {
		return fmt.Errorf("Grid size must be positive, but got %d", cfg.GridSize)
	}
	if cfg.SummarySamples < cfg.GridSize*cfg.GridSize {
		return fmt.Errorf("Summary needs at least %d samples for %dx%d grid, but got %d", cfg.GridSize*cfg.GridSize, cfg.GridSize, cfg.GridSize, cfg.SummarySamples)
	}
	if _, err := ActivationByName(cfg.OutputActivationName()); err != nil {
		return err
	}
	if cfg.GeneratorChannels < 16 {
		return fmt.Errorf("Generator channels must be at least 16 for four upsampling stages, but got %d", cfg.GeneratorChannels)
	}
	switch cfg.GeneratorVariant {
	case GeneratorPlain:
		if cfg.ImageHeight%16 != 0 || cfg.ImageWidth%16 != 0 {
			return fmt.Errorf("Generator variant '%s' needs image size divisible by 16, but got (%d, %d)", cfg.GeneratorVariant, cfg.ImageHeight, cfg.ImageWidth)
		}
	case GeneratorSkip:
		if cfg.SkipBaseSize < 1 {
			return fmt.Errorf("Skip base size must be positive, but got %d", cfg.SkipBaseSize)
		}
	default:
		return fmt.Errorf("Generator variant '%s' is not handled", cfg.GeneratorVariant)
	}
	if len(cfg.DiscriminatorWidths) == 0 {
		return fmt.Errorf("Discriminator must have one convolution block atleast")
	}
	minSize := 1 << uint(len(cfg.DiscriminatorWidths))
	if cfg.ImageHeight < minSize || cfg.ImageWidth < minSize {
		return fmt.Errorf("Discriminator with %d blocks needs images of at least %dx%d", len(cfg.DiscriminatorWidths), minSize, minSize)
	}
	for i, w := range cfg.DiscriminatorWidths {
		if w < 1 {
			return fmt.Errorf("Discriminator block #%d has %d channels", i, w)
		}
	}
	if cfg.DiscriminatorTop < 1 {
		return fmt.Errorf("Discriminator top must have positive channels, but got %d", cfg.DiscriminatorTop)
	}
	switch cfg.Loss {
	case LossBCE, LossBCESigmoid, LossMSE:
	default:
		return fmt.Errorf("Loss '%s' is not handled", cfg.Loss)
	}
	if cfg.DiscriminatorLearnRate <= 0 || cfg.GeneratorLearnRate <= 0 {
		return fmt.Errorf("Learn rates must be positive")
	}
	return nil
}
