package tlgan

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ImageGenerator Anything producing image batch (n, 3, H, W) for latent batch (n, latentDim)
type ImageGenerator interface {
	Generate(z *tensor.Dense) (*tensor.Dense, error)
}

// NormRandDense Return reference to tensor.Dense of shape (batchSize, n) filled with standard normally distributed float64 values
func NormRandDense(rng *rand.Rand, batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// Labels Returns column (n, 1) filled with provided value
func Labels(n int, value float64) *tensor.Dense {
	data := make([]float64, n)
	for i := range data {
		data[i] = value
	}
	return tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(data))
}

// RealSamples Selects n images uniformly at random with replacement. Labels are ones ('real' class)
func RealSamples(rng *rand.Rand, ds *Dataset, n int) (*tensor.Dense, *tensor.Dense, error) {
	if ds == nil || ds.Len == 0 {
		return nil, nil, fmt.Errorf("Can't sample from empty dataset")
	}
	if n < 1 {
		return nil, nil, fmt.Errorf("Number of samples must be positive, but got %d", n)
	}
	size := 3 * ds.Height * ds.Width
	data := make([]float64, n*size)
	for i := 0; i < n; i++ {
		copy(data[i*size:(i+1)*size], ds.Sample(rng.Intn(ds.Len)))
	}
	x := tensor.New(tensor.WithShape(n, 3, ds.Height, ds.Width), tensor.WithBacking(data))
	return x, Labels(n, 1), nil
}

// LatentPoints Generates n points of latent space as input for generator: shape (n, dim)
func LatentPoints(rng *rand.Rand, dim, n int) *tensor.Dense {
	return NormRandDense(rng, n, dim)
}

// FakeSamples Uses generator to generate n fake images. Labels are zeros ('fake' class)
func FakeSamples(rng *rand.Rand, g ImageGenerator, dim, n int) (*tensor.Dense, *tensor.Dense, error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("Number of samples must be positive, but got %d", n)
	}
	x, err := g.Generate(LatentPoints(rng, dim, n))
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't generate fake samples")
	}
	return x, Labels(n, 0), nil
}
