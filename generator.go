package tlgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GeneratorNet Abstraction for generator part of GAN: maps latent vectors (n, latentDim) to images (n, 3, H, W)
//
// net - layers and parameter storage
// passes - inference graphs cached by batch size
//
type GeneratorNet struct {
	net       *Network
	latentDim int
	height    int
	width     int

	passes map[int]*generatorPass
}

// generatorPass Inference graph of generator for certain batch size
type generatorPass struct {
	g        *gorgonia.ExprGraph
	input    *gorgonia.Node
	outValue gorgonia.Value
	tm       gorgonia.VM
}

// NewGenerator Constructor for GeneratorNet. Topology is picked by cfg.GeneratorVariant
func NewGenerator(cfg Config) (*GeneratorNet, error) {
	var layers []*Layer
	var err error
	switch cfg.GeneratorVariant {
	case GeneratorPlain:
		layers, err = PlainGeneratorLayers(cfg)
	case GeneratorSkip:
		layers, err = SkipGeneratorLayers(cfg)
	default:
		err = fmt.Errorf("Generator variant '%s' is not handled", cfg.GeneratorVariant)
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return &GeneratorNet{
		net: &Network{
			Name:   "generator",
			Layers: layers,
		},
		latentDim: cfg.LatentDim,
		height:    cfg.ImageHeight,
		width:     cfg.ImageWidth,
		passes:    make(map[int]*generatorPass),
	}, nil
}

// PlainGeneratorLayers Returns layers of plain generator:
//
// linear(latent => C*h*w) => reshape(C, h, w) => 4 x [upsample(x2) => conv(3x3) => batchnorm => leaky relu] => conv(3x3, 3 channels)
//
// where h = H/16, w = W/16 and channels are halved on every stage
//
func PlainGeneratorLayers(cfg Config) ([]*Layer, error) {
	if cfg.ImageHeight%16 != 0 || cfg.ImageWidth%16 != 0 {
		return nil, fmt.Errorf("Plain generator needs image size divisible by 16, but got (%d, %d)", cfg.ImageHeight, cfg.ImageWidth)
	}
	outActivation, err := ActivationByName(cfg.OutputActivationName())
	if err != nil {
		return nil, err
	}
	h0, w0 := cfg.ImageHeight/16, cfg.ImageWidth/16
	channels := cfg.GeneratorChannels
	layers := []*Layer{
		NewLinear(cfg.LatentDim, channels*h0*w0, false, LeakyReLU(0.2)),
		NewReshape(channels, h0, w0),
	}
	for stage := 0; stage < 4; stage++ {
		next := channels / 2
		layers = append(layers, NewUpsample(2))
		if cfg.BatchNorm {
			layers = append(layers, NewConv(channels, next, 3, NoActivation), NewBatchNorm(LeakyReLU(0.2)))
		} else {
			layers = append(layers, NewConv(channels, next, 3, LeakyReLU(0.2)))
		}
		channels = next
	}
	layers = append(layers, NewConv(channels, 3, 3, outActivation))
	return layers, nil
}

// SkipGeneratorLayers Returns layers of U-Net-style generator:
//
// linear(latent => C*b*b) => reshape(C, b, b) => conv(3x3)
// => 4 x [upsample(x2) => concat(identity, conv(3x3)) => conv(3x3) => conv(3x3)]
// => conv(3x3, 3 channels) => resize(H, W)
//
// where b = cfg.SkipBaseSize. Target size is arbitrary.
//
func SkipGeneratorLayers(cfg Config) ([]*Layer, error) {
	outActivation, err := ActivationByName(cfg.OutputActivationName())
	if err != nil {
		return nil, err
	}
	base := cfg.SkipBaseSize
	if base < 1 {
		return nil, fmt.Errorf("Skip generator base size must be positive, but got %d", base)
	}
	channels := cfg.GeneratorChannels
	layers := []*Layer{
		NewLinear(cfg.LatentDim, channels*base*base, false, LeakyReLU(0.2)),
		NewReshape(channels, base, base),
		NewConv(channels, channels, 3, Rectify),
	}
	for stage := 0; stage < 4; stage++ {
		half := channels / 2
		layers = append(layers,
			NewUpsample(2),
			NewBranches(
				[]*Layer{},
				[]*Layer{NewConv(channels, half, 3, Rectify)},
			),
			NewConv(channels+half, half, 3, Rectify),
			NewConv(half, half, 3, Rectify),
		)
		channels = half
	}
	layers = append(layers,
		NewConv(channels, 3, 3, outActivation),
		NewResize(cfg.ImageHeight, cfg.ImageWidth),
	)
	return layers, nil
}

// Network Returns underlying network
func (net *GeneratorNet) Network() *Network {
	return net.net
}

// LatentDim Returns size of latent vector
func (net *GeneratorNet) LatentDim() int {
	return net.latentDim
}

// ImageShape Returns shape of single generated image (channels, height, width)
func (net *GeneratorNet) ImageShape() tensor.Shape {
	return tensor.Shape{3, net.height, net.width}
}

// Bind Places generator onto provided graph with latent input node of shape (batchSize, latentDim)
func (net *GeneratorNet) Bind(g *gorgonia.ExprGraph, input *gorgonia.Node, batchSize int) (*Bound, error) {
	bound, err := net.net.Bind(g, input, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	want := append(tensor.Shape{batchSize}, net.ImageShape()...)
	if !bound.Out().Shape().Eq(want) {
		return nil, fmt.Errorf("Generator produces shape %v, but %v is expected", bound.Out().Shape(), want)
	}
	return bound, nil
}

func (net *GeneratorNet) pass(batchSize int) (*generatorPass, error) {
	if p, ok := net.passes[batchSize]; ok {
		return p, nil
	}
	g := gorgonia.NewGraph()
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, net.latentDim), gorgonia.WithName("generator_input"))
	bound, err := net.Bind(g, input, batchSize)
	if err != nil {
		return nil, err
	}
	p := &generatorPass{
		g:     g,
		input: input,
	}
	gorgonia.Read(bound.Out(), &p.outValue)
	p.tm = gorgonia.NewTapeMachine(g)
	net.passes[batchSize] = p
	return p, nil
}

// Generate Runs inference for latent batch z of shape (n, latentDim). Returns images of shape (n, 3, H, W)
func (net *GeneratorNet) Generate(z *tensor.Dense) (*tensor.Dense, error) {
	shp := z.Shape()
	if shp.Dims() != 2 || shp[1] != net.latentDim {
		return nil, fmt.Errorf("Generator expects latent batch of shape (n, %d), but got %v", net.latentDim, shp)
	}
	p, err := net.pass(shp[0])
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare generator inference graph")
	}
	if err = gorgonia.Let(p.input, z); err != nil {
		return nil, errors.Wrap(err, "Can't init input value")
	}
	err = p.tm.RunAll()
	p.tm.Reset()
	if err != nil {
		return nil, errors.Wrap(err, "Can't run VM")
	}
	out, ok := p.outValue.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Generator output has unexpected type %T", p.outValue)
	}
	return out.Clone().(*tensor.Dense), nil
}

// Save Writes parameters of generator to provided path
func (net *GeneratorNet) Save(path string) error {
	return SaveCheckpoint(path, net.net)
}

// Load Reads parameters of generator from provided path
func (net *GeneratorNet) Load(path string) error {
	return LoadCheckpoint(path, net.net)
}

// Close Releases inference machines
func (net *GeneratorNet) Close() error {
	for batchSize, p := range net.passes {
		p.tm.Close()
		delete(net.passes, batchSize)
	}
	return nil
}
