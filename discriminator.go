package tlgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DiscriminatorNet Abstraction for discriminator part of GAN. It's simple neural network actually.
//
// Output of last layer is a single logit per image (unless loss kind squashes it by sigmoid).
//
type DiscriminatorNet struct {
	net       *Network
	height    int
	width     int
	lossFn    LossFunc
	threshold float64
	solver    gorgonia.Solver

	train map[int]*discriminatorPass
	eval  map[int]*discriminatorPass
}

type discriminatorPass struct {
	g          *gorgonia.ExprGraph
	input      *gorgonia.Node
	target     *gorgonia.Node
	learnables gorgonia.Nodes
	outValue   gorgonia.Value
	costValue  gorgonia.Value
	tm         gorgonia.VM
}

// NewDiscriminator Constructor for DiscriminatorNet
func NewDiscriminator(cfg Config) (*DiscriminatorNet, error) {
	layers, err := DiscriminatorLayers(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	lossFn, threshold, err := lossForKind(cfg.Loss)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return &DiscriminatorNet{
		net: &Network{
			Name:   "discriminator",
			Layers: layers,
		},
		height:    cfg.ImageHeight,
		width:     cfg.ImageWidth,
		lossFn:    lossFn,
		threshold: threshold,
		solver:    gorgonia.NewAdamSolver(gorgonia.WithLearnRate(cfg.DiscriminatorLearnRate), gorgonia.WithBeta1(cfg.Beta1)),
		train:     make(map[int]*discriminatorPass),
		eval:      make(map[int]*discriminatorPass),
	}, nil
}

// DiscriminatorLayers Returns layers of discriminator:
//
// for each width: [conv(3x3, same) => conv(3x3, same) => maxpool(2x2)] => conv(3x3, same, top) => flatten => linear(1)
//
func DiscriminatorLayers(cfg Config) ([]*Layer, error) {
	if len(cfg.DiscriminatorWidths) == 0 {
		return nil, fmt.Errorf("Discriminator must have one convolution block atleast")
	}
	head := NoActivation
	if cfg.Loss == LossBCESigmoid {
		head = Sigmoid
	}
	layers := make([]*Layer, 0, 3*len(cfg.DiscriminatorWidths)+3)
	channels := 3
	h, w := cfg.ImageHeight, cfg.ImageWidth
	for _, width := range cfg.DiscriminatorWidths {
		layers = append(layers,
			NewConv(channels, width, 3, Rectify),
			NewConv(width, width, 3, Rectify),
			NewMaxPool(2),
		)
		channels = width
		h, w = h/2, w/2
		if h < 1 || w < 1 {
			return nil, fmt.Errorf("Image size (%d, %d) is too small for %d blocks", cfg.ImageHeight, cfg.ImageWidth, len(cfg.DiscriminatorWidths))
		}
	}
	layers = append(layers,
		NewConv(channels, cfg.DiscriminatorTop, 3, Rectify),
		NewFlatten(),
		NewLinear(cfg.DiscriminatorTop*h*w, 1, true, head),
	)
	return layers, nil
}

// Network Returns underlying network
func (net *DiscriminatorNet) Network() *Network {
	return net.net
}

// Bind Places discriminator onto provided graph with image input node of shape (batchSize, 3, H, W)
func (net *DiscriminatorNet) Bind(g *gorgonia.ExprGraph, input *gorgonia.Node, batchSize int) (*Bound, error) {
	bound, err := net.net.Bind(g, input, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return bound, nil
}

func (net *DiscriminatorNet) pass(batchSize int, training bool) (*discriminatorPass, error) {
	cache := net.eval
	if training {
		cache = net.train
	}
	if p, ok := cache[batchSize]; ok {
		return p, nil
	}
	g := gorgonia.NewGraph()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, 3, net.height, net.width), gorgonia.WithName("discriminator_input"))
	bound, err := net.Bind(g, input, batchSize)
	if err != nil {
		return nil, err
	}
	target := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, 1), gorgonia.WithName("discriminator_target"))
	cost, err := net.lossFn(bound.Out(), target)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define discriminator loss")
	}
	gorgonia.WithName("discriminator_loss")(cost)
	p := &discriminatorPass{
		g:          g,
		input:      input,
		target:     target,
		learnables: bound.Learnables(),
	}
	gorgonia.Read(bound.Out(), &p.outValue)
	gorgonia.Read(cost, &p.costValue)
	if training {
		if _, err = gorgonia.Grad(cost, p.learnables...); err != nil {
			return nil, errors.Wrap(err, "Can't define discriminator gradients")
		}
		p.tm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(p.learnables...))
	} else {
		p.tm = gorgonia.NewTapeMachine(g)
	}
	cache[batchSize] = p
	return p, nil
}

func (net *DiscriminatorNet) run(p *discriminatorPass, x, y *tensor.Dense) error {
	if err := gorgonia.Let(p.input, x); err != nil {
		return errors.Wrap(err, "Can't init input value")
	}
	if err := gorgonia.Let(p.target, y); err != nil {
		return errors.Wrap(err, "Can't init target value")
	}
	if err := p.tm.RunAll(); err != nil {
		return errors.Wrap(err, "Can't run VM")
	}
	return nil
}

// Step Does single optimizer step on batch of images x (n, 3, H, W) with labels y (n, 1). Returns loss before update
func (net *DiscriminatorNet) Step(x, y *tensor.Dense) (float64, error) {
	p, err := net.pass(x.Shape()[0], true)
	if err != nil {
		return 0, errors.Wrap(err, "Can't prepare discriminator training graph")
	}
	defer p.tm.Reset()
	if err = net.run(p, x, y); err != nil {
		return 0, err
	}
	if err = net.solver.Step(gorgonia.NodesToValueGrads(p.learnables)); err != nil {
		return 0, errors.Wrap(err, "Can't do solver step for discriminator")
	}
	return scalarValue(p.costValue)
}

// Evaluate Returns loss and accuracy in [0, 1] for batch of images x (n, 3, H, W) with labels y (n, 1). Parameters are not updated
func (net *DiscriminatorNet) Evaluate(x, y *tensor.Dense) (float64, float64, error) {
	p, err := net.pass(x.Shape()[0], false)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Can't prepare discriminator evaluation graph")
	}
	defer p.tm.Reset()
	if err = net.run(p, x, y); err != nil {
		return 0, 0, err
	}
	loss, err := scalarValue(p.costValue)
	if err != nil {
		return 0, 0, err
	}
	scores, ok := p.outValue.Data().([]float64)
	if !ok {
		return 0, 0, fmt.Errorf("Discriminator output has unexpected type %T", p.outValue.Data())
	}
	labels, ok := y.Data().([]float64)
	if !ok {
		return 0, 0, fmt.Errorf("Labels have unexpected type %T", y.Data())
	}
	return loss, Accuracy(scores, labels, net.threshold), nil
}

// Close Releases machines
func (net *DiscriminatorNet) Close() error {
	for _, cache := range []map[int]*discriminatorPass{net.train, net.eval} {
		for batchSize, p := range cache {
			p.tm.Close()
			delete(cache, batchSize)
		}
	}
	return nil
}

// Accuracy Returns share of scores falling on the same side of threshold as their labels (label > 0.5 means 'real')
func Accuracy(scores, labels []float64, threshold float64) float64 {
	if len(scores) == 0 || len(scores) != len(labels) {
		return 0
	}
	correct := 0
	for i := range scores {
		if (scores[i] > threshold) == (labels[i] > 0.5) {
			correct++
		}
	}
	return float64(correct) / float64(len(scores))
}

func scalarValue(v gorgonia.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("Value has not been computed")
	}
	switch data := v.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) == 1 {
			return data[0], nil
		}
	}
	return 0, fmt.Errorf("Value of type %T is not a scalar", v.Data())
}
