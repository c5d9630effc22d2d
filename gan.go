package tlgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GAN Combined adversarial model: Generator => Discriminator on single graph.
//
// Discriminator part is bound to the very same parameter storage as trained discriminator,
// but gradients are requested for Generator's learnables only and only Generator's solver is stepped.
// So discriminator stays frozen during GAN step and always sees its latest weights.
//
type GAN struct {
	generatorPart     *GeneratorNet
	discriminatorPart *DiscriminatorNet
	batchSize         int

	g             *gorgonia.ExprGraph
	input         *gorgonia.Node
	target        *gorgonia.Node
	out           *gorgonia.Node
	learnablesGen gorgonia.Nodes
	costValue     gorgonia.Value
	tm            gorgonia.VM
	solver        gorgonia.Solver
}

// NewGAN Defines combined model for generator updates on batches of provided size
func NewGAN(definedGenerator *GeneratorNet, definedDiscriminator *DiscriminatorNet, batchSize int, cfg Config) (*GAN, error) {
	if definedGenerator == nil || definedDiscriminator == nil {
		return nil, fmt.Errorf("GAN needs both Generator and Discriminator")
	}
	g := gorgonia.NewGraph()
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, definedGenerator.LatentDim()), gorgonia.WithName("gan_input"))
	generatorBound, err := definedGenerator.Bind(g, input, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[GAN]")
	}
	discriminatorBound, err := definedDiscriminator.Bind(g, generatorBound.Out(), batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[GAN]")
	}
	target := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, 1), gorgonia.WithName("gan_discriminator_target"))
	cost, err := definedDiscriminator.lossFn(discriminatorBound.Out(), target)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define GAN loss")
	}
	gorgonia.WithName("gan_discriminator_loss")(cost)
	// Define gradients for Generator part only
	if _, err = gorgonia.Grad(cost, generatorBound.Learnables()...); err != nil {
		return nil, errors.Wrap(err, "Can't define GAN gradients")
	}
	definedGAN := &GAN{
		generatorPart:     definedGenerator,
		discriminatorPart: definedDiscriminator,
		batchSize:         batchSize,
		g:                 g,
		input:             input,
		target:            target,
		out:               discriminatorBound.Out(),
		learnablesGen:     generatorBound.Learnables(),
		solver:            gorgonia.NewAdamSolver(gorgonia.WithLearnRate(cfg.GeneratorLearnRate), gorgonia.WithBeta1(cfg.Beta1)),
	}
	gorgonia.Read(cost, &definedGAN.costValue)
	definedGAN.tm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(definedGAN.learnablesGen...))
	return definedGAN, nil
}

// Out Returns reference to output node
func (net *GAN) Out() *gorgonia.Node {
	return net.out
}

// GeneratorLearnables Returns learnables nodes of generator part
func (net *GAN) GeneratorLearnables() gorgonia.Nodes {
	return net.learnablesGen
}

// Step Does single optimizer step of generator for latent batch z (n, latentDim) and labels y (n, 1).
// Returns loss before update
func (net *GAN) Step(z, y *tensor.Dense) (float64, error) {
	if z.Shape()[0] != net.batchSize {
		return 0, fmt.Errorf("GAN has been defined for batch size %d, but got %d", net.batchSize, z.Shape()[0])
	}
	defer net.tm.Reset()
	if err := gorgonia.Let(net.input, z); err != nil {
		return 0, errors.Wrap(err, "Can't init input value")
	}
	if err := gorgonia.Let(net.target, y); err != nil {
		return 0, errors.Wrap(err, "Can't init target value")
	}
	if err := net.tm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "Can't run VM")
	}
	if err := net.solver.Step(gorgonia.NodesToValueGrads(net.learnablesGen)); err != nil {
		return 0, errors.Wrap(err, "Can't do solver step for generator")
	}
	return scalarValue(net.costValue)
}

// Close Releases machine
func (net *GAN) Close() error {
	return net.tm.Close()
}
