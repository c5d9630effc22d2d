package tlgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Single step of sequential network.
//
// Weights/Bias - parameter storage. Storage is shared by every expression graph the layer is bound to,
// so an optimizer step on one graph is visible to all others.
// Activation - applied to the output of the layer (NoActivation when nil)
//
type Layer struct {
	Type       LayerType
	Activation ActivationFunc

	Weights *tensor.Dense
	Bias    *tensor.Dense

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int

	// ReshapeDims Per-sample dimensions (batch dimension is prepended on binding)
	ReshapeDims []int
	// Scale Upsampling factor
	Scale int
	// Target spatial size for LayerResize
	TargetHeight int
	TargetWidth  int
	// Momentum and Epsilon for LayerBatchNorm
	Momentum float64
	Epsilon  float64
	// Branches Parallel sub-sequences for LayerBranches. Outputs are concatenated along channel axis.
	// Empty branch is an identity (skip connection).
	Branches [][]*Layer
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerMaxpool
	LayerReshape
	LayerUpsample
	LayerBatchNorm
	LayerResize
	LayerBranches
)

func (lt LayerType) String() string {
	switch lt {
	case LayerLinear:
		return "linear"
	case LayerFlatten:
		return "flatten"
	case LayerConvolutional:
		return "conv2d"
	case LayerMaxpool:
		return "maxpool2d"
	case LayerReshape:
		return "reshape"
	case LayerUpsample:
		return "upsample2d"
	case LayerBatchNorm:
		return "batchnorm"
	case LayerResize:
		return "resize"
	case LayerBranches:
		return "branches"
	default:
		return fmt.Sprintf("layer(%d)", uint16(lt))
	}
}

var (
	allowedNoWeights = []LayerType{LayerMaxpool, LayerFlatten, LayerReshape, LayerUpsample, LayerBatchNorm, LayerResize, LayerBranches}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// NewLinear Fully connected layer: y = x @ W^T + b. W has shape (out, in), b has shape (1, out).
func NewLinear(in, out int, withBias bool, activation ActivationFunc) *Layer {
	l := &Layer{
		Type:       LayerLinear,
		Activation: activation,
		Weights:    glorotDense(out, in),
	}
	if withBias {
		l.Bias = tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(1, out))
	}
	return l
}

// NewConv 'Same' padded convolution with stride 1. Kernel has shape (outChannels, inChannels, size, size).
func NewConv(inChannels, outChannels, size int, activation ActivationFunc) *Layer {
	return &Layer{
		Type:         LayerConvolutional,
		Activation:   activation,
		Weights:      glorotDense(outChannels, inChannels, size, size),
		KernelHeight: size,
		KernelWidth:  size,
		Padding:      []int{size / 2, size / 2},
		Stride:       []int{1, 1},
		Dilation:     []int{1, 1},
	}
}

func NewMaxPool(size int) *Layer {
	return &Layer{
		Type:         LayerMaxpool,
		Activation:   NoActivation,
		KernelHeight: size,
		KernelWidth:  size,
		Padding:      []int{0, 0},
		Stride:       []int{size, size},
	}
}

func NewFlatten() *Layer {
	return &Layer{Type: LayerFlatten, Activation: NoActivation}
}

func NewReshape(dims ...int) *Layer {
	return &Layer{Type: LayerReshape, Activation: NoActivation, ReshapeDims: dims}
}

func NewUpsample(scale int) *Layer {
	return &Layer{Type: LayerUpsample, Activation: NoActivation, Scale: scale}
}

// NewBatchNorm Normalization over batch statistics. Activation is applied to normalized output.
func NewBatchNorm(activation ActivationFunc) *Layer {
	return &Layer{Type: LayerBatchNorm, Activation: activation, Momentum: 0.99, Epsilon: 1e-3}
}

func NewResize(height, width int) *Layer {
	return &Layer{Type: LayerResize, Activation: NoActivation, TargetHeight: height, TargetWidth: width}
}

func NewBranches(branches ...[]*Layer) *Layer {
	return &Layer{Type: LayerBranches, Activation: NoActivation, Branches: branches}
}

// Params Returns parameter storage of layer (including nested branches) in stable order
func (l *Layer) Params() []*tensor.Dense {
	params := make([]*tensor.Dense, 0, 2)
	if l.Weights != nil {
		params = append(params, l.Weights)
	}
	if l.Bias != nil {
		params = append(params, l.Bias)
	}
	for _, branch := range l.Branches {
		for _, sub := range branch {
			if sub != nil {
				params = append(params, sub.Params()...)
			}
		}
	}
	return params
}

// binding Holds state of binding network(s) to certain expression graph
type binding struct {
	g          *gorgonia.ExprGraph
	batchSize  int
	learnables gorgonia.Nodes
}

func (b *binding) param(name string, v *tensor.Dense) *gorgonia.Node {
	n := gorgonia.NewTensor(b.g, gorgonia.Float64, v.Dims(), gorgonia.WithShape(v.Shape().Clone()...), gorgonia.WithName(name), gorgonia.WithValue(v))
	b.learnables = append(b.learnables, n)
	return n
}

// Fwd Initializates feedforward for provided input. Returns non-activated output
func (l *Layer) Fwd(b *binding, name string, input *gorgonia.Node) (*gorgonia.Node, error) {
	if l.Weights == nil && !noWeightsAllowed(l.Type) {
		return nil, fmt.Errorf("Layer '%s' of type '%s' has nil weights", name, l.Type)
	}
	switch l.Type {
	case LayerLinear:
		weights := b.param(name+"_w", l.Weights)
		tOp, err := gorgonia.Transpose(weights)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		out, err := gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
		if l.Bias == nil {
			return out, nil
		}
		bias := b.param(name+"_b", l.Bias)
		if b.batchSize < 2 {
			out, err = gorgonia.Add(out, bias)
			if err != nil {
				return nil, errors.Wrap(err, "Can't add bias to non-activated output")
			}
			return out, nil
		}
		out, err = gorgonia.BroadcastAdd(out, bias, nil, []byte{0})
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't add [in broadcast term with batch_size = %d] bias to non-activated output", b.batchSize))
		}
		return out, nil
	case LayerConvolutional:
		kernel := b.param(name+"_w", l.Weights)
		out, err := gorgonia.Conv2d(input, kernel, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
		return out, nil
	case LayerMaxpool:
		out, err := gorgonia.MaxPool2D(input, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't maxpool[2D] input by kernel")
		}
		return out, nil
	case LayerFlatten:
		out, err := gorgonia.Reshape(input, tensor.Shape{b.batchSize, input.Shape().TotalSize() / b.batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
		return out, nil
	case LayerReshape:
		shp := append(tensor.Shape{b.batchSize}, l.ReshapeDims...)
		out, err := gorgonia.Reshape(input, shp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't reshape input")
		}
		return out, nil
	case LayerUpsample:
		out, err := gorgonia.Upsample2D(input, l.Scale)
		if err != nil {
			return nil, errors.Wrap(err, "Can't upsample[2D] input")
		}
		return out, nil
	case LayerBatchNorm:
		// Affine part is kept constant: gorgonia expects scale and bias of the whole input shape,
		// which would tie parameters to one batch size.
		scale := gorgonia.NewTensor(b.g, gorgonia.Float64, input.Dims(), gorgonia.WithShape(input.Shape().Clone()...), gorgonia.WithName(name+"_scale"), gorgonia.WithInit(gorgonia.Ones()))
		shift := gorgonia.NewTensor(b.g, gorgonia.Float64, input.Dims(), gorgonia.WithShape(input.Shape().Clone()...), gorgonia.WithName(name+"_shift"), gorgonia.WithInit(gorgonia.Zeroes()))
		out, _, _, _, err := gorgonia.BatchNorm(input, scale, shift, l.Momentum, l.Epsilon)
		if err != nil {
			return nil, errors.Wrap(err, "Can't normalize input")
		}
		return out, nil
	case LayerResize:
		out, err := resizeNode(b.g, name, input, l.TargetHeight, l.TargetWidth)
		if err != nil {
			return nil, errors.Wrap(err, "Can't resize input")
		}
		return out, nil
	case LayerBranches:
		if len(l.Branches) == 0 {
			return nil, fmt.Errorf("Layer '%s' has no branches", name)
		}
		outs := make(gorgonia.Nodes, 0, len(l.Branches))
		for i, branch := range l.Branches {
			out, err := forwardSequence(b, fmt.Sprintf("%s_br%d", name, i), branch, input)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("[Branch #%d]", i))
			}
			outs = append(outs, out)
		}
		if len(outs) == 1 {
			return outs[0], nil
		}
		out, err := gorgonia.Concat(1, outs...)
		if err != nil {
			return nil, errors.Wrap(err, "Can't concatenate branches")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("Layer's type '%d' (uint16) is not handled", l.Type)
	}
}

// forwardSequence Feedforward input through sequence of layers. Empty sequence returns input as is.
func forwardSequence(b *binding, prefix string, layers []*Layer, input *gorgonia.Node) (*gorgonia.Node, error) {
	last := input
	for i, l := range layers {
		if l == nil {
			return nil, fmt.Errorf("%s layer #%d is nil", prefix, i)
		}
		name := fmt.Sprintf("%s_%d", prefix, i)
		nonActivated, err := l.Fwd(b, name, last)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[%s, Layer #%d (%s)] Can't feedforward input before activation", prefix, i, l.Type))
		}
		activation := l.Activation
		if activation == nil {
			activation = NoActivation
		}
		activated, err := activation(nonActivated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of %s layer #%d", prefix, i))
		}
		last = activated
	}
	return last, nil
}

func glorotDense(shape ...int) *tensor.Dense {
	backing := gorgonia.GlorotN(1.0)(tensor.Float64, shape...)
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}
