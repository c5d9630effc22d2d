package tlgan

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

// ActivationFunc Just an alias to Gorgonia'a api_gen.go - https://github.com/gorgonia/gorgonia/blob/master/api_gen.go#L1
type ActivationFunc func(a *gorgonia.Node) (*gorgonia.Node, error)

func NoActivation(a *gorgonia.Node) (*gorgonia.Node, error) { return a, nil }
func Tanh(a *gorgonia.Node) (*gorgonia.Node, error)         { return gorgonia.Tanh(a) }
func Sigmoid(a *gorgonia.Node) (*gorgonia.Node, error)      { return gorgonia.Sigmoid(a) }
func Rectify(a *gorgonia.Node) (*gorgonia.Node, error)      { return gorgonia.Rectify(a) }
func Softplus(a *gorgonia.Node) (*gorgonia.Node, error)     { return gorgonia.Softplus(a) }

// LeakyReLU Returns leaky rectifier with provided slope for negative inputs
func LeakyReLU(alpha float64) ActivationFunc {
	return func(a *gorgonia.Node) (*gorgonia.Node, error) {
		return gorgonia.LeakyRelu(a, alpha)
	}
}

// ActivationByName Returns activation function for its configuration name.
//
// Recognized names: "tanh", "linear" (or "none"), "relu", "sigmoid"
//
func ActivationByName(name string) (ActivationFunc, error) {
	switch name {
	case "tanh":
		return Tanh, nil
	case "linear", "none", "":
		return NoActivation, nil
	case "relu":
		return Rectify, nil
	case "sigmoid":
		return Sigmoid, nil
	default:
		return nil, fmt.Errorf("Activation '%s' is not handled", name)
	}
}
