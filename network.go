package tlgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network Abstraction for neural network.
//
// Layers - simple sequence of layers
// Network itself holds no graph: call Bind to place it onto expression graph with certain batch size.
//
type Network struct {
	Name   string
	Layers []*Layer
}

// Bound Network placed onto expression graph
//
// out - alias to activated output of last layer
// learnables - parameter nodes created for this binding
//
type Bound struct {
	out        *gorgonia.Node
	learnables gorgonia.Nodes
	batchSize  int
}

// Out Returns reference to output node
func (b *Bound) Out() *gorgonia.Node {
	return b.out
}

// Learnables Returns learnables nodes
func (b *Bound) Learnables() gorgonia.Nodes {
	return b.learnables
}

// BatchSize Returns batch size the network has been bound with
func (b *Bound) BatchSize() int {
	return b.batchSize
}

// Params Returns parameter storage of every layer in stable order
func (net *Network) Params() []*tensor.Dense {
	params := make([]*tensor.Dense, 0, 2*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			params = append(params, l.Params()...)
		}
	}
	return params
}

// NumParams Returns total number of scalar parameters
func (net *Network) NumParams() int {
	total := 0
	for _, p := range net.Params() {
		total += p.Shape().TotalSize()
	}
	return total
}

// Bind Initializates feedforward for provided input
//
// g - expression graph
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *Network) Bind(g *gorgonia.ExprGraph, input *gorgonia.Node, batchSize int) (*Bound, error) {
	networkName := "network"
	if net.Name != "" {
		networkName = net.Name
	}
	if len(net.Layers) == 0 {
		return nil, fmt.Errorf("Network '%s' must have one layer atleast", networkName)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("Network '%s' can't be bound with batch size %d", networkName, batchSize)
	}
	b := &binding{
		g:         g,
		batchSize: batchSize,
	}
	out, err := forwardSequence(b, networkName, net.Layers, input)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Network '%s']", networkName))
	}
	gorgonia.WithName(fmt.Sprintf("%s_out", networkName))(out)
	return &Bound{
		out:        out,
		learnables: b.learnables,
		batchSize:  batchSize,
	}, nil
}
