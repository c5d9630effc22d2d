package tlgan

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// BilinearWeights Returns (out, in) matrix M so that y = M @ x resizes 1-D signal x of length 'in' to length 'out'.
// Sampling uses half-pixel centers; every row sums to 1. For in == out M is identity.
func BilinearWeights(in, out int) [][]float64 {
	m := make([][]float64, out)
	ratio := float64(in) / float64(out)
	for i := range m {
		m[i] = make([]float64, in)
		src := (float64(i)+0.5)*ratio - 0.5
		if src < 0 {
			src = 0
		}
		if src > float64(in-1) {
			src = float64(in - 1)
		}
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i1 > in-1 {
			i1 = in - 1
		}
		frac := src - float64(i0)
		m[i][i0] += 1 - frac
		m[i][i1] += frac
	}
	return m
}

// transposedWeightsDense Returns M^T as (in, out) dense
func transposedWeightsDense(in, out int) *tensor.Dense {
	m := BilinearWeights(in, out)
	backing := make([]float64, in*out)
	for i := 0; i < out; i++ {
		for j := 0; j < in; j++ {
			backing[j*out+i] = m[i][j]
		}
	}
	return tensor.New(tensor.WithShape(in, out), tensor.WithBacking(backing))
}

// resizeNode Bilinear resize of NCHW node to (height, width).
//
// Resize is expressed as two matrix products with constant interpolation matrices, so gradients flow through it:
// rows are resized first, then columns.
//
func resizeNode(g *gorgonia.ExprGraph, name string, x *gorgonia.Node, height, width int) (*gorgonia.Node, error) {
	shp := x.Shape()
	if shp.Dims() != 4 {
		return nil, fmt.Errorf("Resize expects 4-D input (N, C, H, W), but got shape %v", shp)
	}
	if height < 1 || width < 1 {
		return nil, fmt.Errorf("Resize target (%d, %d) does not make sense", height, width)
	}
	n, c, h, w := shp[0], shp[1], shp[2], shp[3]
	if h == height && w == width {
		return x, nil
	}
	rw := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(w, width), gorgonia.WithName(name+"_rw"), gorgonia.WithValue(transposedWeightsDense(w, width)))
	rh := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(h, height), gorgonia.WithName(name+"_rh"), gorgonia.WithValue(transposedWeightsDense(h, height)))

	rows, err := gorgonia.Reshape(x, tensor.Shape{n * c * h, w})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape input to rows")
	}
	rows, err = gorgonia.Mul(rows, rw)
	if err != nil {
		return nil, errors.Wrap(err, "Can't resize rows")
	}
	cols, err := gorgonia.Reshape(rows, tensor.Shape{n, c, h, width})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape resized rows")
	}
	cols, err = gorgonia.Transpose(cols, 0, 1, 3, 2)
	if err != nil {
		return nil, errors.Wrap(err, "Can't swap spatial axes")
	}
	cols, err = gorgonia.Reshape(cols, tensor.Shape{n * c * width, h})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape input to columns")
	}
	cols, err = gorgonia.Mul(cols, rh)
	if err != nil {
		return nil, errors.Wrap(err, "Can't resize columns")
	}
	out, err := gorgonia.Reshape(cols, tensor.Shape{n, c, width, height})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape resized columns")
	}
	out, err = gorgonia.Transpose(out, 0, 1, 3, 2)
	if err != nil {
		return nil, errors.Wrap(err, "Can't swap spatial axes back")
	}
	return out, nil
}
