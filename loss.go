package tlgan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// LossFunc Builds loss node for prediction 'a' and target 'b'
type LossFunc func(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error)

func reduce(x *gorgonia.Node, reduction []LossReduction) (*gorgonia.Node, error) {
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(x)
	case LossReductionMean:
		return gorgonia.Mean(x)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// MSELoss See ref. https://en.wikipedia.org/wiki/Mean_squared_error
// Default reduction is 'mean'
func MSELoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	sqr, err := gorgonia.Square(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	return reduce(sqr, reduction)
}

// BinaryCrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// 'a' must hold probabilities: -[b*log(a) + (1-b)*log(1-a)]
// Default reduction is 'mean'
func BinaryCrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	logMain, err := gorgonia.Log(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	hprodMain, err := gorgonia.HadamardProd(logMain, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*B)")
	}

	onesTensor := gorgonia.NewTensor(a.Graph(), a.Dtype(), a.Dims(), gorgonia.WithShape(a.Shape()...), gorgonia.WithInit(gorgonia.Ones()))
	subA, err := gorgonia.Sub(onesTensor, a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A)")
	}
	logBin, err := gorgonia.Log(subA)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1-A)")
	}
	subB, err := gorgonia.Sub(onesTensor, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-B)")
	}
	hprodBin, err := gorgonia.HadamardProd(logBin, subB)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*(1-B))")
	}
	sum, err := gorgonia.Add(hprodMain, hprodBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	neg, err := gorgonia.Neg(sum)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	return reduce(neg, reduction)
}

// BinaryCrossEntropyWithLogitsLoss Same as BinaryCrossEntropyLoss(sigmoid(a), b), but 'a' holds logits.
// Computed as softplus(a) - a*b which stays finite for large |a|.
// Default reduction is 'mean'
func BinaryCrossEntropyWithLogitsLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	softplus, err := gorgonia.Softplus(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1+exp(A))")
	}
	hprod, err := gorgonia.HadamardProd(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A.*B)")
	}
	sub, err := gorgonia.Sub(softplus, hprod)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x-y)")
	}
	return reduce(sub, reduction)
}

// lossForKind Returns loss function applied to discriminator logits and decision threshold on logits for accuracy
func lossForKind(kind LossKind) (LossFunc, float64, error) {
	switch kind {
	case LossBCE, "":
		// sigmoid(x) > 0.5 <=> x > 0
		return BinaryCrossEntropyWithLogitsLoss, 0.0, nil
	case LossBCESigmoid:
		return BinaryCrossEntropyLoss, 0.5, nil
	case LossMSE:
		return MSELoss, 0.5, nil
	default:
		return nil, 0, fmt.Errorf("Loss '%s' is not handled", kind)
	}
}
