package ops

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// SumOp records output = sum(x) as a single-element tensor. Every input
// element contributed with weight 1, so the backward pass broadcasts the
// scalar gradient to the input shape.
type SumOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{inputs: []*tensor.RawTensor{x}, output: output}
}

func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	grad := zerosLike(x)
	switch x.DType() {
	case tensor.Float32:
		fillSlice(grad.AsFloat32(), outputGrad.AsFloat32()[0])
	case tensor.Float64:
		fillSlice(grad.AsFloat64(), outputGrad.AsFloat64()[0])
	default:
		panic(fmt.Sprintf("sum backward: unsupported dtype %s", x.DType()))
	}
	return []*tensor.RawTensor{grad}
}

func fillSlice[T float32 | float64](data []T, v T) {
	for i := range data {
		data[i] = v
	}
}

func (op *SumOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *SumOp) Output() *tensor.RawTensor { return op.output }

// MSEOp records output = mean((pred - target)²) as a single-element tensor.
//
// Backward:
//
//	d/dpred   =  2·(pred - target)/N · grad
//	d/dtarget = -2·(pred - target)/N · grad
type MSEOp struct {
	inputs []*tensor.RawTensor // [pred, target]
	output *tensor.RawTensor
}

// NewMSEOp creates an MSEOp.
func NewMSEOp(pred, target, output *tensor.RawTensor) *MSEOp {
	return &MSEOp{inputs: []*tensor.RawTensor{pred, target}, output: output}
}

func (op *MSEOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	pred, target := op.inputs[0], op.inputs[1]
	n := float64(pred.NumElements())

	diff := backend.Sub(pred, target)
	scaled := backend.MulScalar(diff, 2/n)

	var g float64
	switch outputGrad.DType() {
	case tensor.Float32:
		g = float64(outputGrad.AsFloat32()[0])
	case tensor.Float64:
		g = outputGrad.AsFloat64()[0]
	default:
		panic(fmt.Sprintf("mse backward: unsupported dtype %s", outputGrad.DType()))
	}

	gradPred := backend.MulScalar(scaled, g)
	gradTarget := backend.MulScalar(gradPred, -1)
	return []*tensor.RawTensor{gradPred, gradTarget}
}

func (op *MSEOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *MSEOp) Output() *tensor.RawTensor { return op.output }
