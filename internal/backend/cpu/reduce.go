package cpu

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Sum reduces x to a single-element tensor holding the total of all elements.
func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out, err := tensor.NewRaw(tensor.Shape{1}, x.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}
	switch x.DType() {
	case tensor.Float32:
		out.AsFloat32()[0] = sumSlice(x.AsFloat32())
	case tensor.Float64:
		out.AsFloat64()[0] = sumSlice(x.AsFloat64())
	default:
		panic("sum: unsupported dtype")
	}
	return out
}

func sumSlice[T float32 | float64](data []T) T {
	var total T
	for _, v := range data {
		total += v
	}
	return total
}

// MSE computes the mean squared error between pred and target as a
// single-element tensor.
func (b *Backend) MSE(pred, target *tensor.RawTensor) *tensor.RawTensor {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("mse: shape mismatch %v vs %v", pred.Shape(), target.Shape()))
	}
	if pred.DType() != target.DType() {
		panic("mse: mixed dtypes")
	}
	out, err := tensor.NewRaw(tensor.Shape{1}, pred.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("mse: %v", err))
	}
	switch pred.DType() {
	case tensor.Float32:
		out.AsFloat32()[0] = mseSlice(pred.AsFloat32(), target.AsFloat32())
	case tensor.Float64:
		out.AsFloat64()[0] = mseSlice(pred.AsFloat64(), target.AsFloat64())
	default:
		panic("mse: unsupported dtype")
	}
	return out
}

func mseSlice[T float32 | float64](pred, target []T) T {
	var total T
	for i := range pred {
		d := pred[i] - target[i]
		total += d * d
	}
	return total / T(len(pred))
}
