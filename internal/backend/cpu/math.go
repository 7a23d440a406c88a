package cpu

import (
	"fmt"
	"math"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// AddScalar adds a scalar to every element.
func (b *Backend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return b.unaryOp("addscalar", x,
		func(v float32) float32 { return v + float32(scalar) },
		func(v float64) float64 { return v + scalar })
}

// MulScalar multiplies every element by a scalar.
func (b *Backend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return b.unaryOp("mulscalar", x,
		func(v float32) float32 { return v * float32(scalar) },
		func(v float64) float64 { return v * scalar })
}

// Sigmoid applies the logistic function element-wise.
func (b *Backend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unaryOp("sigmoid", x,
		func(v float32) float32 { return float32(1.0 / (1.0 + math.Exp(float64(-v)))) },
		func(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) })
}

// Tanh applies the hyperbolic tangent element-wise.
func (b *Backend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unaryOp("tanh", x,
		func(v float32) float32 { return float32(math.Tanh(float64(v))) },
		func(v float64) float64 { return math.Tanh(v) })
}

// Clamp limits every element to [lo, hi].
func (b *Backend) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	return b.unaryOp("clamp", x,
		func(v float32) float32 { return float32(math.Min(math.Max(float64(v), lo), hi)) },
		func(v float64) float64 { return math.Min(math.Max(v, lo), hi) })
}

func (b *Backend) unaryOp(
	name string,
	x *tensor.RawTensor,
	fn32 func(float32) float32,
	fn64 func(float64) float64,
) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = fn32(v)
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = fn64(v)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}
