// Package cpu implements the reference CPU backend for Nimbus tensors.
package cpu

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Backend implements tensor operations in pure Go.
type Backend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *Backend {
	return &Backend{device: tensor.CPU}
}

// Name returns the backend name.
func (b *Backend) Name() string { return "CPU" }

// Device returns the compute device.
func (b *Backend) Device() tensor.Device { return b.device }

// Add performs element-wise addition with broadcasting.
func (b *Backend) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryOp("add", x, y,
		func(a, c float32) float32 { return a + c },
		func(a, c float64) float64 { return a + c })
}

// Sub performs element-wise subtraction with broadcasting.
func (b *Backend) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryOp("sub", x, y,
		func(a, c float32) float32 { return a - c },
		func(a, c float64) float64 { return a - c })
}

// Mul performs element-wise multiplication with broadcasting.
func (b *Backend) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryOp("mul", x, y,
		func(a, c float32) float32 { return a * c },
		func(a, c float64) float64 { return a * c })
}

// Div performs element-wise division with broadcasting.
func (b *Backend) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binaryOp("div", x, y,
		func(a, c float32) float32 { return a / c },
		func(a, c float64) float64 { return a / c })
}

// binaryOp applies fn element-wise, materializing broadcast semantics.
func (b *Backend) binaryOp(
	name string,
	x, y *tensor.RawTensor,
	fn32 func(a, c float32) float32,
	fn64 func(a, c float64) float64,
) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, x.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		if needsBroadcast {
			broadcastApply(result.AsFloat32(), x.AsFloat32(), y.AsFloat32(), outShape, x.Shape(), y.Shape(), fn32)
		} else {
			vectorApply(result.AsFloat32(), x.AsFloat32(), y.AsFloat32(), fn32)
		}
	case tensor.Float64:
		if needsBroadcast {
			broadcastApply(result.AsFloat64(), x.AsFloat64(), y.AsFloat64(), outShape, x.Shape(), y.Shape(), fn64)
		} else {
			vectorApply(result.AsFloat64(), x.AsFloat64(), y.AsFloat64(), fn64)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

func vectorApply[T float32 | float64](dst, a, b []T, fn func(T, T) T) {
	for i := range dst {
		dst[i] = fn(a[i], b[i])
	}
}

// broadcastApply walks the output shape, mapping each output coordinate back
// to the (possibly size-1) coordinates of both inputs.
func broadcastApply[T float32 | float64](
	dst, a, b []T,
	outShape, aShape, bShape tensor.Shape,
	fn func(T, T) T,
) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(outShape, aShape)
	bStrides := broadcastStrides(outShape, bShape)

	for i := range dst {
		aIdx, bIdx := 0, 0
		rem := i
		for d := 0; d < len(outShape); d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			aIdx += coord * aStrides[d]
			bIdx += coord * bStrides[d]
		}
		dst[i] = fn(a[aIdx], b[bIdx])
	}
}

// broadcastStrides computes per-output-dimension strides into an input whose
// shape broadcasts to outShape: stride 0 where the input dimension is 1 or
// missing.
func broadcastStrides(outShape, inShape tensor.Shape) []int {
	inStrides := inShape.ComputeStrides()
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(inShape)
	for d := range outShape {
		if d < offset {
			continue
		}
		if inShape[d-offset] == 1 {
			continue
		}
		strides[d] = inStrides[d-offset]
	}
	return strides
}
