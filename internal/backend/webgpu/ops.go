package webgpu

import (
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Binary arithmetic runs on the GPU for same-shape float32 inputs and falls
// back to the CPU path for broadcasting or other dtypes.

// Add performs element-wise addition.
func (b *Backend) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y, "add", addShader, b.fallback.Add)
}

// Sub performs element-wise subtraction.
func (b *Backend) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y, "sub", subShader, b.fallback.Sub)
}

// Mul performs element-wise multiplication.
func (b *Backend) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y, "mul", mulShader, b.fallback.Mul)
}

// Div performs element-wise division.
func (b *Backend) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y, "div", divShader, b.fallback.Div)
}

func (b *Backend) binary(
	x, y *tensor.RawTensor,
	name, code string,
	fallback func(a, b *tensor.RawTensor) *tensor.RawTensor,
) *tensor.RawTensor {
	if x.DType() == tensor.Float32 && x.Shape().Equal(y.Shape()) {
		out, err := b.runBinaryOp(x, y, name, code)
		if err == nil {
			return out
		}
	}
	out := fallback(x, y)
	return retag(out)
}

// AddScalar adds a constant to every element.
func (b *Backend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return b.unary(x, "addscalar", addScalarShader, float32(scalar), 0,
		func(t *tensor.RawTensor) *tensor.RawTensor { return b.fallback.AddScalar(t, scalar) })
}

// MulScalar multiplies every element by a constant.
func (b *Backend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return b.unary(x, "mulscalar", mulScalarShader, float32(scalar), 0,
		func(t *tensor.RawTensor) *tensor.RawTensor { return b.fallback.MulScalar(t, scalar) })
}

// Sigmoid applies the logistic function.
func (b *Backend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x, "sigmoid", sigmoidShader, 0, 0, b.fallback.Sigmoid)
}

// Tanh applies the hyperbolic tangent.
func (b *Backend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x, "tanh", tanhShader, 0, 0, b.fallback.Tanh)
}

// Clamp limits every element to [lo, hi].
func (b *Backend) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	return b.unary(x, "clamp", clampShader, float32(lo), float32(hi),
		func(t *tensor.RawTensor) *tensor.RawTensor { return b.fallback.Clamp(t, lo, hi) })
}

func (b *Backend) unary(
	x *tensor.RawTensor,
	name, code string,
	s0, s1 float32,
	fallback func(t *tensor.RawTensor) *tensor.RawTensor,
) *tensor.RawTensor {
	if x.DType() == tensor.Float32 {
		out, err := b.runUnaryOp(x, name, code, s0, s1)
		if err == nil {
			return out
		}
	}
	return retag(fallback(x))
}

// Conv2D runs the convolution on the host. Direct convolution is dominated
// by the data transfer at the sizes this backend targets.
func (b *Backend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return retag(b.fallback.Conv2D(input, kernel, stride, padding))
}

// Conv2DInputBackward computes the input gradient on the host.
func (b *Backend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return retag(b.fallback.Conv2DInputBackward(input, kernel, grad, stride, padding))
}

// Conv2DKernelBackward computes the kernel gradient on the host.
func (b *Backend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return retag(b.fallback.Conv2DKernelBackward(input, kernel, grad, stride, padding))
}

// Reshape changes the tensor's shape.
func (b *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return retag(b.fallback.Reshape(t, newShape))
}

// Cat concatenates tensors along dim.
func (b *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	return retag(b.fallback.Cat(tensors, dim))
}

// Chunk splits x into n equal parts along dim.
func (b *Backend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	outs := b.fallback.Chunk(x, n, dim)
	for i := range outs {
		outs[i] = retag(outs[i])
	}
	return outs
}

// Narrow slices x along dim.
func (b *Backend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	return retag(b.fallback.Narrow(x, dim, start, length))
}

// Sum reduces x to a single element.
func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	return retag(b.fallback.Sum(x))
}

// MSE computes the mean squared error.
func (b *Backend) MSE(pred, target *tensor.RawTensor) *tensor.RawTensor {
	return retag(b.fallback.MSE(pred, target))
}

// retag marks a fallback result as belonging to this backend's device.
func retag(t *tensor.RawTensor) *tensor.RawTensor {
	t.SetDevice(tensor.WebGPU)
	return t
}
