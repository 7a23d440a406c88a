// Package autodiff adds reverse-mode automatic differentiation on top of any
// compute backend.
//
// Backend[B] is a decorator: it forwards every operation to the wrapped
// backend and, while its GradientTape is recording, stores an ops.Operation
// that knows the matching backward rule. Calling Tape().Backward walks the
// recorded graph in reverse and returns a gradient per participating tensor.
//
//	ad := autodiff.New(cpu.New())
//	ad.Tape().StartRecording()
//	x := tensor.FromSlice([]float32{3}, tensor.Shape{1}, ad)
//	y := x.Mul(x)
//	grads := autodiff.Backward(y, ad)
package autodiff

import (
	"github.com/nimbus-ml/nimbus/internal/autodiff/ops"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Backend wraps a compute backend with gradient recording. It implements
// tensor.Backend itself, so tensors built on it run unchanged.
type Backend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps the given backend.
func New[B tensor.Backend](inner B) *Backend[B] {
	return &Backend[B]{inner: inner, tape: NewGradientTape()}
}

// Tape returns the gradient tape for recording control.
func (b *Backend[B]) Tape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *Backend[B]) Inner() B { return b.inner }

// Name returns the backend name.
func (b *Backend[B]) Name() string { return "Autodiff(" + b.inner.Name() + ")" }

// Device returns the wrapped backend's device.
func (b *Backend[B]) Device() tensor.Device { return b.inner.Device() }

// Add performs element-wise addition and records it.
func (b *Backend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	// Inputs must survive the forward pass untouched: pinning the refcount
	// keeps the inner backend from reusing their buffers in place.
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()
	out := b.inner.Add(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(x, y, out))
	}
	return out
}

// Sub performs element-wise subtraction and records it.
func (b *Backend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()
	out := b.inner.Sub(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubOp(x, y, out))
	}
	return out
}

// Mul performs element-wise multiplication and records it.
func (b *Backend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()
	out := b.inner.Mul(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(x, y, out))
	}
	return out
}

// Div performs element-wise division and records it.
func (b *Backend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()
	out := b.inner.Div(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewDivOp(x, y, out))
	}
	return out
}

// AddScalar adds a constant to every element and records it.
func (b *Backend[B]) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.AddScalar(x, scalar)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddScalarOp(x, out))
	}
	return out
}

// MulScalar multiplies every element by a constant and records it.
func (b *Backend[B]) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.MulScalar(x, scalar)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulScalarOp(x, out, scalar))
	}
	return out
}

// Sigmoid applies the logistic function and records it.
func (b *Backend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Sigmoid(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSigmoidOp(x, out))
	}
	return out
}

// Tanh applies the hyperbolic tangent and records it.
func (b *Backend[B]) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Tanh(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTanhOp(x, out))
	}
	return out
}

// Clamp limits every element to [lo, hi] and records it.
func (b *Backend[B]) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Clamp(x, lo, hi)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewClampOp(x, out, lo, hi))
	}
	return out
}

// Conv2D performs 2D convolution and records it.
func (b *Backend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	defer input.ForceNonUnique()()
	defer kernel.ForceNonUnique()()
	out := b.inner.Conv2D(input, kernel, stride, padding)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConv2DOp(input, kernel, out, stride, padding))
	}
	return out
}

// Conv2DInputBackward delegates to the wrapped backend. Gradients of
// gradients are not recorded.
func (b *Backend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward delegates to the wrapped backend.
func (b *Backend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// Reshape changes a tensor's shape and records it so gradients reach
// parameters used through reshaped views.
func (b *Backend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	defer t.ForceNonUnique()()
	out := b.inner.Reshape(t, newShape)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(t, out))
	}
	return out
}

// Cat concatenates tensors along dim and records it.
func (b *Backend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	for _, t := range tensors {
		defer t.ForceNonUnique()()
	}
	out := b.inner.Cat(tensors, dim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewCatOp(tensors, out, dim))
	}
	return out
}

// Chunk splits x into n pieces along dim and records the split as one
// multi-output operation.
func (b *Backend[B]) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	defer x.ForceNonUnique()()
	outs := b.inner.Chunk(x, n, dim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewChunkOp(x, outs, dim))
	}
	return outs
}

// Narrow slices x along dim and records it.
func (b *Backend[B]) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Narrow(x, dim, start, length)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewNarrowOp(x, out, dim, start, length))
	}
	return out
}

// Sum reduces x to a single element and records it.
func (b *Backend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Sum(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSumOp(x, out))
	}
	return out
}

// MSE computes the mean squared error and records it, so the loss itself is
// part of the differentiable graph.
func (b *Backend[B]) MSE(pred, target *tensor.RawTensor) *tensor.RawTensor {
	defer pred.ForceNonUnique()()
	defer target.ForceNonUnique()()
	out := b.inner.MSE(pred, target)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMSEOp(pred, target, out))
	}
	return out
}
