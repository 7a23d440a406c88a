package tensor

// Backend is the interface every compute backend implements. The autodiff
// decorator wraps a concrete backend and records operations on a tape, so
// gradient-producing kernels (the conv backward pair, MSE) are part of the
// interface rather than hidden behind it.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Element-wise operations against a scalar.
	AddScalar(x *RawTensor, scalar float64) *RawTensor
	MulScalar(x *RawTensor, scalar float64) *RawTensor

	// Activations.
	Sigmoid(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor

	// Clamp limits every element to [lo, hi].
	Clamp(x *RawTensor, lo, hi float64) *RawTensor

	// Convolution. Input [N,C,H,W], kernel [COut,C,KH,KW].
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// Shape and slicing operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Chunk(x *RawTensor, n, dim int) []*RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor

	// MSE computes mean((pred-target)^2) as a [1] tensor.
	MSE(pred, target *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
