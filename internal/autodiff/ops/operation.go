// Package ops implements the differentiable operations recorded on a
// gradient tape during the forward pass.
//
// Each operation keeps references to its forward inputs and output and knows
// how to turn the output gradient into input gradients via the chain rule.
package ops

import "github.com/nimbus-ml/nimbus/internal/tensor"

// Operation is a single recorded step in the computation graph.
type Operation interface {
	// Backward computes the gradient for each input given the gradient of
	// the output. The returned slice is index-aligned with Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the forward-pass input tensors.
	Inputs() []*tensor.RawTensor

	// Output returns the forward-pass output tensor.
	Output() *tensor.RawTensor
}

// MultiOutputOperation is implemented by operations producing several
// outputs, such as Chunk. The tape gathers gradients for every output before
// calling BackwardMulti; outputs with no downstream use receive zeros.
type MultiOutputOperation interface {
	Operation

	// Outputs returns all forward-pass output tensors.
	Outputs() []*tensor.RawTensor

	// BackwardMulti computes input gradients from the gradients of all
	// outputs. Used instead of Backward.
	BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}
