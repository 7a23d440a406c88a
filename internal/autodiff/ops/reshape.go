package ops

import "github.com/nimbus-ml/nimbus/internal/tensor"

// ReshapeOp records output = reshape(x). The gradient is reshaped back to the
// input's original shape.
type ReshapeOp struct {
	inputs   []*tensor.RawTensor
	output   *tensor.RawTensor
	inShape  tensor.Shape
	outShape tensor.Shape
}

// NewReshapeOp creates a ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{
		inputs:   []*tensor.RawTensor{x},
		output:   output,
		inShape:  x.Shape().Clone(),
		outShape: output.Shape().Clone(),
	}
}

func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.inShape)}
}

func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *ReshapeOp) Output() *tensor.RawTensor { return op.output }
