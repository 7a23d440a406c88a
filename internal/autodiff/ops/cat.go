package ops

import "github.com/nimbus-ml/nimbus/internal/tensor"

// CatOp records output = cat(inputs, dim). The backward pass slices the
// output gradient back into per-input pieces along the concatenation axis.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a CatOp.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	held := make([]*tensor.RawTensor, len(inputs))
	copy(held, inputs)
	return &CatOp{inputs: held, output: output, dim: dim}
}

func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		size := in.Shape()[op.dim]
		grads[i] = backend.Narrow(outputGrad, op.dim, offset, size)
		offset += size
	}
	return grads
}

func (op *CatOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *CatOp) Output() *tensor.RawTensor { return op.output }
