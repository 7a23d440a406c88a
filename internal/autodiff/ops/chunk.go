package ops

import "github.com/nimbus-ml/nimbus/internal/tensor"

// ChunkOp records outputs = chunk(x, n, dim): n equal splits of x along dim.
// The backward pass concatenates the output gradients back together.
type ChunkOp struct {
	inputs  []*tensor.RawTensor
	outputs []*tensor.RawTensor
	dim     int
}

// NewChunkOp creates a ChunkOp.
func NewChunkOp(x *tensor.RawTensor, outputs []*tensor.RawTensor, dim int) *ChunkOp {
	held := make([]*tensor.RawTensor, len(outputs))
	copy(held, outputs)
	return &ChunkOp{inputs: []*tensor.RawTensor{x}, outputs: held, dim: dim}
}

// Backward is unused for multi-output operations; the tape calls
// BackwardMulti instead.
func (op *ChunkOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return op.BackwardMulti([]*tensor.RawTensor{outputGrad}, backend)
}

func (op *ChunkOp) BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Cat(outputGrads, op.dim)}
}

func (op *ChunkOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *ChunkOp) Output() *tensor.RawTensor { return op.outputs[0] }
func (op *ChunkOp) Outputs() []*tensor.RawTensor { return op.outputs }
