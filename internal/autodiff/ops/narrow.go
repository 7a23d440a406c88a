package ops

import "github.com/nimbus-ml/nimbus/internal/tensor"

// NarrowOp records output = narrow(x, dim, start, length). The backward pass
// embeds the output gradient into a zero tensor of the input's shape at the
// narrowed offset.
type NarrowOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
	start  int
	length int
}

// NewNarrowOp creates a NarrowOp.
func NewNarrowOp(x, output *tensor.RawTensor, dim, start, length int) *NarrowOp {
	return &NarrowOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		dim:    dim,
		start:  start,
		length: length,
	}
}

func (op *NarrowOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	grad := zerosLike(x)

	shape := x.Shape()
	outer := 1
	for d := 0; d < op.dim; d++ {
		outer *= shape[d]
	}
	inner := x.DType().Size()
	for d := op.dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	dstRow := shape[op.dim] * inner
	srcRow := op.length * inner
	dst := grad.Data()
	src := outputGrad.Data()
	for o := 0; o < outer; o++ {
		copy(dst[o*dstRow+op.start*inner:o*dstRow+op.start*inner+srcRow], src[o*srcRow:(o+1)*srcRow])
	}
	return []*tensor.RawTensor{grad}
}

func (op *NarrowOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *NarrowOp) Output() *tensor.RawTensor { return op.output }
