package ops

import "github.com/nimbus-ml/nimbus/internal/tensor"

// AddOp records output = a + b. The gradient flows unchanged to both inputs,
// reduced over any broadcast dimensions.
type AddOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewAddOp creates an AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape(), backend),
		reduceBroadcast(outputGrad, op.inputs[1].Shape(), backend),
	}
}

func (op *AddOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *AddOp) Output() *tensor.RawTensor { return op.output }

// SubOp records output = a - b.
type SubOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSubOp creates a SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	negGrad := backend.Sub(zerosLike(outputGrad), outputGrad)
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape(), backend),
		reduceBroadcast(negGrad, op.inputs[1].Shape(), backend),
	}
}

func (op *SubOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *SubOp) Output() *tensor.RawTensor { return op.output }

// MulOp records output = a * b (element-wise).
type MulOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewMulOp creates a MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape(), backend),
	}
}

func (op *MulOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *MulOp) Output() *tensor.RawTensor { return op.output }

// DivOp records output = a / b (element-wise).
//
// Backward:
//
//	d(a/b)/da = 1/b
//	d(a/b)/db = -a/b² = -(a/b)/b
type DivOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewDivOp creates a DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.Div(outputGrad, b)
	// grad_b = -grad * output / b, reusing the forward output a/b.
	gradB := backend.Div(backend.Mul(outputGrad, op.output), b)
	gradB = backend.Sub(zerosLike(gradB), gradB)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}

func (op *DivOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *DivOp) Output() *tensor.RawTensor { return op.output }
