package ops

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// SigmoidOp records output = σ(x). The derivative reuses the forward output:
// σ'(x) = σ(x)·(1 - σ(x)).
type SigmoidOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSigmoidOp creates a SigmoidOp.
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{inputs: []*tensor.RawTensor{x}, output: output}
}

func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	out := op.output
	oneMinus := backend.MulScalar(out, -1)
	oneMinus = backend.AddScalar(oneMinus, 1)
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Mul(out, oneMinus))}
}

func (op *SigmoidOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *SigmoidOp) Output() *tensor.RawTensor { return op.output }

// TanhOp records output = tanh(x), with tanh'(x) = 1 - tanh²(x).
type TanhOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewTanhOp creates a TanhOp.
func NewTanhOp(x, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{inputs: []*tensor.RawTensor{x}, output: output}
}

func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	sq := backend.Mul(op.output, op.output)
	oneMinusSq := backend.AddScalar(backend.MulScalar(sq, -1), 1)
	return []*tensor.RawTensor{backend.Mul(outputGrad, oneMinusSq)}
}

func (op *TanhOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *TanhOp) Output() *tensor.RawTensor { return op.output }

// ClampOp records output = min(max(x, lo), hi). The gradient passes through
// only where the input lay inside [lo, hi]; clamped elements get zero.
type ClampOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	lo, hi float64
}

// NewClampOp creates a ClampOp.
func NewClampOp(x, output *tensor.RawTensor, lo, hi float64) *ClampOp {
	return &ClampOp{inputs: []*tensor.RawTensor{x}, output: output, lo: lo, hi: hi}
}

func (op *ClampOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	grad := zerosLike(x)
	switch x.DType() {
	case tensor.Float32:
		clampBackward(grad.AsFloat32(), outputGrad.AsFloat32(), x.AsFloat32(), float32(op.lo), float32(op.hi))
	case tensor.Float64:
		clampBackward(grad.AsFloat64(), outputGrad.AsFloat64(), x.AsFloat64(), op.lo, op.hi)
	default:
		panic(fmt.Sprintf("clamp backward: unsupported dtype %s", x.DType()))
	}
	return []*tensor.RawTensor{grad}
}

func clampBackward[T float32 | float64](grad, outputGrad, x []T, lo, hi T) {
	for i, v := range x {
		if v >= lo && v <= hi {
			grad[i] = outputGrad[i]
		}
	}
}

func (op *ClampOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *ClampOp) Output() *tensor.RawTensor { return op.output }
