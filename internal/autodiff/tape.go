package autodiff

import (
	"github.com/nimbus-ml/nimbus/internal/autodiff/ops"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// GradientTape records operations during the forward pass and replays them in
// reverse to compute gradients.
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates an empty tape. Recording starts off.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 64)}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether the tape records operations.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends an operation when the tape is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear drops all recorded operations. The recording flag is left as is, so
// a training loop can clear between steps without re-enabling.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int { return len(t.operations) }

// Backward seeds the gradient of the given output tensor and walks the tape
// in reverse, applying the chain rule and accumulating gradients whenever a
// tensor feeds several operations. Operations recorded after the one that
// produced output receive no gradient and are skipped. The returned map is
// keyed by the forward-pass RawTensor pointers.
func (t *GradientTape) Backward(output, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	// Gradient math itself must not land on the tape.
	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads[output] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		inputGrads := t.inputGrads(op, grads, backend)
		if inputGrads == nil {
			continue
		}
		for j, input := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				grads[input] = backend.Add(existing, inputGrads[j])
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}
	return grads
}

// inputGrads computes the gradients an operation passes to its inputs, or nil
// when no gradient reached any of its outputs.
func (t *GradientTape) inputGrads(
	op ops.Operation,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) []*tensor.RawTensor {
	if multi, ok := op.(ops.MultiOutputOperation); ok {
		outputs := multi.Outputs()
		outputGrads := make([]*tensor.RawTensor, len(outputs))
		any := false
		for j, out := range outputs {
			if g, ok := grads[out]; ok {
				outputGrads[j] = g
				any = true
			}
		}
		if !any {
			return nil
		}
		// Outputs nothing consumed still need a gradient for the joint
		// backward; zeros contribute nothing.
		for j, out := range outputs {
			if outputGrads[j] == nil {
				zero, err := tensor.NewRaw(out.Shape(), out.DType(), backend.Device())
				if err != nil {
					continue
				}
				outputGrads[j] = zero
			}
		}
		return multi.BackwardMulti(outputGrads, backend)
	}

	outGrad, ok := grads[op.Output()]
	if !ok {
		return nil
	}
	return op.Backward(outGrad, backend)
}
