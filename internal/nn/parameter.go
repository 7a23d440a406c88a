package nn

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Parameter is a named trainable tensor. Gradients are not stored on the
// parameter; the optimizer receives them keyed by RawTensor from the tape.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter wraps an initialized tensor as a trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string { return p.name }

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] { return p.tensor }

// CopyFrom overwrites the parameter data with the source tensor's data.
// Shapes must match exactly.
func (p *Parameter[B]) CopyFrom(src *tensor.RawTensor) error {
	dst := p.tensor.Raw()
	if !dst.Shape().Equal(src.Shape()) {
		return fmt.Errorf("parameter %s: shape mismatch, have %v want %v", p.name, src.Shape(), dst.Shape())
	}
	if dst.DType() != src.DType() {
		return fmt.Errorf("parameter %s: dtype mismatch, have %s want %s", p.name, src.DType(), dst.DType())
	}
	copy(dst.Data(), src.Data())
	return nil
}

// collectStateDict builds a state dict from a parameter list.
func collectStateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	dict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		dict[p.Name()] = p.Tensor().Raw()
	}
	return dict
}

// loadStateDict copies matching tensors into the given parameters. Every
// parameter must be present in the dict.
func loadStateDict[B tensor.Backend](params []*Parameter[B], stateDict map[string]*tensor.RawTensor) error {
	for _, p := range params {
		src, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("state dict missing parameter %s", p.Name())
		}
		if err := p.CopyFrom(src); err != nil {
			return err
		}
	}
	return nil
}
