// Package nn implements the neural network building blocks: trainable
// parameters, convolution layers, ConvLSTM cells and the stacked
// encoder/forecaster used for spatiotemporal sequence prediction.
package nn

import "github.com/nimbus-ml/nimbus/internal/tensor"

// Module is the base interface for network components. Forward signatures
// differ per module (single frames, sequences, state tuples), so the
// interface covers only what containers and checkpoints need.
type Module[B tensor.Backend] interface {
	// Parameters returns all trainable parameters, including those of
	// nested modules.
	Parameters() []*Parameter[B]

	// StateDict returns the parameter tensors keyed by qualified name.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies matching entries into the module's parameters.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}
