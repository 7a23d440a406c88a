// Package optim implements the optimizers used for training: SGD with
// momentum and Adam. Gradients arrive as the map produced by the autodiff
// tape, keyed by the parameter's RawTensor; parameters without a gradient
// are skipped.
package optim

import (
	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Optimizer updates parameters in place from a gradient map.
type Optimizer interface {
	// Step applies one update using the gradients from a backward pass.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// Name identifies the algorithm ("SGD", "Adam").
	Name() string

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR updates the learning rate, for schedulers.
	SetLR(lr float64)

	// StateDict returns internal optimizer state (moment buffers, step
	// counters) for checkpointing.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores internal state from a checkpoint.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// LRScheduler adjusts an optimizer's learning rate between epochs.
type LRScheduler interface {
	// EpochEnd is called after every epoch with the zero-based epoch index.
	EpochEnd(opt Optimizer, epoch int)
}

// ConstantLR is the no-op scheduler: the learning rate never changes.
type ConstantLR struct{}

// EpochEnd does nothing.
func (ConstantLR) EpochEnd(Optimizer, int) {}

// gradientFor looks up the gradient of a parameter, nil when the parameter
// did not take part in the recorded graph.
func gradientFor[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
