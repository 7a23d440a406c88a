package optim

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum:
//
//	buf = momentum·buf + g
//	param -= lr·buf
//
// With momentum 0 this is plain gradient descent.
type SGD[B tensor.Backend] struct {
	params   []*nn.Parameter[B]
	lr       float64
	momentum float64

	buffers map[*nn.Parameter[B]]*tensor.RawTensor

	backend B
}

// SGDConfig holds the SGD hyperparameters. A zero LR falls back to 0.01.
type SGDConfig struct {
	LR       float64
	Momentum float64
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:   params,
		lr:       config.LR,
		momentum: config.Momentum,
		buffers:  make(map[*nn.Parameter[B]]*tensor.RawTensor),
		backend:  backend,
	}
}

// Step applies one SGD update.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := gradientFor(param, grads)
		if grad == nil {
			continue
		}

		gradData := grad.AsFloat32()
		paramData := param.Tensor().Raw().AsFloat32()
		lr := float32(s.lr)

		if s.momentum == 0 {
			for i := range paramData {
				paramData[i] -= lr * gradData[i]
			}
			continue
		}

		buf := s.buffer(param)
		bufData := buf.AsFloat32()
		mom := float32(s.momentum)
		for i := range paramData {
			bufData[i] = mom*bufData[i] + gradData[i]
			paramData[i] -= lr * bufData[i]
		}
	}
}

func (s *SGD[B]) buffer(param *nn.Parameter[B]) *tensor.RawTensor {
	if buf, ok := s.buffers[param]; ok {
		return buf
	}
	buf, err := tensor.NewRaw(param.Tensor().Shape(), tensor.Float32, s.backend.Device())
	if err != nil {
		panic(fmt.Sprintf("sgd: %v", err))
	}
	s.buffers[param] = buf
	return buf
}

// Name returns "SGD".
func (s *SGD[B]) Name() string { return "SGD" }

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float64 { return s.lr }

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float64) { s.lr = lr }

// StateDict serializes momentum buffers per parameter name.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	dict := make(map[string]*tensor.RawTensor, len(s.buffers))
	for _, param := range s.params {
		if buf, ok := s.buffers[param]; ok {
			dict[param.Name()+".momentum"] = buf
		}
	}
	return dict
}

// LoadStateDict restores momentum buffers.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, param := range s.params {
		src, ok := stateDict[param.Name()+".momentum"]
		if !ok {
			continue
		}
		if !src.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("sgd: momentum for %s has shape %v, parameter is %v",
				param.Name(), src.Shape(), param.Tensor().Shape())
		}
		buf := s.buffer(param)
		copy(buf.Data(), src.Data())
	}
	return nil
}
