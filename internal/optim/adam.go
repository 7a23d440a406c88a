package optim

import (
	"fmt"
	"math"

	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Adam implements adaptive moment estimation (Kingma & Ba, 2014).
//
// Update rule per element:
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	param -= lr · (m / (1-β1ᵗ)) / (sqrt(v / (1-β2ᵗ)) + ε)
//
// Moment buffers are allocated lazily on the first step a parameter receives
// a gradient, and serialized with the step counter so resumed training
// continues with correct bias correction.
type Adam[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int

	m map[*nn.Parameter[B]]*tensor.RawTensor
	v map[*nn.Parameter[B]]*tensor.RawTensor

	backend B
}

// AdamConfig holds the Adam hyperparameters. Zero values fall back to the
// usual defaults: lr 1e-3, betas (0.9, 0.999), eps 1e-8.
type AdamConfig struct {
	LR    float64
	Betas [2]float64
	Eps   float64
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 1e-3
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]]*tensor.RawTensor),
		v:       make(map[*nn.Parameter[B]]*tensor.RawTensor),
		backend: backend,
	}
}

// Step applies one Adam update.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := gradientFor(param, grads)
		if grad == nil {
			continue
		}

		m := a.moment(a.m, param)
		v := a.moment(a.v, param)

		gradData := grad.AsFloat32()
		mData := m.AsFloat32()
		vData := v.AsFloat32()
		paramData := param.Tensor().Raw().AsFloat32()

		lr, b1, b2, eps := float32(a.lr), float32(a.beta1), float32(a.beta2), float32(a.eps)
		c1, c2 := float32(bc1), float32(bc2)

		for i := range paramData {
			g := gradData[i]
			mData[i] = b1*mData[i] + (1-b1)*g
			vData[i] = b2*vData[i] + (1-b2)*g*g
			mHat := mData[i] / c1
			vHat := vData[i] / c2
			paramData[i] -= lr * mHat / (float32(math.Sqrt(float64(vHat))) + eps)
		}
	}
}

func (a *Adam[B]) moment(buffers map[*nn.Parameter[B]]*tensor.RawTensor, param *nn.Parameter[B]) *tensor.RawTensor {
	if buf, ok := buffers[param]; ok {
		return buf
	}
	buf, err := tensor.NewRaw(param.Tensor().Shape(), tensor.Float32, a.backend.Device())
	if err != nil {
		panic(fmt.Sprintf("adam: %v", err))
	}
	buffers[param] = buf
	return buf
}

// Name returns "Adam".
func (a *Adam[B]) Name() string { return "Adam" }

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float64 { return a.lr }

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float64) { a.lr = lr }

// Timestep returns the number of steps taken.
func (a *Adam[B]) Timestep() int { return a.t }

// StateDict serializes moment buffers per parameter name plus the step
// counter.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	dict := make(map[string]*tensor.RawTensor, 2*len(a.params)+1)
	for _, param := range a.params {
		if m, ok := a.m[param]; ok {
			dict[param.Name()+".m"] = m
		}
		if v, ok := a.v[param]; ok {
			dict[param.Name()+".v"] = v
		}
	}

	step, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float64, a.backend.Device())
	if err != nil {
		panic(fmt.Sprintf("adam: %v", err))
	}
	step.AsFloat64()[0] = float64(a.t)
	dict["step"] = step
	return dict
}

// LoadStateDict restores moment buffers and the step counter. Entries for
// unknown parameters are ignored; parameters without entries keep fresh
// zero buffers.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, param := range a.params {
		if m, ok := stateDict[param.Name()+".m"]; ok {
			if err := a.restoreMoment(a.m, param, m); err != nil {
				return err
			}
		}
		if v, ok := stateDict[param.Name()+".v"]; ok {
			if err := a.restoreMoment(a.v, param, v); err != nil {
				return err
			}
		}
	}
	if step, ok := stateDict["step"]; ok {
		a.t = int(step.AsFloat64()[0])
	}
	return nil
}

func (a *Adam[B]) restoreMoment(buffers map[*nn.Parameter[B]]*tensor.RawTensor, param *nn.Parameter[B], src *tensor.RawTensor) error {
	if !src.Shape().Equal(param.Tensor().Shape()) {
		return fmt.Errorf("adam: moment for %s has shape %v, parameter is %v",
			param.Name(), src.Shape(), param.Tensor().Shape())
	}
	buf := a.moment(buffers, param)
	copy(buf.Data(), src.Data())
	return nil
}
