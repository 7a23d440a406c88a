package autodiff

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// BackwardCapable is satisfied by backends that carry a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the gradient tape.
func (b *Backend[B]) GetTape() *GradientTape { return b.tape }

// Backward seeds the output gradient with ones and walks the backend's tape,
// returning a map from RawTensor to accumulated gradient. Typically called on
// a scalar loss.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded, call Tape().StartRecording() before the forward pass")
	}

	seed, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: %v", err))
	}
	switch t.DType() {
	case tensor.Float32:
		data := seed.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Float64:
		data := seed.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	default:
		panic(fmt.Sprintf("backward: unsupported dtype %s", t.DType()))
	}

	return tape.Backward(t.Raw(), seed, backend)
}
