package nn

import (
	"math"
	"math/rand"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Xavier returns a tensor initialized from the Glorot uniform distribution
// U(-b, b) with b = sqrt(6/(fanIn+fanOut)). Keeps activation variance stable
// across layers.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	raw, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}
	data := raw.AsFloat32()
	for i := range data {
		data[i] = float32((rand.Float64()*2 - 1) * bound)
	}
	return tensor.New[float32, B](raw, backend)
}

// Zeros returns a zero-filled tensor, the usual bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones returns a one-filled tensor.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
