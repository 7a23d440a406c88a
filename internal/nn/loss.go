package nn

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// MSELoss computes the mean squared error between prediction and target as a
// single-element tensor. The reduction runs inside the backend so a
// recording tape captures it and gradients flow from the scalar loss.
func MSELoss[B tensor.Backend](
	pred, target *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("mse loss: shape mismatch %v vs %v", pred.Shape(), target.Shape()))
	}
	raw := pred.Backend().MSE(pred.Raw(), target.Raw())
	return tensor.New[float32, B](raw, pred.Backend())
}
