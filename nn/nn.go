// Copyright 2026 Nimbus ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Module is the common interface of all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Conv2D is a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a convolutional layer with Xavier-initialized weights.
//
// Example:
//
//	conv := nn.NewConv2D("conv1", 1, 32, 3, 3, 1, 1, true, backend)
func NewConv2D[B tensor.Backend](
	name string,
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(name, inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, backend)
}

// ConvLSTMCell is a single convolutional LSTM cell with peephole
// connections.
type ConvLSTMCell[B tensor.Backend] = nn.ConvLSTMCell[B]

// NewConvLSTMCell creates a cell operating on [batch, channels, height,
// width] feature maps. The kernel size must be odd so the spatial size is
// preserved.
func NewConvLSTMCell[B tensor.Backend](
	name string,
	inChannels, hiddenChannels, height, width, kernelSize int,
	forgetBias float64,
	backend B,
) *ConvLSTMCell[B] {
	return nn.NewConvLSTMCell(name, inChannels, hiddenChannels, height, width, kernelSize, forgetBias, backend)
}

// Encoder is a stack of ConvLSTM cells consuming an observed sequence.
type Encoder[B tensor.Backend] = nn.Encoder[B]

// Forecast continues a sequence from encoder state.
type Forecast[B tensor.Backend] = nn.Forecast[B]

// Models

// ConvLSTMConfig describes a stacked ConvLSTM sequence predictor.
type ConvLSTMConfig = nn.ConvLSTMConfig

// ConvLSTM is the encoder-forecaster network for next-frame prediction.
type ConvLSTM[B tensor.Backend] = nn.ConvLSTM[B]

// NewConvLSTM builds the network from a configuration.
func NewConvLSTM[B tensor.Backend](cfg ConvLSTMConfig, backend B) *ConvLSTM[B] {
	return nn.NewConvLSTM(cfg, backend)
}

// MovingMNIST is the ConvLSTM wrapped for the Moving-MNIST task: 4x4 patch
// folding, ten frames in, ten predicted frames out.
type MovingMNIST[B tensor.Backend] = nn.MovingMNIST[B]

// NewMovingMNIST builds the Moving-MNIST model with the default two-layer
// stack (96+96 hidden channels, 3x3 kernels).
func NewMovingMNIST[B tensor.Backend](backend B) *MovingMNIST[B] {
	return nn.NewMovingMNIST(backend)
}

// Functional

// ReshapePatch folds [B, S, C, H, W] frames into [B, S, C·p², H/p, W/p]
// patches.
func ReshapePatch[B tensor.Backend](frames *tensor.Tensor[float32, B], patchSize int) *tensor.Tensor[float32, B] {
	return nn.ReshapePatch(frames, patchSize)
}

// ReshapePatchBack is the inverse of ReshapePatch.
func ReshapePatchBack[B tensor.Backend](patched *tensor.Tensor[float32, B], patchSize int) *tensor.Tensor[float32, B] {
	return nn.ReshapePatchBack(patched, patchSize)
}

// MSELoss computes the mean squared error between two tensors as a scalar
// tensor, recorded for autodiff.
func MSELoss[B tensor.Backend](pred, target *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.MSELoss(pred, target)
}

// Initialization

// Xavier returns a tensor initialized from the Glorot uniform distribution.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, backend)
}

// Checkpointing

// Checkpoint is a complete training snapshot.
type Checkpoint[B tensor.Backend] = nn.Checkpoint[B]

// OptimizerState is the optimizer surface a checkpoint stores.
type OptimizerState = nn.OptimizerState

// LoadCheckpoint restores model and optimizer state from a .nimbus file.
func LoadCheckpoint[B tensor.Backend](path string, backend B, model Module[B], optimizer OptimizerState) (*Checkpoint[B], error) {
	return nn.LoadCheckpoint(path, backend, model, optimizer)
}
