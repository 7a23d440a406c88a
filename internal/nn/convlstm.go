package nn

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// ConvLSTMConfig describes a stacked ConvLSTM sequence predictor.
type ConvLSTMConfig struct {
	InChannels     int
	HiddenChannels []int
	KernelSizes    []int
	Height         int
	Width          int
	ForgetBias     float64
}

// DefaultConvLSTMConfig returns the two-layer configuration used for
// Moving-MNIST in patch space.
func DefaultConvLSTMConfig() ConvLSTMConfig {
	return ConvLSTMConfig{
		InChannels:     16,
		HiddenChannels: []int{96, 96},
		KernelSizes:    []int{3, 3},
		Height:         16,
		Width:          16,
		ForgetBias:     0.01,
	}
}

// ConvLSTM is an encoder-forecaster network for next-frame prediction. The
// encoder consumes the observed sequence; the forecaster continues it for a
// requested number of steps.
type ConvLSTM[B tensor.Backend] struct {
	encoder  *Encoder[B]
	forecast *Forecast[B]
	backend  B
}

// NewConvLSTM builds the network from a configuration.
func NewConvLSTM[B tensor.Backend](cfg ConvLSTMConfig, backend B) *ConvLSTM[B] {
	if len(cfg.HiddenChannels) == 0 {
		panic("convlstm: at least one hidden layer required")
	}
	return &ConvLSTM[B]{
		encoder: NewEncoder("encoder",
			cfg.InChannels, cfg.HiddenChannels, cfg.KernelSizes,
			cfg.Height, cfg.Width, cfg.ForgetBias, backend),
		forecast: NewForecast("forecast",
			cfg.InChannels, cfg.HiddenChannels, cfg.KernelSizes,
			cfg.Height, cfg.Width, cfg.ForgetBias, backend),
		backend: backend,
	}
}

// Forward encodes inputs [B, S, C, H, W] and predicts outLen future frames
// [B, outLen, C, H, W].
func (m *ConvLSTM[B]) Forward(inputs *tensor.Tensor[float32, B], outLen int) *tensor.Tensor[float32, B] {
	h, c := m.encoder.Forward(inputs)
	return m.forecast.Forward(h, c, outLen)
}

// Parameters returns all trainable parameters of both stacks.
func (m *ConvLSTM[B]) Parameters() []*Parameter[B] {
	return append(m.encoder.Parameters(), m.forecast.Parameters()...)
}

// StateDict returns all parameters keyed by qualified name.
func (m *ConvLSTM[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(m.Parameters())
}

// LoadStateDict restores all parameters.
func (m *ConvLSTM[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(m.Parameters(), stateDict)
}

// MovingMNIST wraps ConvLSTM for the Moving-MNIST task: 64x64 single-channel
// frames folded into 4x4 patches, ten observed frames in, ten predicted
// frames out, predictions clamped to [0, 1].
type MovingMNIST[B tensor.Backend] struct {
	*ConvLSTM[B]
	patchSize int
	outLen    int
}

// NewMovingMNIST builds the Moving-MNIST model with the default two-layer
// stack.
func NewMovingMNIST[B tensor.Backend](backend B) *MovingMNIST[B] {
	return NewMovingMNISTWithConfig(DefaultConvLSTMConfig(), 4, 10, backend)
}

// NewMovingMNISTWithConfig builds the wrapper from an explicit stack
// configuration. The config's input channels must equal patchSize squared
// times the frame channel count.
func NewMovingMNISTWithConfig[B tensor.Backend](cfg ConvLSTMConfig, patchSize, outLen int, backend B) *MovingMNIST[B] {
	return &MovingMNIST[B]{
		ConvLSTM:  NewConvLSTM(cfg, backend),
		patchSize: patchSize,
		outLen:    outLen,
	}
}

// OutLen returns the number of frames the model predicts.
func (m *MovingMNIST[B]) OutLen() int { return m.outLen }

// predictPatched runs the network in patch space and clamps the result.
func (m *MovingMNIST[B]) predictPatched(inputs *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	patched := ReshapePatch(inputs, m.patchSize)
	out := m.Forward(patched, m.outLen)
	return out.Clamp(0, 1)
}

// TrainingStep computes the training loss for one batch. Inputs and labels
// are frame sequences [B, S, 1, 64, 64]. Clamping and the MSE reduction are
// element-wise and the patch transform only permutes elements, so comparing
// in patch space gives the same loss and gradients as comparing frames.
func (m *MovingMNIST[B]) TrainingStep(inputs, labels *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return MSELoss(m.predictPatched(inputs), ReshapePatch(labels, m.patchSize))
}

// ValidationStep computes the validation loss for one batch.
func (m *MovingMNIST[B]) ValidationStep(inputs, labels *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.TrainingStep(inputs, labels)
}

// PredictStep returns the predicted frame sequence [B, outLen, 1, 64, 64].
func (m *MovingMNIST[B]) PredictStep(inputs *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return ReshapePatchBack(m.predictPatched(inputs), m.patchSize)
}

// String describes the model.
func (m *MovingMNIST[B]) String() string {
	return fmt.Sprintf("MovingMNIST(patch=%d, outLen=%d)", m.patchSize, m.outLen)
}
