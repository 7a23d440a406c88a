package nn

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Forecast generates future frames from encoder states. Each step feeds a
// zero frame into its own ConvLSTM stack (initialized with the encoder's
// final states), concatenates the hidden states of all layers along the
// channel axis and projects them back to the input channel count with a 1x1
// convolution without bias.
type Forecast[B tensor.Backend] struct {
	inChannels int
	cells      []*ConvLSTMCell[B]
	convLast   *Conv2D[B]
	backend    B
}

// NewForecast builds the forecasting stack mirroring the encoder layout.
func NewForecast[B tensor.Backend](
	name string,
	inChannels int,
	hiddenChannels, kernelSizes []int,
	height, width int,
	forgetBias float64,
	backend B,
) *Forecast[B] {
	if len(hiddenChannels) != len(kernelSizes) {
		panic(fmt.Sprintf("forecast: %d hidden channel entries but %d kernel sizes",
			len(hiddenChannels), len(kernelSizes)))
	}
	cells := make([]*ConvLSTMCell[B], len(hiddenChannels))
	totalHidden := 0
	for i := range hiddenChannels {
		in := inChannels
		if i > 0 {
			in = hiddenChannels[i-1]
		}
		cells[i] = NewConvLSTMCell(
			fmt.Sprintf("%s.%d", name, i),
			in, hiddenChannels[i], height, width, kernelSizes[i],
			forgetBias, backend,
		)
		totalHidden += hiddenChannels[i]
	}
	return &Forecast[B]{
		inChannels: inChannels,
		cells:      cells,
		convLast:   NewConv2D(name+".conv_last", totalHidden, inChannels, 1, 1, 1, 0, false, backend),
		backend:    backend,
	}
}

// Forward predicts outLen frames, returning [B, outLen, C, H, W]. The h and
// c slices are advanced in place.
func (f *Forecast[B]) Forward(
	h, c []*tensor.Tensor[float32, B],
	outLen int,
) *tensor.Tensor[float32, B] {
	shape := h[0].Shape()
	batch, height, width := shape[0], shape[2], shape[3]

	frames := make([]*tensor.Tensor[float32, B], 0, outLen)
	for step := 0; step < outLen; step++ {
		x := Zeros(tensor.Shape{batch, f.inChannels, height, width}, f.backend)

		h[0], c[0] = f.cells[0].Forward(x, h[0], c[0])
		for i := 1; i < len(f.cells); i++ {
			h[i], c[i] = f.cells[i].Forward(h[i-1], h[i], c[i])
		}

		pred := f.convLast.Forward(tensor.Cat(h, 1))
		frames = append(frames, pred.Reshape(batch, 1, f.inChannels, height, width))
	}

	return tensor.Cat(frames, 1)
}

// Parameters returns the parameters of every cell plus the projection.
func (f *Forecast[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, cell := range f.cells {
		params = append(params, cell.Parameters()...)
	}
	return append(params, f.convLast.Parameters()...)
}

// StateDict returns the forecaster parameters keyed by name.
func (f *Forecast[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(f.Parameters())
}

// LoadStateDict restores the forecaster parameters.
func (f *Forecast[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(f.Parameters(), stateDict)
}
