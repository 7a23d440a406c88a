package nn

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Encoder runs a stack of ConvLSTM cells over an input sequence and returns
// the final hidden and cell states of every layer. Layer 0 consumes the
// input frames; each deeper layer consumes the hidden state of the layer
// below at the same time step.
type Encoder[B tensor.Backend] struct {
	cells   []*ConvLSTMCell[B]
	backend B
}

// NewEncoder builds the encoder stack. hiddenChannels and kernelSizes must
// have one entry per layer.
func NewEncoder[B tensor.Backend](
	name string,
	inChannels int,
	hiddenChannels, kernelSizes []int,
	height, width int,
	forgetBias float64,
	backend B,
) *Encoder[B] {
	if len(hiddenChannels) != len(kernelSizes) {
		panic(fmt.Sprintf("encoder: %d hidden channel entries but %d kernel sizes",
			len(hiddenChannels), len(kernelSizes)))
	}
	cells := make([]*ConvLSTMCell[B], len(hiddenChannels))
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
	}
	return &Encoder[B]{cells: cells, backend: backend}
}

// Forward encodes a sequence [B, S, C, H, W] and returns per-layer final
// states, each [B, hidden, H, W].
func (e *Encoder[B]) Forward(inputs *tensor.Tensor[float32, B]) (h, c []*tensor.Tensor[float32, B]) {
	shape := inputs.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("encoder: expected 5D input [B,S,C,H,W], got %v", shape))
	}
	batch, seq := shape[0], shape[1]

	h = make([]*tensor.Tensor[float32, B], len(e.cells))
	c = make([]*tensor.Tensor[float32, B], len(e.cells))
	for i, cell := range e.cells {
		h[i], c[i] = cell.InitState(batch)
	}

	for s := 0; s < seq; s++ {
		x := inputs.Narrow(1, s, 1).Reshape(batch, shape[2], shape[3], shape[4])
		h[0], c[0] = e.cells[0].Forward(x, h[0], c[0])
		for i := 1; i < len(e.cells); i++ {
			h[i], c[i] = e.cells[i].Forward(h[i-1], h[i], c[i])
		}
	}
	return h, c
}

// Parameters returns the parameters of every cell in the stack.
func (e *Encoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, cell := range e.cells {
		params = append(params, cell.Parameters()...)
	}
	return params
}

// StateDict returns the encoder parameters keyed by name.
func (e *Encoder[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(e.Parameters())
}

// LoadStateDict restores the encoder parameters.
func (e *Encoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(e.Parameters(), stateDict)
}
