package nn

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// ConvLSTMCell is a convolutional LSTM cell with peephole connections
// (Shi et al., "Convolutional LSTM Network", 2015).
//
// A single step takes the input frame x [B, inChannels, H, W] plus the
// previous hidden and cell states [B, hiddenChannels, H, W] and produces the
// next states. All gates come from one convolution over cat(x, h) whose
// output is split four ways:
//
//	i = σ(i' + Wci∘c)
//	f = σ(f' + Wcf∘c + forgetBias)
//	c' = f∘c + i∘tanh(g)
//	o = σ(o' + Wco∘c')
//	h' = o∘tanh(c')
//
// The peephole weights Wci, Wcf, Wco are per-location tensors of shape
// [hiddenChannels, H, W], broadcast over the batch. The kernel must be odd
// so that padding kernel/2 preserves the spatial size.
type ConvLSTMCell[B tensor.Backend] struct {
	inChannels     int
	hiddenChannels int
	height         int
	width          int
	forgetBias     float64

	conv *Conv2D[B] // cat(x, h) -> 4·hidden gate pre-activations

	wci *Parameter[B]
	wcf *Parameter[B]
	wco *Parameter[B]

	backend B
}

// NewConvLSTMCell creates a cell for frames of the given spatial size.
func NewConvLSTMCell[B tensor.Backend](
	name string,
	inChannels, hiddenChannels, height, width, kernelSize int,
	forgetBias float64,
	backend B,
) *ConvLSTMCell[B] {
	if kernelSize%2 == 0 {
		panic(fmt.Sprintf("convlstm: kernel size %d must be odd to preserve spatial size", kernelSize))
	}
	if height <= 0 || width <= 0 {
		panic(fmt.Sprintf("convlstm: invalid size %dx%d", height, width))
	}

	peephole := tensor.Shape{hiddenChannels, height, width}
	return &ConvLSTMCell[B]{
		inChannels:     inChannels,
		hiddenChannels: hiddenChannels,
		height:         height,
		width:          width,
		forgetBias:     forgetBias,
		conv: NewConv2D(
			name+".gates",
			inChannels+hiddenChannels, 4*hiddenChannels,
			kernelSize, kernelSize,
			1, kernelSize/2,
			true,
			backend,
		),
		wci:     NewParameter(name+".wci", Zeros(peephole, backend)),
		wcf:     NewParameter(name+".wcf", Zeros(peephole, backend)),
		wco:     NewParameter(name+".wco", Zeros(peephole, backend)),
		backend: backend,
	}
}

// InitState returns zero hidden and cell states for the given batch size.
func (cell *ConvLSTMCell[B]) InitState(batch int) (h, c *tensor.Tensor[float32, B]) {
	shape := tensor.Shape{batch, cell.hiddenChannels, cell.height, cell.width}
	return Zeros(shape, cell.backend), Zeros(shape, cell.backend)
}

// Forward advances the cell by one time step.
func (cell *ConvLSTMCell[B]) Forward(
	x, h, c *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	if x.Shape()[1] != cell.inChannels {
		panic(fmt.Sprintf("convlstm: input channels %d, cell expects %d", x.Shape()[1], cell.inChannels))
	}

	gates := cell.conv.Forward(tensor.Cat([]*tensor.Tensor[float32, B]{x, h}, 1))
	chunks := gates.Chunk(4, 1)
	iPre, fPre, g, oPre := chunks[0], chunks[1], chunks[2], chunks[3]

	i := iPre.Add(cell.wci.Tensor().Mul(c)).Sigmoid()
	f := fPre.Add(cell.wcf.Tensor().Mul(c)).AddScalar(cell.forgetBias).Sigmoid()
	cNext := f.Mul(c).Add(i.Mul(g.Tanh()))
	o := oPre.Add(cell.wco.Tensor().Mul(cNext)).Sigmoid()
	hNext := o.Mul(cNext.Tanh())

	return hNext, cNext
}

// HiddenChannels returns the number of hidden channels.
func (cell *ConvLSTMCell[B]) HiddenChannels() int { return cell.hiddenChannels }

// Parameters returns the cell's trainable parameters.
func (cell *ConvLSTMCell[B]) Parameters() []*Parameter[B] {
	params := cell.conv.Parameters()
	return append(params, cell.wci, cell.wcf, cell.wco)
}

// StateDict returns the cell parameters keyed by name.
func (cell *ConvLSTMCell[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(cell.Parameters())
}

// LoadStateDict restores the cell parameters.
func (cell *ConvLSTMCell[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(cell.Parameters(), stateDict)
}
