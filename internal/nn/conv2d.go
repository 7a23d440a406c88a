package nn

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Conv2D is a 2D convolutional layer over [batch, channels, height, width]
// input, producing [batch, outChannels, outH, outW] with
//
//	outH = (height + 2·padding - kernelH)/stride + 1
//	outW = (width  + 2·padding - kernelW)/stride + 1
//
// Weights use Xavier initialization, the optional bias starts at zero.
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelH     int
	kernelW     int
	stride      int
	padding     int

	weight *Parameter[B] // [outChannels, inChannels, kernelH, kernelW]
	bias   *Parameter[B] // [outChannels], nil when disabled

	backend B
}

// NewConv2D creates a convolutional layer. The name prefixes the layer's
// parameter names in state dicts.
func NewConv2D[B tensor.Backend](
	name string,
	inChannels, outChannels, kernelH, kernelW, stride, padding int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel %dx%d", kernelH, kernelW))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d or padding %d", stride, padding))
	}

	fanIn := inChannels * kernelH * kernelW
	fanOut := outChannels * kernelH * kernelW
	weight := Xavier(fanIn, fanOut, tensor.Shape{outChannels, inChannels, kernelH, kernelW}, backend)

	c := &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelH:     kernelH,
		kernelW:     kernelW,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter(name+".weight", weight),
		backend:     backend,
	}
	if useBias {
		c.bias = NewParameter(name+".bias", Zeros(tensor.Shape{outChannels}, backend))
	}
	return c
}

// Forward applies the convolution.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %v", shape))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d, layer expects %d", shape[1], c.inChannels))
	}

	raw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding)
	out := tensor.New[float32, B](raw, c.backend)

	if c.bias != nil {
		// Broadcast the bias over batch and spatial dimensions.
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return out
}

// Parameters returns the layer's trainable parameters.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns the layer parameters keyed by name.
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	return collectStateDict(c.Parameters())
}

// LoadStateDict restores the layer parameters.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadStateDict(c.Parameters(), stateDict)
}

// String describes the layer configuration.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in=%d, out=%d, kernel=%dx%d, stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelH, c.kernelW, c.stride, c.padding, c.bias != nil)
}
