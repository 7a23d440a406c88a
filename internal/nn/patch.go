package nn

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// ReshapePatch rearranges a frame sequence [B, S, C, H, W] into patch space
// [B, S, C·p², H/p, W/p]: every p×p spatial block becomes p² extra channels.
// This trades spatial size for channels so the ConvLSTM runs on smaller
// feature maps. The transform is a pure data movement; ReshapePatchBack
// inverts it exactly.
func ReshapePatch[B tensor.Backend](
	t *tensor.Tensor[float32, B],
	patchSize int,
) *tensor.Tensor[float32, B] {
	shape := t.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("reshape patch: expected 5D input [B,S,C,H,W], got %v", shape))
	}
	batch, seq, ch, h, w := shape[0], shape[1], shape[2], shape[3], shape[4]
	if h%patchSize != 0 || w%patchSize != 0 {
		panic(fmt.Sprintf("reshape patch: size %dx%d not divisible by patch %d", h, w, patchSize))
	}

	ph, pw := h/patchSize, w/patchSize
	out := Zeros(tensor.Shape{batch, seq, ch * patchSize * patchSize, ph, pw}, t.Backend())
	movePatches(out.Data(), t.Data(), batch*seq, ch, h, w, patchSize, false)
	return out
}

// ReshapePatchBack restores [B, S, C·p², H/p, W/p] to frame space
// [B, S, C, H, W].
func ReshapePatchBack[B tensor.Backend](
	t *tensor.Tensor[float32, B],
	patchSize int,
) *tensor.Tensor[float32, B] {
	shape := t.Shape()
	if len(shape) != 5 {
		panic(fmt.Sprintf("reshape patch back: expected 5D input, got %v", shape))
	}
	batch, seq, pch, ph, pw := shape[0], shape[1], shape[2], shape[3], shape[4]
	if pch%(patchSize*patchSize) != 0 {
		panic(fmt.Sprintf("reshape patch back: %d channels not divisible by patch² %d",
			pch, patchSize*patchSize))
	}

	ch := pch / (patchSize * patchSize)
	h, w := ph*patchSize, pw*patchSize
	out := Zeros(tensor.Shape{batch, seq, ch, h, w}, t.Backend())
	movePatches(t.Data(), out.Data(), batch*seq, ch, h, w, patchSize, true)
	return out
}

// movePatches copies between frame layout [C, H, W] and patch layout
// [C·p², H/p, W/p], one frame at a time. patched is always the patch-space
// buffer; back selects the copy direction.
func movePatches(patched, frames []float32, numFrames, ch, h, w, p int, back bool) {
	ph, pw := h/p, w/p
	frameSize := ch * h * w
	patchedSize := ch * p * p * ph * pw

	for f := 0; f < numFrames; f++ {
		frame := frames[f*frameSize : (f+1)*frameSize]
		patch := patched[f*patchedSize : (f+1)*patchedSize]

		for c := 0; c < ch; c++ {
			for dy := 0; dy < p; dy++ {
				for dx := 0; dx < p; dx++ {
					pc := (c*p+dy)*p + dx
					for y := 0; y < ph; y++ {
						for x := 0; x < pw; x++ {
							fi := c*h*w + (y*p+dy)*w + (x*p + dx)
							pi := pc*ph*pw + y*pw + x
							if back {
								frame[fi] = patch[pi]
							} else {
								patch[pi] = frame[fi]
							}
						}
					}
				}
			}
		}
	}
}
