package cpu

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Conv2D performs 2D convolution.
//
// Input [N, C, H, W], kernel [COut, C, KH, KW], output [N, COut, HOut, WOut]
// with HOut = (H + 2*padding - KH)/stride + 1 and likewise for WOut.
func (b *Backend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inShape)))
	}
	if len(kShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [COut,C,KH,KW], got %dD", len(kShape)))
	}
	if inShape[1] != kShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", inShape[1], kShape[1]))
	}

	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, kh, kw := kShape[0], kShape[2], kShape[3]
	hOut := (h+2*padding-kh)/stride + 1
	wOut := (w+2*padding-kw)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: non-positive output size %dx%d (check stride/padding)", hOut, wOut))
	}

	output, err := tensor.NewRaw(tensor.Shape{n, cOut, hOut, wOut}, input.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		conv2dForward(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(),
			n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding)
	case tensor.Float64:
		conv2dForward(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(),
			n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

func conv2dForward[T float32 | float64](
	out, in, kernel []T,
	n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding int,
) {
	for batch := 0; batch < n; batch++ {
		inBatch := in[batch*c*h*w : (batch+1)*c*h*w]
		outBatch := out[batch*cOut*hOut*wOut : (batch+1)*cOut*hOut*wOut]

		for oc := 0; oc < cOut; oc++ {
			kOC := kernel[oc*c*kh*kw : (oc+1)*c*kh*kw]
			outPlane := outBatch[oc*hOut*wOut : (oc+1)*hOut*wOut]

			for oh := 0; oh < hOut; oh++ {
				hStart := oh*stride - padding
				for ow := 0; ow < wOut; ow++ {
					wStart := ow*stride - padding

					var sum T
					for ic := 0; ic < c; ic++ {
						inPlane := inBatch[ic*h*w : (ic+1)*h*w]
						kPlane := kOC[ic*kh*kw : (ic+1)*kh*kw]
						for y := 0; y < kh; y++ {
							ih := hStart + y
							if ih < 0 || ih >= h {
								continue
							}
							row := inPlane[ih*w : ih*w+w]
							kRow := kPlane[y*kw : y*kw+kw]
							for x := 0; x < kw; x++ {
								iw := wStart + x
								if iw < 0 || iw >= w {
									continue
								}
								sum += row[iw] * kRow[x]
							}
						}
					}
					outPlane[oh*wOut+ow] = sum
				}
			}
		}
	}
}
