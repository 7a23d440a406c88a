package cpu

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the convolution input by
// scattering each output gradient back through the kernel (transposed
// convolution).
func (b *Backend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inShape, kShape, gShape := input.Shape(), kernel.Shape(), grad.Shape()
	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, kh, kw := kShape[0], kShape[2], kShape[3]
	hOut, wOut := gShape[2], gShape[3]

	inputGrad, err := tensor.NewRaw(inShape, grad.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d input backward: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		conv2dInputBackward(inputGrad.AsFloat32(), grad.AsFloat32(), kernel.AsFloat32(),
			n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding)
	case tensor.Float64:
		conv2dInputBackward(inputGrad.AsFloat64(), grad.AsFloat64(), kernel.AsFloat64(),
			n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding)
	default:
		panic("conv2d input backward: unsupported dtype")
	}

	return inputGrad
}

func conv2dInputBackward[T float32 | float64](
	inputGrad, grad, kernel []T,
	n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding int,
) {
	for batch := 0; batch < n; batch++ {
		igBatch := inputGrad[batch*c*h*w : (batch+1)*c*h*w]
		gBatch := grad[batch*cOut*hOut*wOut : (batch+1)*cOut*hOut*wOut]

		for oc := 0; oc < cOut; oc++ {
			kOC := kernel[oc*c*kh*kw : (oc+1)*c*kh*kw]
			gPlane := gBatch[oc*hOut*wOut : (oc+1)*hOut*wOut]

			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					g := gPlane[oh*wOut+ow]
					if g == 0 {
						continue
					}
					hStart := oh*stride - padding
					wStart := ow*stride - padding

					for ic := 0; ic < c; ic++ {
						igPlane := igBatch[ic*h*w : (ic+1)*h*w]
						kPlane := kOC[ic*kh*kw : (ic+1)*kh*kw]
						for y := 0; y < kh; y++ {
							ih := hStart + y
							if ih < 0 || ih >= h {
								continue
							}
							for x := 0; x < kw; x++ {
								iw := wStart + x
								if iw < 0 || iw >= w {
									continue
								}
								igPlane[ih*w+iw] += g * kPlane[y*kw+x]
							}
						}
					}
				}
			}
		}
	}
}

// Conv2DKernelBackward computes the gradient w.r.t. the kernel: for each
// kernel tap, the correlation of the input with the output gradient.
func (b *Backend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inShape, kShape, gShape := input.Shape(), kernel.Shape(), grad.Shape()
	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, kh, kw := kShape[0], kShape[2], kShape[3]
	hOut, wOut := gShape[2], gShape[3]

	kernelGrad, err := tensor.NewRaw(kShape, grad.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d kernel backward: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		conv2dKernelBackward(kernelGrad.AsFloat32(), grad.AsFloat32(), input.AsFloat32(),
			n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding)
	case tensor.Float64:
		conv2dKernelBackward(kernelGrad.AsFloat64(), grad.AsFloat64(), input.AsFloat64(),
			n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding)
	default:
		panic("conv2d kernel backward: unsupported dtype")
	}

	return kernelGrad
}

func conv2dKernelBackward[T float32 | float64](
	kernelGrad, grad, input []T,
	n, c, h, w, cOut, kh, kw, hOut, wOut, stride, padding int,
) {
	for batch := 0; batch < n; batch++ {
		inBatch := input[batch*c*h*w : (batch+1)*c*h*w]
		gBatch := grad[batch*cOut*hOut*wOut : (batch+1)*cOut*hOut*wOut]

		for oc := 0; oc < cOut; oc++ {
			kgOC := kernelGrad[oc*c*kh*kw : (oc+1)*c*kh*kw]
			gPlane := gBatch[oc*hOut*wOut : (oc+1)*hOut*wOut]

			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					g := gPlane[oh*wOut+ow]
					if g == 0 {
						continue
					}
					hStart := oh*stride - padding
					wStart := ow*stride - padding

					for ic := 0; ic < c; ic++ {
						inPlane := inBatch[ic*h*w : (ic+1)*h*w]
						kgPlane := kgOC[ic*kh*kw : (ic+1)*kh*kw]
						for y := 0; y < kh; y++ {
							ih := hStart + y
							if ih < 0 || ih >= h {
								continue
							}
							for x := 0; x < kw; x++ {
								iw := wStart + x
								if iw < 0 || iw >= w {
									continue
								}
								kgPlane[y*kw+x] += g * inPlane[ih*w+iw]
							}
						}
					}
				}
			}
		}
	}
}
