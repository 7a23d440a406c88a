package ops

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// reduceBroadcast sums a gradient down to the target shape, undoing any
// broadcasting the forward pass performed. Dimensions broadcast up from size
// 1 (or absent entirely) collect the gradient contributions of every element
// they were expanded to.
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad.Clone()
	}

	result := grad
	// Leading dimensions the target never had are summed away first.
	for len(result.Shape()) > len(target) {
		result = sumDim(result, 0, false)
	}
	// Then any dimension the target holds at size 1 is collapsed in place.
	for d := 0; d < len(target); d++ {
		if target[d] == 1 && result.Shape()[d] > 1 {
			result = sumDim(result, d, true)
		}
	}
	if !result.Shape().Equal(target) {
		result = backend.Reshape(result, target)
	}
	return result
}

// sumDim sums a tensor along one dimension. With keep set, the dimension
// stays in the shape at size 1; otherwise it is removed.
func sumDim(t *tensor.RawTensor, dim int, keep bool) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumDim: dim %d out of range for shape %v", dim, shape))
	}

	var outShape tensor.Shape
	if keep {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = append(tensor.Shape{}, shape[:dim]...)
		outShape = append(outShape, shape[dim+1:]...)
		if len(outShape) == 0 {
			outShape = tensor.Shape{1}
		}
	}

	out, err := tensor.NewRaw(outShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("sumDim: %v", err))
	}

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	switch t.DType() {
	case tensor.Float32:
		sumDimSlice(out.AsFloat32(), t.AsFloat32(), outer, shape[dim], inner)
	case tensor.Float64:
		sumDimSlice(out.AsFloat64(), t.AsFloat64(), outer, shape[dim], inner)
	default:
		panic(fmt.Sprintf("sumDim: unsupported dtype %s", t.DType()))
	}
	return out
}

func sumDimSlice[T float32 | float64](out, in []T, outer, reduce, inner int) {
	for o := 0; o < outer; o++ {
		for r := 0; r < reduce; r++ {
			src := in[(o*reduce+r)*inner : (o*reduce+r+1)*inner]
			dst := out[o*inner : (o+1)*inner]
			for i, v := range src {
				dst[i] += v
			}
		}
	}
}

// zerosLike allocates a zero gradient matching t's shape and dtype.
func zerosLike(t *tensor.RawTensor) *tensor.RawTensor {
	out, err := tensor.NewRaw(t.Shape(), t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("zerosLike: %v", err))
	}
	return out
}
