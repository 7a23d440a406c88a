package cpu

import (
	"fmt"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Reshape returns a view of t with a new shape. The element count must match.
func (b *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	if newShape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}
	out := t.Clone()
	out.SetShape(newShape)
	return out
}

// Cat concatenates tensors along dim. All inputs must share dtype and have
// matching shapes except along dim.
func (b *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	first := tensors[0]
	rank := len(first.Shape())
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("cat: dim %d out of range for rank %d", dim, rank))
	}

	catSize := 0
	for i, t := range tensors {
		if t.DType() != first.DType() {
			panic("cat: mixed dtypes")
		}
		s := t.Shape()
		if len(s) != rank {
			panic(fmt.Sprintf("cat: tensor %d has rank %d, want %d", i, len(s), rank))
		}
		for d := 0; d < rank; d++ {
			if d != dim && s[d] != first.Shape()[d] {
				panic(fmt.Sprintf("cat: tensor %d shape %v incompatible with %v along dim %d",
					i, s, first.Shape(), dim))
			}
		}
		catSize += s[dim]
	}

	outShape := first.Shape().Clone()
	outShape[dim] = catSize
	out, err := tensor.NewRaw(outShape, first.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	// Copies proceed block by block: each input contributes a contiguous run
	// of innerSize bytes per outer index.
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= outShape[d]
	}
	inner := first.DType().Size()
	for d := dim + 1; d < rank; d++ {
		inner *= outShape[d]
	}

	outData := out.Data()
	outRow := catSize * inner
	offset := 0
	for _, t := range tensors {
		rows := t.Shape()[dim]
		run := rows * inner
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(outData[o*outRow+offset:o*outRow+offset+run], src[o*run:(o+1)*run])
		}
		offset += run
	}
	return out
}

// Chunk splits x into n equal parts along dim. The dimension size must be
// divisible by n.
func (b *Backend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("chunk: dim %d out of range for rank %d", dim, len(shape)))
	}
	if n <= 0 || shape[dim]%n != 0 {
		panic(fmt.Sprintf("chunk: dim size %d not divisible by %d", shape[dim], n))
	}
	size := shape[dim] / n
	out := make([]*tensor.RawTensor, n)
	for i := 0; i < n; i++ {
		out[i] = b.Narrow(x, dim, i*size, size)
	}
	return out
}

// Narrow returns a copy of the slice [start, start+length) of x along dim.
func (b *Backend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("narrow: dim %d out of range for rank %d", dim, len(shape)))
	}
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dim size %d",
			start, start+length, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	out, err := tensor.NewRaw(outShape, x.DType(), b.device)
	if err != nil {
		panic(fmt.Sprintf("narrow: %v", err))
	}

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := x.DType().Size()
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	srcRow := shape[dim] * inner
	dstRow := length * inner
	src := x.Data()
	dst := out.Data()
	for o := 0; o < outer; o++ {
		copy(dst[o*dstRow:(o+1)*dstRow], src[o*srcRow+start*inner:o*srcRow+start*inner+dstRow])
	}
	return out
}
