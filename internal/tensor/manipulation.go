package tensor

// Cat concatenates tensors along a dimension.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("tensor: cat of zero tensors")
	}
	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.Raw()
	}
	b := tensors[0].Backend()
	return New[T, B](b.Cat(raws, dim), b)
}

// Chunk splits a tensor into n equal parts along a dimension.
func (t *Tensor[T, B]) Chunk(n, dim int) []*Tensor[T, B] {
	raws := t.backend.Chunk(t.raw, n, dim)
	out := make([]*Tensor[T, B], len(raws))
	for i, raw := range raws {
		out[i] = New[T, B](raw, t.backend)
	}
	return out
}

// Narrow returns a slice of length elements starting at start along dim.
func (t *Tensor[T, B]) Narrow(dim, start, length int) *Tensor[T, B] {
	return New[T, B](t.backend.Narrow(t.raw, dim, start, length), t.backend)
}
