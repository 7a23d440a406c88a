package autodiff_test

import (
	"math"
	"testing"

	"github.com/nimbus-ml/nimbus/internal/autodiff"
	"github.com/nimbus-ml/nimbus/internal/backend/cpu"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

type Backend = *autodiff.Backend[*cpu.Backend]

func newBackend() Backend {
	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()
	return b
}

func fromSlice(t *testing.T, b Backend, data []float32, shape tensor.Shape) *tensor.Tensor[float32, Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, b)
	if err != nil {
		t.Fatal(err)
	}
	return x
}

func gradFor(t *testing.T, grads map[*tensor.RawTensor]*tensor.RawTensor, x *tensor.Tensor[float32, Backend]) []float32 {
	t.Helper()
	g, ok := grads[x.Raw()]
	if !ok {
		t.Fatal("no gradient recorded for tensor")
	}
	return g.AsFloat32()
}

func wantFloats(t *testing.T, got, want []float32, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > eps {
			t.Fatalf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBackwardAdd(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2}, tensor.Shape{2})
	y := fromSlice(t, b, []float32{3, 4}, tensor.Shape{2})

	z := x.Add(y).Sum()
	grads := autodiff.Backward(z, b)

	wantFloats(t, gradFor(t, grads, x), []float32{1, 1}, 0)
	wantFloats(t, gradFor(t, grads, y), []float32{1, 1}, 0)
}

func TestBackwardMul(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{2, 3}, tensor.Shape{2})
	y := fromSlice(t, b, []float32{5, 7}, tensor.Shape{2})

	z := x.Mul(y).Sum()
	grads := autodiff.Backward(z, b)

	wantFloats(t, gradFor(t, grads, x), []float32{5, 7}, 0)
	wantFloats(t, gradFor(t, grads, y), []float32{2, 3}, 0)
}

func TestBackwardDiv(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{6, 8}, tensor.Shape{2})
	y := fromSlice(t, b, []float32{2, 4}, tensor.Shape{2})

	z := x.Div(y).Sum()
	grads := autodiff.Backward(z, b)

	// d(x/y)/dx = 1/y, d(x/y)/dy = -x/y^2
	wantFloats(t, gradFor(t, grads, x), []float32{0.5, 0.25}, 1e-6)
	wantFloats(t, gradFor(t, grads, y), []float32{-1.5, -0.5}, 1e-6)
}

func TestBackwardBroadcastReducesGradient(t *testing.T) {
	b := newBackend()
	// Peephole pattern: [batch, c, h, w] * [c, h, w].
	x := fromSlice(t, b, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 1, 2, 2})
	w := fromSlice(t, b, []float32{10, 20, 30, 40}, tensor.Shape{1, 2, 2})

	z := x.Mul(w).Sum()
	grads := autodiff.Backward(z, b)

	wg := gradFor(t, grads, w)
	// Gradient of w sums over the batch dimension: x[0] + x[1].
	wantFloats(t, wg, []float32{6, 8, 10, 12}, 1e-6)
	xg := gradFor(t, grads, x)
	wantFloats(t, xg, []float32{10, 20, 30, 40, 10, 20, 30, 40}, 1e-6)
}

func TestBackwardSigmoid(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{0, 1, -1}, tensor.Shape{3})

	z := x.Sigmoid().Sum()
	grads := autodiff.Backward(z, b)

	want := make([]float32, 3)
	for i, v := range []float64{0, 1, -1} {
		s := 1 / (1 + math.Exp(-v))
		want[i] = float32(s * (1 - s))
	}
	wantFloats(t, gradFor(t, grads, x), want, 1e-6)
}

func TestBackwardTanh(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{0, 0.5, -2}, tensor.Shape{3})

	z := x.Tanh().Sum()
	grads := autodiff.Backward(z, b)

	want := make([]float32, 3)
	for i, v := range []float64{0, 0.5, -2} {
		th := math.Tanh(v)
		want[i] = float32(1 - th*th)
	}
	wantFloats(t, gradFor(t, grads, x), want, 1e-6)
}

func TestBackwardClampMasksOutOfRange(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{-0.5, 0.5, 1.5}, tensor.Shape{3})

	z := x.Clamp(0, 1).Sum()
	grads := autodiff.Backward(z, b)

	// Saturated elements get zero gradient.
	wantFloats(t, gradFor(t, grads, x), []float32{0, 1, 0}, 0)
}

func TestBackwardChunkAndCat(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 4})

	chunks := x.Chunk(2, 1)
	// Only the first chunk contributes; the second chunk's gradient is zero.
	z := chunks[0].MulScalar(3).Sum()
	grads := autodiff.Backward(z, b)

	wantFloats(t, gradFor(t, grads, x), []float32{3, 3, 0, 0, 3, 3, 0, 0}, 1e-6)
}

func TestBackwardCat(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2}, tensor.Shape{1, 2})
	y := fromSlice(t, b, []float32{3, 4, 5}, tensor.Shape{1, 3})

	z := tensor.Cat([]*tensor.Tensor[float32, Backend]{x, y}, 1).MulScalar(2).Sum()
	grads := autodiff.Backward(z, b)

	wantFloats(t, gradFor(t, grads, x), []float32{2, 2}, 1e-6)
	wantFloats(t, gradFor(t, grads, y), []float32{2, 2, 2}, 1e-6)
}

func TestBackwardNarrow(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})

	z := x.Narrow(0, 1, 1).Sum()
	grads := autodiff.Backward(z, b)

	wantFloats(t, gradFor(t, grads, x), []float32{0, 0, 1, 1, 0, 0}, 0)
}

func TestBackwardReshape(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	z := x.Reshape(4).MulScalar(2).Sum()
	grads := autodiff.Backward(z, b)

	g, ok := grads[x.Raw()]
	if !ok {
		t.Fatal("no gradient for reshaped input")
	}
	if !g.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("gradient shape %v, want [2 2]", g.Shape())
	}
	wantFloats(t, g.AsFloat32(), []float32{2, 2, 2, 2}, 1e-6)
}

func TestBackwardMSE(t *testing.T) {
	b := newBackend()
	pred := fromSlice(t, b, []float32{1, 2, 3, 4}, tensor.Shape{4})
	target := fromSlice(t, b, []float32{0, 2, 2, 6}, tensor.Shape{4})

	raw := b.MSE(pred.Raw(), target.Raw())
	loss := tensor.New[float32, Backend](raw, b)
	if math.Abs(float64(loss.Item())-1.5) > 1e-6 {
		t.Fatalf("loss %v, want 1.5", loss.Item())
	}

	grads := autodiff.Backward(loss, b)
	// d/dpred mean((p-t)^2) = 2(p-t)/N
	wantFloats(t, gradFor(t, grads, pred), []float32{0.5, 0, 0.5, -1}, 1e-6)
}

func TestBackwardConv2DNumeric(t *testing.T) {
	b := newBackend()
	input := fromSlice(t, b, []float32{
		0.1, -0.2, 0.3,
		0.4, 0.5, -0.6,
		0.7, -0.8, 0.9,
	}, tensor.Shape{1, 1, 3, 3})
	kernel := fromSlice(t, b, []float32{
		0.5, -1,
		1.5, 0.25,
	}, tensor.Shape{1, 1, 2, 2})

	loss := func() float64 {
		b.Tape().Clear()
		raw := b.Conv2D(input.Raw(), kernel.Raw(), 1, 0)
		out := tensor.New[float32, Backend](raw, b)
		return float64(out.Sum().Item())
	}

	b.Tape().Clear()
	raw := b.Conv2D(input.Raw(), kernel.Raw(), 1, 0)
	z := tensor.New[float32, Backend](raw, b).Sum()
	grads := autodiff.Backward(z, b)
	kg := gradFor(t, grads, kernel)

	const h = 1e-3
	kdata := kernel.Raw().AsFloat32()
	for i := range kdata {
		orig := kdata[i]
		kdata[i] = orig + h
		up := loss()
		kdata[i] = orig - h
		down := loss()
		kdata[i] = orig
		numeric := (up - down) / (2 * h)
		if math.Abs(numeric-float64(kg[i])) > 1e-2 {
			t.Errorf("kernel grad %d: analytic %v, numeric %v", i, kg[i], numeric)
		}
	}
}

func TestTapeClearAndRecordingFlags(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2}, tensor.Shape{2})
	_ = x.Add(x)
	if b.Tape().NumOps() == 0 {
		t.Fatal("expected recorded operations")
	}

	b.Tape().Clear()
	if b.Tape().NumOps() != 0 {
		t.Fatal("clear should drop all operations")
	}
	if !b.Tape().IsRecording() {
		t.Fatal("clear should not stop recording")
	}

	b.Tape().StopRecording()
	_ = x.Add(x)
	if b.Tape().NumOps() != 0 {
		t.Fatal("stopped tape must not record")
	}
}

func TestBackwardOnIntermediateTensor(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{2, 3}, tensor.Shape{2})
	y := fromSlice(t, b, []float32{5, 7}, tensor.Shape{2})

	z := x.Mul(y)
	z.Add(y)

	// Differentiating z must ignore the add recorded after it: the seed
	// lands on z itself, not on the last op's output.
	grads := autodiff.Backward(z, b)
	wantFloats(t, gradFor(t, grads, x), []float32{5, 7}, 0)
	wantFloats(t, gradFor(t, grads, y), []float32{2, 3}, 0)
}

func TestGradientAccumulatesOverReuse(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{3}, tensor.Shape{1})

	// z = x*x: dz/dx = 2x = 6.
	z := x.Mul(x).Sum()
	grads := autodiff.Backward(z, b)
	wantFloats(t, gradFor(t, grads, x), []float32{6}, 1e-6)
}
