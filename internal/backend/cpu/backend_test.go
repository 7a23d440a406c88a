package cpu_test

import (
	"math"
	"testing"

	"github.com/nimbus-ml/nimbus/internal/backend/cpu"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	copy(raw.AsFloat32(), data)
	return raw
}

func wantFloats(t *testing.T, got *tensor.RawTensor, want []float32, eps float64) {
	t.Helper()
	data := got.AsFloat32()
	if len(data) != len(want) {
		t.Fatalf("length %d, want %d", len(data), len(want))
	}
	for i := range want {
		if math.Abs(float64(data[i]-want[i])) > eps {
			t.Fatalf("element %d: got %v, want %v", i, data[i], want[i])
		}
	}
}

func TestAddSameShape(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := fromSlice(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})
	wantFloats(t, b.Add(x, y), []float32{11, 22, 33, 44}, 0)
}

func TestAddBroadcastMissingLeadingDim(t *testing.T) {
	b := cpu.New()
	// [2, 2, 2] + [2, 2]: peephole-style broadcast over the batch dim.
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	y := fromSlice(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})
	got := b.Add(x, y)
	if !got.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("shape %v, want [2 2 2]", got.Shape())
	}
	wantFloats(t, got, []float32{11, 22, 33, 44, 15, 26, 37, 48}, 0)
}

func TestAddBroadcastSizeOneDim(t *testing.T) {
	b := cpu.New()
	// Bias add: [1, 2, 1, 1] over [2, 2, 2, 2].
	x := fromSlice(t, make([]float32, 16), tensor.Shape{2, 2, 2, 2})
	bias := fromSlice(t, []float32{1, 2}, tensor.Shape{1, 2, 1, 1})
	got := b.Add(x, bias).AsFloat32()
	want := []float32{1, 1, 1, 1, 2, 2, 2, 2, 1, 1, 1, 1, 2, 2, 2, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMulDivSub(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{2, 4, 6, 8}, tensor.Shape{4})
	y := fromSlice(t, []float32{2, 2, 3, 4}, tensor.Shape{4})
	wantFloats(t, b.Mul(x, y), []float32{4, 8, 18, 32}, 0)
	wantFloats(t, b.Div(x, y), []float32{1, 2, 2, 2}, 0)
	wantFloats(t, b.Sub(x, y), []float32{0, 2, 3, 4}, 0)
}

func TestScalarOps(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{1, -2, 3}, tensor.Shape{3})
	wantFloats(t, b.AddScalar(x, 0.5), []float32{1.5, -1.5, 3.5}, 1e-6)
	wantFloats(t, b.MulScalar(x, -2), []float32{-2, 4, -6}, 1e-6)
}

func TestSigmoidTanh(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{0, 2, -2}, tensor.Shape{3})
	wantFloats(t, b.Sigmoid(x), []float32{0.5, 0.880797, 0.119203}, 1e-5)
	wantFloats(t, b.Tanh(x), []float32{0, 0.964028, -0.964028}, 1e-5)
}

func TestClamp(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{-0.5, 0.25, 1.5}, tensor.Shape{3})
	wantFloats(t, b.Clamp(x, 0, 1), []float32{0, 0.25, 1}, 0)
}

func TestConv2DIdentityKernel(t *testing.T) {
	b := cpu.New()
	// 3x3 identity kernel with padding 1 must reproduce the input.
	input := fromSlice(t, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 1, 3, 3})
	kernel := fromSlice(t, []float32{
		0, 0, 0,
		0, 1, 0,
		0, 0, 0,
	}, tensor.Shape{1, 1, 3, 3})
	got := b.Conv2D(input, kernel, 1, 1)
	if !got.Shape().Equal(tensor.Shape{1, 1, 3, 3}) {
		t.Fatalf("shape %v, want [1 1 3 3]", got.Shape())
	}
	wantFloats(t, got, input.AsFloat32(), 1e-6)
}

func TestConv2DKnownValues(t *testing.T) {
	b := cpu.New()
	// 2x2 input, 2x2 all-ones kernel, no padding: single output = sum.
	input := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	kernel := fromSlice(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})
	got := b.Conv2D(input, kernel, 1, 0)
	if !got.Shape().Equal(tensor.Shape{1, 1, 1, 1}) {
		t.Fatalf("shape %v, want [1 1 1 1]", got.Shape())
	}
	wantFloats(t, got, []float32{10}, 1e-6)
}

func TestConv2DMultiChannel(t *testing.T) {
	b := cpu.New()
	// Two input channels summed by a 1x1 kernel of ones per output channel.
	input := fromSlice(t, []float32{
		1, 2, 3, 4, // channel 0
		10, 20, 30, 40, // channel 1
	}, tensor.Shape{1, 2, 2, 2})
	kernel := fromSlice(t, []float32{1, 1}, tensor.Shape{1, 2, 1, 1})
	got := b.Conv2D(input, kernel, 1, 0)
	wantFloats(t, got, []float32{11, 22, 33, 44}, 1e-6)
}

func TestReshapePreservesData(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	got := b.Reshape(x, tensor.Shape{3, 2})
	if !got.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape %v, want [3 2]", got.Shape())
	}
	wantFloats(t, got, []float32{1, 2, 3, 4, 5, 6}, 0)
}

func TestCatDim0AndDim1(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := fromSlice(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	got0 := b.Cat([]*tensor.RawTensor{x, y}, 0)
	if !got0.Shape().Equal(tensor.Shape{4, 2}) {
		t.Fatalf("dim 0: shape %v", got0.Shape())
	}
	wantFloats(t, got0, []float32{1, 2, 3, 4, 5, 6, 7, 8}, 0)

	got1 := b.Cat([]*tensor.RawTensor{x, y}, 1)
	if !got1.Shape().Equal(tensor.Shape{2, 4}) {
		t.Fatalf("dim 1: shape %v", got1.Shape())
	}
	wantFloats(t, got1, []float32{1, 2, 5, 6, 3, 4, 7, 8}, 0)
}

func TestChunkInverseOfCat(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 4})
	chunks := b.Chunk(x, 4, 1)
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	for i, c := range chunks {
		if !c.Shape().Equal(tensor.Shape{2, 1}) {
			t.Fatalf("chunk %d shape %v, want [2 1]", i, c.Shape())
		}
	}
	wantFloats(t, chunks[0], []float32{1, 5}, 0)
	wantFloats(t, chunks[3], []float32{4, 8}, 0)

	back := b.Cat(chunks, 1)
	wantFloats(t, back, x.AsFloat32(), 0)
}

func TestNarrow(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
	got := b.Narrow(x, 0, 1, 2)
	if !got.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape %v, want [2 2]", got.Shape())
	}
	wantFloats(t, got, []float32{3, 4, 5, 6}, 0)

	got = b.Narrow(x, 1, 1, 1)
	wantFloats(t, got, []float32{2, 4, 6}, 0)
}

func TestSumAndMSE(t *testing.T) {
	b := cpu.New()
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	sum := b.Sum(x)
	if !sum.Shape().Equal(tensor.Shape{1}) {
		t.Fatalf("sum shape %v, want [1]", sum.Shape())
	}
	wantFloats(t, sum, []float32{10}, 1e-6)

	y := fromSlice(t, []float32{2, 2, 3, 2}, tensor.Shape{2, 2})
	// diffs: -1, 0, 0, 2 -> mean(1+0+0+4)/4 = 1.25
	wantFloats(t, b.MSE(x, y), []float32{1.25}, 1e-6)
}

func TestConv2DBackwardMatchesNumericGradient(t *testing.T) {
	b := cpu.New()
	input := fromSlice(t, []float32{
		0.5, -1, 2,
		1.5, 0.25, -0.75,
		3, -2, 1,
	}, tensor.Shape{1, 1, 3, 3})
	kernel := fromSlice(t, []float32{
		1, -0.5,
		0.25, 2,
	}, tensor.Shape{1, 1, 2, 2})
	stride, padding := 1, 1

	// Loss = sum(conv(input, kernel)); output grad of ones.
	out := b.Conv2D(input, kernel, stride, padding)
	outGrad, err := tensor.NewRaw(out.Shape(), tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	for i := range outGrad.AsFloat32() {
		outGrad.AsFloat32()[i] = 1
	}

	sumOf := func(raw *tensor.RawTensor) float64 {
		var s float64
		for _, v := range raw.AsFloat32() {
			s += float64(v)
		}
		return s
	}

	const h = 1e-3
	checkGrad := func(name string, param *tensor.RawTensor, analytic *tensor.RawTensor) {
		data := param.AsFloat32()
		grad := analytic.AsFloat32()
		for i := range data {
			orig := data[i]
			data[i] = orig + h
			up := sumOf(b.Conv2D(input, kernel, stride, padding))
			data[i] = orig - h
			down := sumOf(b.Conv2D(input, kernel, stride, padding))
			data[i] = orig
			numeric := (up - down) / (2 * h)
			if math.Abs(numeric-float64(grad[i])) > 1e-2 {
				t.Errorf("%s[%d]: analytic %v, numeric %v", name, i, grad[i], numeric)
			}
		}
	}

	checkGrad("input", input, b.Conv2DInputBackward(input, kernel, outGrad, stride, padding))
	checkGrad("kernel", kernel, b.Conv2DKernelBackward(input, kernel, outGrad, stride, padding))
}
