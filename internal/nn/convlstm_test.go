package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-ml/nimbus/internal/autodiff"
	"github.com/nimbus-ml/nimbus/internal/backend/cpu"
	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

type Backend = *autodiff.Backend[*cpu.Backend]

// smallConfig is a reduced stack that keeps tests fast while exercising the
// same code paths as the Moving-MNIST configuration.
func smallConfig() nn.ConvLSTMConfig {
	return nn.ConvLSTMConfig{
		InChannels:     2,
		HiddenChannels: []int{3, 4},
		KernelSizes:    []int{3, 3},
		Height:         8,
		Width:          8,
		ForgetBias:     0.01,
	}
}

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func TestConvLSTMCellShapes(t *testing.T) {
	backend := newBackend()
	cell := nn.NewConvLSTMCell("cell", 2, 3, 8, 8, 3, 0.01, backend)

	h, c := cell.InitState(4)
	require.True(t, h.Shape().Equal(tensor.Shape{4, 3, 8, 8}))
	require.True(t, c.Shape().Equal(tensor.Shape{4, 3, 8, 8}))

	x := tensor.Randn[float32](tensor.Shape{4, 2, 8, 8}, backend)
	hNext, cNext := cell.Forward(x, h, c)
	assert.True(t, hNext.Shape().Equal(h.Shape()), "hidden shape changed: %v", hNext.Shape())
	assert.True(t, cNext.Shape().Equal(c.Shape()), "cell shape changed: %v", cNext.Shape())
}

func TestConvLSTMCellRejectsEvenKernel(t *testing.T) {
	backend := newBackend()
	assert.Panics(t, func() {
		nn.NewConvLSTMCell("cell", 2, 3, 8, 8, 4, 0.01, backend)
	})
}

func TestConvLSTMCellZeroStateBounds(t *testing.T) {
	backend := newBackend()
	cell := nn.NewConvLSTMCell("cell", 1, 2, 4, 4, 3, 0.01, backend)

	h, c := cell.InitState(1)
	x := tensor.Zeros[float32](tensor.Shape{1, 1, 4, 4}, backend)
	hNext, _ := cell.Forward(x, h, c)

	// h' = o * tanh(c') stays in (-1, 1).
	for _, v := range hNext.Data() {
		assert.Less(t, math.Abs(float64(v)), 1.0)
	}
}

func TestEncoderForwardShapes(t *testing.T) {
	backend := newBackend()
	cfg := smallConfig()
	enc := nn.NewEncoder("encoder", cfg.InChannels, cfg.HiddenChannels, cfg.KernelSizes,
		cfg.Height, cfg.Width, cfg.ForgetBias, backend)

	inputs := tensor.Randn[float32](tensor.Shape{2, 5, 2, 8, 8}, backend)
	h, c := enc.Forward(inputs)

	require.Len(t, h, 2)
	require.Len(t, c, 2)
	assert.True(t, h[0].Shape().Equal(tensor.Shape{2, 3, 8, 8}))
	assert.True(t, h[1].Shape().Equal(tensor.Shape{2, 4, 8, 8}))
	assert.True(t, c[1].Shape().Equal(tensor.Shape{2, 4, 8, 8}))
}

func TestConvLSTMForwardShapes(t *testing.T) {
	backend := newBackend()
	model := nn.NewConvLSTM(smallConfig(), backend)

	inputs := tensor.Randn[float32](tensor.Shape{2, 5, 2, 8, 8}, backend)
	out := model.Forward(inputs, 3)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 3, 2, 8, 8}), "got %v", out.Shape())
}

func TestConvLSTMParameterNamesUnique(t *testing.T) {
	backend := newBackend()
	model := nn.NewConvLSTM(smallConfig(), backend)

	seen := map[string]bool{}
	for _, p := range model.Parameters() {
		require.False(t, seen[p.Name()], "duplicate parameter name %s", p.Name())
		seen[p.Name()] = true
	}
	// Per cell: gates weight+bias and three peepholes; two stacks of two
	// cells plus the projection weight.
	assert.Len(t, model.Parameters(), 4*5+1)
}

func TestReshapePatchRoundTrip(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(7))
	data := make([]float32, 2*3*1*8*8)
	for i := range data {
		data[i] = rng.Float32()
	}
	frames, err := tensor.FromSlice(data, tensor.Shape{2, 3, 1, 8, 8}, backend)
	require.NoError(t, err)

	patched := nn.ReshapePatch(frames, 4)
	require.True(t, patched.Shape().Equal(tensor.Shape{2, 3, 16, 2, 2}), "got %v", patched.Shape())

	back := nn.ReshapePatchBack(patched, 4)
	require.True(t, back.Shape().Equal(frames.Shape()))
	assert.Equal(t, frames.Data(), back.Data())
}

func TestReshapePatchPreservesValues(t *testing.T) {
	backend := newBackend()
	// A 2x2 patch of a 1-channel 2x2 frame maps each pixel to its own
	// channel of the single output cell.
	frames, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 1, 2, 2}, backend)
	require.NoError(t, err)

	patched := nn.ReshapePatch(frames, 2)
	require.True(t, patched.Shape().Equal(tensor.Shape{1, 1, 4, 1, 1}))
	assert.Equal(t, []float32{1, 2, 3, 4}, patched.Data())
}

func TestMSELossValue(t *testing.T) {
	backend := newBackend()
	pred, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	target, err := tensor.FromSlice([]float32{1, 0, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	loss := nn.MSELoss(pred, target)
	assert.InDelta(t, 4.0/3.0, float64(loss.Item()), 1e-6)
}

func TestMovingMNISTStepsSmallModel(t *testing.T) {
	backend := newBackend()
	cfg := nn.ConvLSTMConfig{
		InChannels:     16,
		HiddenChannels: []int{4},
		KernelSizes:    []int{3},
		Height:         16,
		Width:          16,
		ForgetBias:     0.01,
	}
	model := nn.NewMovingMNISTWithConfig(cfg, 4, 2, backend)

	inputs := tensor.Rand[float32](tensor.Shape{1, 3, 1, 64, 64}, backend)
	labels := tensor.Rand[float32](tensor.Shape{1, 2, 1, 64, 64}, backend)

	loss := model.TrainingStep(inputs, labels)
	require.True(t, loss.Shape().Equal(tensor.Shape{1}))
	lossValue := float64(loss.Item())
	assert.False(t, math.IsNaN(lossValue))
	assert.GreaterOrEqual(t, lossValue, 0.0)

	pred := model.PredictStep(inputs)
	require.True(t, pred.Shape().Equal(tensor.Shape{1, 2, 1, 64, 64}), "got %v", pred.Shape())
	for _, v := range pred.Data() {
		assert.GreaterOrEqual(t, float64(v), 0.0)
		assert.LessOrEqual(t, float64(v), 1.0)
	}
}

func TestTrainingStepDecreasesLoss(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()
	defer backend.Tape().StopRecording()

	cfg := smallConfig()
	model := nn.NewConvLSTM(cfg, backend)

	inputs := tensor.Rand[float32](tensor.Shape{1, 3, 2, 8, 8}, backend)
	labels := tensor.Rand[float32](tensor.Shape{1, 2, 2, 8, 8}, backend)

	lossAt := func() float64 {
		backend.Tape().Clear()
		out := model.Forward(inputs, 2).Clamp(0, 1)
		return float64(nn.MSELoss(out, labels).Item())
	}

	before := lossAt()
	// A few plain gradient descent steps on the recorded graph.
	for i := 0; i < 5; i++ {
		backend.Tape().Clear()
		out := model.Forward(inputs, 2).Clamp(0, 1)
		loss := nn.MSELoss(out, labels)
		grads := autodiff.Backward(loss, backend)
		for _, p := range model.Parameters() {
			g, ok := grads[p.Tensor().Raw()]
			if !ok {
				continue
			}
			data := p.Tensor().Data()
			gd := g.AsFloat32()
			for j := range data {
				data[j] -= 0.05 * gd[j]
			}
		}
	}
	after := lossAt()

	assert.Less(t, after, before, "loss should decrease after descent steps")
}
