package nn_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-ml/nimbus/internal/backend/cpu"
	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/optim"
	"github.com/nimbus-ml/nimbus/internal/serialization"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

type CPUBackend = *cpu.Backend

func TestCheckpointSaveLoadAdam(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "ckpt.nimbus")

	model := nn.NewConvLSTM(smallCPUConfig(), backend)
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-3}, backend)

	// One fake step so moment buffers exist.
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	for _, p := range model.Parameters() {
		g, err := tensor.NewRaw(p.Tensor().Shape(), tensor.Float32, tensor.CPU)
		require.NoError(t, err)
		for i := range g.AsFloat32() {
			g.AsFloat32()[i] = 0.01
		}
		grads[p.Tensor().Raw()] = g
	}
	optimizer.Step(grads)

	ckpt := &nn.Checkpoint[CPUBackend]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     3,
		Step:      42,
		Loss:      0.5,
		Metadata:  map[string]any{"run_id": "test-run"},
	}
	require.NoError(t, ckpt.Save(path))

	restoredModel := nn.NewConvLSTM(smallCPUConfig(), backend)
	restoredOptimizer := optim.NewAdam(restoredModel.Parameters(), optim.AdamConfig{LR: 1e-3}, backend)

	loaded, err := nn.LoadCheckpoint(path, backend, restoredModel, restoredOptimizer)
	require.NoError(t, err)

	assert.Equal(t, 3, loaded.Epoch)
	assert.Equal(t, int64(42), loaded.Step)
	assert.InDelta(t, 0.5, loaded.Loss, 1e-9)
	assert.Equal(t, "test-run", loaded.Metadata["run_id"])
	assert.Equal(t, 1, restoredOptimizer.Timestep())

	want := model.StateDict()
	got := restoredModel.StateDict()
	require.Len(t, got, len(want))
	for name, raw := range want {
		restored, ok := got[name]
		require.True(t, ok, "missing parameter %s", name)
		assert.Equal(t, raw.AsFloat32(), restored.AsFloat32(), "parameter %s", name)
	}
}

func TestLoadCheckpointWithoutOptimizer(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "ckpt.nimbus")

	model := nn.NewConvLSTM(smallCPUConfig(), backend)
	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01}, backend)
	ckpt := &nn.Checkpoint[CPUBackend]{Model: model, Optimizer: optimizer, Epoch: 1}
	require.NoError(t, ckpt.Save(path))

	restored := nn.NewConvLSTM(smallCPUConfig(), backend)
	loaded, err := nn.LoadCheckpoint(path, backend, restored, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Epoch)
}

func TestLoadCheckpointRejectsNonCheckpointFile(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "model.nimbus")

	model := nn.NewConvLSTM(smallCPUConfig(), backend)
	// Plain model file without checkpoint metadata.
	require.NoError(t, saveModelOnly(t, path, model))

	restored := nn.NewConvLSTM(smallCPUConfig(), backend)
	_, err := nn.LoadCheckpoint(path, backend, restored, nil)
	assert.Error(t, err)
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	backend := cpu.New()
	model := nn.NewConvLSTM(smallCPUConfig(), backend)
	_, err := nn.LoadCheckpoint(filepath.Join(t.TempDir(), "nope.nimbus"), backend, model, nil)
	assert.Error(t, err)
}

func smallCPUConfig() nn.ConvLSTMConfig {
	return nn.ConvLSTMConfig{
		InChannels:     2,
		HiddenChannels: []int{3},
		KernelSizes:    []int{3},
		Height:         4,
		Width:          4,
		ForgetBias:     0.01,
	}
}

func saveModelOnly(t *testing.T, path string, model *nn.ConvLSTM[CPUBackend]) error {
	t.Helper()
	writer, err := serialization.NewWriter(path)
	if err != nil {
		return err
	}
	defer writer.Close()
	return writer.WriteStateDict(model.StateDict(), "ConvLSTM", nil)
}
