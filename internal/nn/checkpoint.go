package nn

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nimbus-ml/nimbus/internal/serialization"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

const optimizerPrefix = "optimizer."

// OptimizerState is the optimizer surface a checkpoint needs. Declared here
// rather than in optim to avoid an import cycle; optimizers implement it.
type OptimizerState interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
	Name() string
	GetLR() float64
}

// Checkpoint is a complete training snapshot: model parameters, optimizer
// state and training progress. Saving and loading round-trips through the
// .nimbus container; optimizer entries carry an "optimizer." key prefix so
// both state dicts share one tensor section.
type Checkpoint[B tensor.Backend] struct {
	Model     Module[B]
	Optimizer OptimizerState
	Epoch     int
	Step      int64
	Loss      float64
	Metadata  map[string]any
	CreatedAt time.Time
}

// Save writes the checkpoint to path. A non-finite loss is stored as zero:
// the header is JSON, which cannot represent NaN or infinity.
func (c *Checkpoint[B]) Save(path string) (err error) {
	loss := c.Loss
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		loss = 0
	}

	combined := make(map[string]*tensor.RawTensor)
	for name, raw := range c.Model.StateDict() {
		combined[name] = raw
	}
	for name, raw := range c.Optimizer.StateDict() {
		combined[optimizerPrefix+name] = raw
	}

	header := serialization.Header{
		ModelType: "Checkpoint",
		CreatedAt: time.Now().UTC(),
		CheckpointMeta: &serialization.CheckpointMeta{
			Epoch:         c.Epoch,
			Step:          c.Step,
			Loss:          loss,
			OptimizerType: c.Optimizer.Name(),
			OptimizerConfig: map[string]any{
				"lr": c.Optimizer.GetLR(),
			},
			TrainingMeta: c.Metadata,
		},
	}

	writer, err := serialization.NewWriter(path)
	if err != nil {
		return fmt.Errorf("create checkpoint writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := writer.WriteStateDictWithHeader(combined, header); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores model and optimizer state from path. Both must be
// pre-constructed with the same architecture the checkpoint was saved from.
// A nil optimizer skips optimizer state restoration, which is all inference
// needs.
func LoadCheckpoint[B tensor.Backend](
	path string,
	backend B,
	model Module[B],
	optimizer OptimizerState,
) (*Checkpoint[B], error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer reader.Close()

	header := reader.Header()
	if header.CheckpointMeta == nil {
		return nil, fmt.Errorf("%s is not a checkpoint file", path)
	}

	stateDict, err := reader.ReadStateDict(backend.Device())
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	modelState := make(map[string]*tensor.RawTensor)
	optimizerState := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if strings.HasPrefix(name, optimizerPrefix) {
			optimizerState[strings.TrimPrefix(name, optimizerPrefix)] = raw
		} else {
			modelState[name] = raw
		}
	}

	if err := model.LoadStateDict(modelState); err != nil {
		return nil, fmt.Errorf("load model state: %w", err)
	}
	if optimizer != nil {
		if err := optimizer.LoadStateDict(optimizerState); err != nil {
			return nil, fmt.Errorf("load optimizer state: %w", err)
		}
	}

	return &Checkpoint[B]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     header.CheckpointMeta.Epoch,
		Step:      header.CheckpointMeta.Step,
		Loss:      header.CheckpointMeta.Loss,
		Metadata:  header.CheckpointMeta.TrainingMeta,
		CreatedAt: header.CreatedAt,
	}, nil
}
