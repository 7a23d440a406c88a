// Package trainer drives the training, validation and prediction loops:
// epoch iteration with a gradient tape, checkpointing through a background
// monitor, and resumable runs.
package trainer

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/nimbus-ml/nimbus/internal/autodiff"
	"github.com/nimbus-ml/nimbus/internal/dataset"
	"github.com/nimbus-ml/nimbus/internal/metrics"
	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/optim"
	"github.com/nimbus-ml/nimbus/internal/serialization"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Model is the training surface the trainer drives. Step methods consume a
// batch and return a scalar loss (or, for prediction, the predicted frames).
type Model[B tensor.Backend] interface {
	nn.Module[B]
	TrainingStep(inputs, labels *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	ValidationStep(inputs, labels *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	PredictStep(inputs *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// Trainer runs training epochs over batched data and writes one checkpoint
// per epoch. The backend must carry a gradient tape.
type Trainer[B autodiff.BackwardCapable] struct {
	MaxEpoch  int
	SaveDir   string
	Seed      int64
	Keep      int
	Scheduler optim.LRScheduler

	backend B
	runID   string
}

// New creates a trainer and seeds the global PRNG so weight initialization
// of models constructed afterwards is reproducible.
func New[B autodiff.BackwardCapable](backend B, maxEpoch int, saveDir string, seed int64) *Trainer[B] {
	rand.Seed(seed)
	return &Trainer[B]{
		MaxEpoch: maxEpoch,
		SaveDir:  saveDir,
		Seed:     seed,
		Keep:     5,
		backend:  backend,
		runID:    uuid.NewString(),
	}
}

// RunID identifies this trainer instance in checkpoint metadata.
func (t *Trainer[B]) RunID() string { return t.runID }

// Fit trains the model. When resumePath is non-empty, model and optimizer
// state are restored from that checkpoint and training continues at the
// following epoch.
func (t *Trainer[B]) Fit(
	model Model[B],
	optimizer optim.Optimizer,
	train, val []*dataset.Batch,
	resumePath string,
) error {
	if len(train) == 0 {
		return fmt.Errorf("fit: no training batches")
	}

	startEpoch := 0
	var step int64
	if resumePath != "" {
		ckpt, err := nn.LoadCheckpoint(resumePath, t.backend, model, optimizer)
		if err != nil {
			return fmt.Errorf("resume from %s: %w", resumePath, err)
		}
		startEpoch = ckpt.Epoch + 1
		step = ckpt.Step
		log.Printf("resumed run=%s epoch=%d step=%d loss=%.6f", t.runID, ckpt.Epoch, ckpt.Step, ckpt.Loss)
	}

	if err := os.MkdirAll(t.workDir(), 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}
	monitor := newCheckpointMonitor(t.workDir(), t.SaveDir, t.Keep)
	monitor.Start()
	defer monitor.Stop()

	tape := t.backend.GetTape()
	tape.StartRecording()
	defer tape.StopRecording()

	window := &metrics.Window{}

	for epoch := startEpoch; epoch < t.MaxEpoch; epoch++ {
		bar := newProgressBar(os.Stdout, fmt.Sprintf("epoch %d/%d", epoch+1, t.MaxEpoch), len(train))
		for i, batch := range train {
			tape.Clear()
			stepStart := time.Now()

			inputs, labels, err := batchTensors(batch, t.backend)
			if err != nil {
				return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
			}

			loss := model.TrainingStep(inputs, labels)
			lossValue := float64(loss.Item())
			if math.IsNaN(lossValue) || math.IsInf(lossValue, 0) {
				return fmt.Errorf("epoch %d batch %d: non-finite training loss %v", epoch, i, lossValue)
			}

			grads := autodiff.Backward(loss, t.backend)
			optimizer.Step(grads)
			step++

			window.Record(batch.Size, time.Since(stepStart), lossValue)
			bar.Update(i+1, lossValue)
		}
		bar.Finish()
		tape.Clear()

		valLoss, err := t.validate(model, val)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}

		snap := window.Snapshot()
		log.Printf("epoch=%d train_loss=%.6f train_std=%.6f val_loss=%.6f lr=%g samples_per_sec=%.1f step_ms=%.0f",
			epoch, snap.MeanLoss, snap.StdLoss, valLoss, optimizer.GetLR(), snap.SamplesPerSec, snap.AvgStepMS)

		if t.Scheduler != nil {
			t.Scheduler.EpochEnd(optimizer, epoch)
		}

		// Without validation batches valLoss is NaN; checkpoint under the
		// epoch's training loss instead so the name and header stay finite.
		ckptLoss := valLoss
		if math.IsNaN(ckptLoss) || math.IsInf(ckptLoss, 0) {
			ckptLoss = snap.MeanLoss
		}
		if err := t.saveCheckpoint(model, optimizer, epoch, step, ckptLoss); err != nil {
			return err
		}
	}
	return nil
}

// validate computes the mean validation loss with gradient recording off.
// With no validation batches it returns NaN, which is logged but never
// checkpoint-gated.
func (t *Trainer[B]) validate(model Model[B], batches []*dataset.Batch) (float64, error) {
	tape := t.backend.GetTape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	losses := make([]float64, 0, len(batches))
	for i, batch := range batches {
		inputs, labels, err := batchTensors(batch, t.backend)
		if err != nil {
			return 0, fmt.Errorf("validation batch %d: %w", i, err)
		}
		loss := float64(model.ValidationStep(inputs, labels).Item())
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return 0, fmt.Errorf("validation batch %d: non-finite loss %v", i, loss)
		}
		losses = append(losses, loss)
	}
	if len(losses) == 0 {
		return math.NaN(), nil
	}
	return stat.Mean(losses, nil), nil
}

func (t *Trainer[B]) saveCheckpoint(model Model[B], optimizer optim.Optimizer, epoch int, step int64, loss float64) error {
	ckpt := &nn.Checkpoint[B]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     epoch,
		Step:      step,
		Loss:      loss,
		Metadata: map[string]any{
			"run_id": t.runID,
			"seed":   t.Seed,
		},
	}
	name := fmt.Sprintf("%s%06d_%.6f", checkpointStem, epoch, loss)
	tempPath := filepath.Join(t.workDir(), name+tempSuffix)
	if err := ckpt.Save(tempPath); err != nil {
		return fmt.Errorf("save checkpoint epoch %d: %w", epoch, err)
	}
	// Dropping the temp suffix marks the file complete; the monitor only
	// moves completed files into the save directory.
	if err := os.Rename(tempPath, filepath.Join(t.workDir(), name+checkpointExt)); err != nil {
		return fmt.Errorf("finish checkpoint epoch %d: %w", epoch, err)
	}
	return nil
}

// workDir is the scratch directory checkpoints are written into before the
// monitor publishes them.
func (t *Trainer[B]) workDir() string { return filepath.Join(t.SaveDir, checkpointWorkDir) }

// Predict restores model weights from ckptPath, runs the prediction step
// over every batch and writes the concatenated predictions to outPath as a
// single-tensor .nimbus file.
func (t *Trainer[B]) Predict(model Model[B], batches []*dataset.Batch, ckptPath, outPath string) error {
	if _, err := nn.LoadCheckpoint(ckptPath, t.backend, model, nil); err != nil {
		fmt.Fprintf(os.Stderr, "predict: cannot restore %s: %v\n", ckptPath, err)
		return fmt.Errorf("restore %s: %w", ckptPath, err)
	}

	tape := t.backend.GetTape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	bar := newProgressBar(os.Stdout, "predict", len(batches))
	var outputs []*tensor.Tensor[float32, B]
	for i, batch := range batches {
		inputs, err := tensor.FromSlice(batch.Inputs, tensor.Shape(batch.InputShape()), t.backend)
		if err != nil {
			return fmt.Errorf("predict batch %d: %w", i, err)
		}
		outputs = append(outputs, model.PredictStep(inputs))
		bar.Update(i+1, 0)
	}
	bar.Finish()
	if len(outputs) == 0 {
		return fmt.Errorf("predict: no batches")
	}

	predictions := tensor.Cat(outputs, 0)
	writer, err := serialization.NewWriter(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer writer.Close()

	header := serialization.Header{
		ModelType: "Predictions",
		CreatedAt: time.Now().UTC(),
		Metadata: map[string]string{
			"run_id":     t.runID,
			"checkpoint": filepath.Base(ckptPath),
			"batches":    strconv.Itoa(len(batches)),
		},
	}
	stateDict := map[string]*tensor.RawTensor{"predictions": predictions.Raw()}
	if err := writer.WriteStateDictWithHeader(stateDict, header); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	log.Printf("predictions shape=%v saved=%s", predictions.Shape(), outPath)
	return nil
}

// batchTensors lifts one batch into backend tensors.
func batchTensors[B tensor.Backend](batch *dataset.Batch, backend B) (inputs, labels *tensor.Tensor[float32, B], err error) {
	inputs, err = tensor.FromSlice(batch.Inputs, tensor.Shape(batch.InputShape()), backend)
	if err != nil {
		return nil, nil, fmt.Errorf("batch inputs: %w", err)
	}
	labels, err = tensor.FromSlice(batch.Labels, tensor.Shape(batch.LabelShape()), backend)
	if err != nil {
		return nil, nil, fmt.Errorf("batch labels: %w", err)
	}
	return inputs, labels, nil
}
