// Package main provides the Nimbus CLI: train, predict and version commands
// for the Moving-MNIST ConvLSTM predictor.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nimbus-ml/nimbus/internal/autodiff"
	"github.com/nimbus-ml/nimbus/internal/backend/cpu"
	"github.com/nimbus-ml/nimbus/internal/backend/webgpu"
	"github.com/nimbus-ml/nimbus/internal/config"
	"github.com/nimbus-ml/nimbus/internal/dataset"
	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/optim"
	"github.com/nimbus-ml/nimbus/internal/tensor"
	"github.com/nimbus-ml/nimbus/internal/trainer"
)

const version = "v0.1.0"

func main() {
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "train":
		err = trainCmd(os.Args[2:])
	case "predict":
		err = predictCmd(os.Args[2:])
	case "version":
		fmt.Printf("nimbus %s\n", version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "nimbus: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Println("Nimbus - spatiotemporal sequence prediction in Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  train      Train the Moving-MNIST predictor")
	fmt.Println("  predict    Run a trained checkpoint over a dataset")
	fmt.Println("  version    Show version")
}

// loadConfig parses the shared config/override flags of a subcommand.
func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	cfgPath := fs.String("config", "", "Path to YAML config (optional)")
	dataPath := fs.String("data", "", "Path to mnist_test_seq.npy")
	saveDir := fs.String("save-dir", "", "Checkpoint directory")
	epochs := fs.Int("epochs", 0, "Number of training epochs")
	batchSize := fs.Int("batch", 0, "Batch size")
	lr := fs.Float64("lr", 0, "Learning rate")
	seed := fs.Int64("seed", 0, "PRNG seed")
	backendName := fs.String("backend", "", "Compute backend: cpu or webgpu")
	synthetic := fs.Int("synthetic", 0, "Use N synthetic sequences instead of a data file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyOverrides(config.Overrides{
		DataPath:  *dataPath,
		SaveDir:   *saveDir,
		Epochs:    *epochs,
		BatchSize: *batchSize,
		LR:        *lr,
		Seed:      *seed,
		Backend:   *backendName,
		Synthetic: *synthetic,
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func trainCmd(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	resume := fs.String("resume", "", "Checkpoint to resume from")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	switch cfg.Backend {
	case "webgpu":
		b, err := webgpu.New()
		if err != nil {
			return fmt.Errorf("webgpu init: %w", err)
		}
		defer b.Release()
		return runTrain(autodiff.New(b), cfg, *resume)
	default:
		return runTrain(autodiff.New(cpu.New()), cfg, *resume)
	}
}

func runTrain[B tensor.Backend](backend *autodiff.Backend[B], cfg *config.Config, resume string) error {
	t := trainer.New(backend, cfg.Epochs, cfg.SaveDir, cfg.Seed)
	t.Keep = cfg.Keep

	data, err := loadData(cfg)
	if err != nil {
		return err
	}
	train, val := data.Split(cfg.ValSplit)
	log.Printf("run=%s backend=%s train=%d val=%d batch=%d", t.RunID(), backend.Name(), train.Len(), val.Len(), cfg.BatchSize)

	model := nn.NewMovingMNIST(backend)
	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: cfg.LR}, backend)

	trainBatches := train.Batches(cfg.BatchSize, true, cfg.Seed)
	valBatches := val.Batches(cfg.BatchSize, false, cfg.Seed)
	return t.Fit(model, opt, trainBatches, valBatches, resume)
}

func predictCmd(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	ckpt := fs.String("ckpt", "", "Checkpoint to load (default: newest in save dir)")
	out := fs.String("out", "predictions.nimbus", "Output file for predicted frames")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	if *ckpt == "" {
		*ckpt = trainer.LatestCheckpoint(cfg.SaveDir)
		if *ckpt == "" {
			return errors.New("predict: no checkpoint found, pass -ckpt or train first")
		}
	}

	switch cfg.Backend {
	case "webgpu":
		b, err := webgpu.New()
		if err != nil {
			return fmt.Errorf("webgpu init: %w", err)
		}
		defer b.Release()
		return runPredict(autodiff.New(b), cfg, *ckpt, *out)
	default:
		return runPredict(autodiff.New(cpu.New()), cfg, *ckpt, *out)
	}
}

func runPredict[B tensor.Backend](backend *autodiff.Backend[B], cfg *config.Config, ckpt, out string) error {
	t := trainer.New(backend, cfg.Epochs, cfg.SaveDir, cfg.Seed)

	data, err := loadData(cfg)
	if err != nil {
		return err
	}
	log.Printf("run=%s backend=%s samples=%d checkpoint=%s", t.RunID(), backend.Name(), data.Len(), ckpt)

	model := nn.NewMovingMNIST(backend)
	batches := data.Batches(cfg.BatchSize, false, cfg.Seed)
	return t.Predict(model, batches, ckpt, out)
}

// loadData opens the configured NPY file, or generates synthetic bouncing
// sequences when synthetic_samples is set.
func loadData(cfg *config.Config) (*dataset.MovingMNIST, error) {
	if cfg.Synthetic > 0 {
		return dataset.Synthetic(cfg.Synthetic, 2, cfg.Seed), nil
	}
	data, err := dataset.LoadMovingMNIST(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.DataPath, err)
	}
	return data, nil
}
