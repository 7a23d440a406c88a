package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nimbus-ml/nimbus/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, "data_path: /data/mnist_test_seq.npy\nepochs: 3\nlr: 0.01\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataPath != "/data/mnist_test_seq.npy" {
		t.Errorf("DataPath = %q", cfg.DataPath)
	}
	if cfg.Epochs != 3 || cfg.LR != 0.01 {
		t.Errorf("Epochs/LR = %d/%g, want 3/0.01", cfg.Epochs, cfg.LR)
	}
	// Untouched keys keep defaults.
	if cfg.BatchSize != 8 || cfg.Backend != "cpu" || cfg.ValSplit != 0.9 || cfg.Keep != 5 {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no data source", "epochs: 2\n", "data_path or synthetic_samples"},
		{"bad backend", "data_path: x.npy\nbackend: cuda\n", "backend must be"},
		{"bad split", "data_path: x.npy\nval_split: 1.5\n", "val_split"},
		{"bad lr", "data_path: x.npy\nlr: -1\n", "lr must be"},
		{"malformed yaml", "epochs: [oops\n", "parse config"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.DataPath = "from-file.npy"

	cfg.ApplyOverrides(config.Overrides{
		DataPath: "cli.npy",
		Epochs:   7,
		Backend:  "webgpu",
	})
	if cfg.DataPath != "cli.npy" || cfg.Epochs != 7 || cfg.Backend != "webgpu" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// Zero overrides leave existing values alone.
	if cfg.BatchSize != 8 || cfg.LR != 1e-3 || cfg.Seed != 2022 {
		t.Errorf("zero overrides clobbered values: %+v", cfg)
	}
}

func TestValidateRepairsKeep(t *testing.T) {
	cfg := config.Default()
	cfg.DataPath = "x.npy"
	cfg.Keep = -1
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Keep != 5 {
		t.Errorf("Keep = %d, want 5", cfg.Keep)
	}
}

func TestSyntheticSatisfiesValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Synthetic = 16
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}
