// Package serialization implements the .nimbus container: a fixed binary
// header, a JSON metadata block and 64-byte aligned raw tensor data guarded
// by a SHA-256 checksum. Both plain model files and training checkpoints use
// the same container; checkpoints carry an extra metadata section.
package serialization

import (
	"time"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Container layout constants.
const (
	MagicBytes      = "NMBC"
	FormatVersion   = 1
	FixedHeaderSize = 64 // magic + version + flags + sizes + checksum
	DataAlignment   = 64 // tensor data starts on a 64-byte boundary
	ChecksumSize    = 32 // SHA-256
	ChecksumOffset  = 0x20
)

// Container flags.
const (
	FlagHasMetadata  uint32 = 1 << 0
	FlagIsCheckpoint uint32 = 1 << 1
)

// Serialized dtype names.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeUint8   = "uint8"
)

// Header is the JSON metadata block following the fixed header.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	Producer       string            `json:"producer"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records the training state stored alongside the tensors.
type CheckpointMeta struct {
	Epoch           int            `json:"epoch"`
	Step            int64          `json:"step"`
	Loss            float64        `json:"loss"`
	OptimizerType   string         `json:"optimizer_type"`
	OptimizerConfig map[string]any `json:"optimizer_config"`
	TrainingMeta    map[string]any `json:"training_meta,omitempty"`
}

// TensorMeta locates one tensor inside the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Uint8:
		return DTypeUint8
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeUint8:
		return tensor.Uint8, true
	default:
		return 0, false
	}
}
