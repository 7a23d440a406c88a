package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

const producerVersion = "nimbus 0.1.0"

// Writer writes .nimbus container files.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates the target file for writing.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &Writer{file: file}, nil
}

// WriteStateDict writes a plain model file without checkpoint metadata.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) error {
	return w.WriteStateDictWithHeader(stateDict, Header{
		ModelType: modelType,
		Metadata:  metadata,
	})
}

// WriteStateDictWithHeader writes the container with a caller-provided
// header, filling in the format fields and tensor index. Checkpoint files
// set header.CheckpointMeta.
func (w *Writer) WriteStateDictWithHeader(stateDict map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	header.FormatVersion = FormatVersion
	header.Producer = producerVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Sorted tensor order keeps the output byte-for-byte reproducible.
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header.Tensors = make([]TensorMeta, 0, len(names))
	var data []byte
	for _, name := range names {
		raw := stateDict[name]
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: int64(len(data)),
			Size:   int64(raw.ByteSize()),
		})
		data = append(data, raw.Data()...)
	}

	checksum := ComputeChecksum(data)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil {
		flags |= FlagIsCheckpoint
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.file.Write(fixed); err != nil {
		return fmt.Errorf("write fixed header: %w", err)
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(len(headerJSON))
	if padding := (DataAlignment - pos%DataAlignment) % DataAlignment; padding > 0 {
		if _, err := w.file.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}

	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("write tensor data: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
