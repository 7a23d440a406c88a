package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Reader reads .nimbus container files. The header is parsed at open time;
// tensor data is read and checksum-verified on ReadStateDict.
type Reader struct {
	file       *os.File
	header     Header
	checksum   [ChecksumSize]byte
	dataOffset int64
	dataSize   int64
	closed     bool
}

// NewReader opens a container file and parses its headers.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := &Reader{file: file}
	if err := r.readHeaders(); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeaders() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("read fixed header: %w", err)
	}

	if string(fixed[0:4]) != MagicBytes {
		return fmt.Errorf("not a nimbus file: bad magic %q", fixed[0:4])
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return fmt.Errorf("unsupported format version %d", version)
	}

	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	r.dataSize = int64(binary.LittleEndian.Uint64(fixed[24:32]))
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerJSON); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return fmt.Errorf("parse header: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(headerSize)
	r.dataOffset = pos + (DataAlignment-pos%DataAlignment)%DataAlignment
	return nil
}

// Header returns the parsed JSON header.
func (r *Reader) Header() Header { return r.header }

// ReadStateDict reads every tensor, verifies the checksum and returns the
// tensors allocated on the given device.
func (r *Reader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	data := make([]byte, r.dataSize)
	if _, err := r.file.ReadAt(data, r.dataOffset); err != nil {
		return nil, fmt.Errorf("read tensor data: %w", err)
	}
	if err := ValidateChecksum(ComputeChecksum(data), r.checksum); err != nil {
		return nil, err
	}

	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		dtype, ok := stringToDtype(meta.DType)
		if !ok {
			return nil, fmt.Errorf("tensor %s: unknown dtype %q", meta.Name, meta.DType)
		}
		if meta.Offset < 0 || meta.Offset+meta.Size > r.dataSize {
			return nil, fmt.Errorf("tensor %s: data range [%d, %d) outside section of %d bytes",
				meta.Name, meta.Offset, meta.Offset+meta.Size, r.dataSize)
		}

		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		if int64(raw.ByteSize()) != meta.Size {
			return nil, fmt.Errorf("tensor %s: shape %v needs %d bytes, header says %d",
				meta.Name, meta.Shape, raw.ByteSize(), meta.Size)
		}
		copy(raw.Data(), data[meta.Offset:meta.Offset+meta.Size])
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
