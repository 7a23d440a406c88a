package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// npyMagic is the NPY format signature.
var npyMagic = []byte("\x93NUMPY")

var npyHeaderRe = regexp.MustCompile(
	`'descr':\s*'([^']+)',\s*'fortran_order':\s*(True|False),\s*'shape':\s*\(([^)]*)\)`)

// readNPYUint8 reads a C-ordered uint8 NPY array (format version 1.0) and
// returns its shape and flat data. This covers the published Moving-MNIST
// file; anything else is rejected with a descriptive error.
func readNPYUint8(path string) ([]int, []uint8, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	preamble := make([]byte, 10)
	if _, err := io.ReadFull(f, preamble); err != nil {
		return nil, nil, fmt.Errorf("read npy preamble: %w", err)
	}
	if string(preamble[:6]) != string(npyMagic) {
		return nil, nil, fmt.Errorf("%s is not an npy file", path)
	}
	major, minor := preamble[6], preamble[7]
	if major != 1 {
		return nil, nil, fmt.Errorf("unsupported npy version %d.%d", major, minor)
	}

	headerLen := int(binary.LittleEndian.Uint16(preamble[8:10]))
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("read npy header: %w", err)
	}

	m := npyHeaderRe.FindStringSubmatch(string(headerBytes))
	if m == nil {
		return nil, nil, fmt.Errorf("cannot parse npy header %q", strings.TrimSpace(string(headerBytes)))
	}
	descr, fortran, shapeStr := m[1], m[2], m[3]

	if descr != "|u1" {
		return nil, nil, fmt.Errorf("unsupported npy dtype %q, want |u1", descr)
	}
	if fortran != "False" {
		return nil, nil, fmt.Errorf("fortran-ordered npy arrays are not supported")
	}

	var shape []int
	total := 1
	for _, part := range strings.Split(shapeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return nil, nil, fmt.Errorf("bad npy shape entry %q: %w", part, err)
		}
		shape = append(shape, dim)
		total *= dim
	}

	data := make([]uint8, total)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, fmt.Errorf("read npy data (%d bytes): %w", total, err)
	}
	return shape, data, nil
}
