// Copyright 2026 Nimbus ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend for tensor operations.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
package cpu

import (
	internalcpu "github.com/nimbus-ml/nimbus/internal/backend/cpu"
	"github.com/nimbus-ml/nimbus/tensor"
)

// Backend is the CPU backend implementation: direct loops over float32,
// float64 and uint8 buffers, with NumPy-style broadcasting on the
// element-wise operations.
type Backend = internalcpu.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend.
func New() *Backend {
	return internalcpu.New()
}
