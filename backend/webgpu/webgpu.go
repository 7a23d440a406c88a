// Copyright 2026 Nimbus ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated tensor
// operations. Element-wise operations run as WGSL compute shaders; the rest
// delegates to an embedded CPU backend.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gpu.Release()
//
//	backend := autodiff.New(gpu)
//	x := tensor.Randn[float32](tensor.Shape{64, 96, 16, 16}, backend)
package webgpu

import (
	internalwebgpu "github.com/nimbus-ml/nimbus/internal/backend/webgpu"
	"github.com/nimbus-ml/nimbus/tensor"
)

// Backend is the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a WebGPU backend. It fails with a descriptive error when no
// GPU adapter or native WebGPU library is available; callers typically fall
// back to cpu.New.
func New() (*Backend, error) {
	return internalwebgpu.New()
}
