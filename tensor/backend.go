// Copyright 2026 Nimbus ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/nimbus-ml/nimbus/internal/tensor"

// Backend defines the interface all compute backends implement. Backends
// carry out the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: pure Go reference implementation
//   - backend/webgpu: GPU compute via WebGPU with CPU fallback
//
// Decorator backends:
//   - autodiff: records operations on a gradient tape (wraps any backend)
type Backend = tensor.Backend
