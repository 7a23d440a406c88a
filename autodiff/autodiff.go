// Copyright 2026 Nimbus ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// It wraps any backend with a gradient tape: forward operations are recorded
// while the tape is on, and Backward replays them in reverse to produce a
// gradient for every tensor in the graph.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//
//	loss := model.TrainingStep(inputs, labels)
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	backend.Tape().Clear()
package autodiff

import (
	"github.com/nimbus-ml/nimbus/internal/autodiff"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Backend is the autodiff-enabled backend decorator.
type Backend[B tensor.Backend] = autodiff.Backend[B]

// New wraps a backend with gradient recording.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates an empty gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BackwardCapable is satisfied by backends that carry a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes gradients of t with respect to every recorded tensor.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
