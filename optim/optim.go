// Copyright 2026 Nimbus ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the public optimizer API: SGD with momentum and
// Adam, both with serializable state for checkpointing.
package optim

import (
	"github.com/nimbus-ml/nimbus/internal/nn"
	"github.com/nimbus-ml/nimbus/internal/optim"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Optimizer is the common interface of all optimizers.
type Optimizer = optim.Optimizer

// LRScheduler adjusts the learning rate between epochs.
type LRScheduler = optim.LRScheduler

// ConstantLR is the no-op scheduler.
type ConstantLR = optim.ConstantLR

// SGD is the stochastic gradient descent optimizer with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig holds the SGD hyperparameters.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}

// Adam is the adaptive moment estimation optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig holds the Adam hyperparameters; zero values fall back to
// lr 1e-3, betas (0.9, 0.999), eps 1e-8.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
//
// Example:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR: 1e-3,
//	}, backend)
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}
