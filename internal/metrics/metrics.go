// Package metrics accumulates per-step training measurements and aggregates
// them into loggable snapshots.
package metrics

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Window collects step losses and timings until the next Snapshot call.
type Window struct {
	losses   []float64
	samples  int
	steps    int
	compute  time.Duration
	lastLoss float64
}

// Record adds one training step to the window.
func (w *Window) Record(batchSize int, computeTime time.Duration, loss float64) {
	w.losses = append(w.losses, loss)
	w.samples += batchSize
	w.steps++
	w.compute += computeTime
	w.lastLoss = loss
}

// Snapshot aggregates the window and resets it.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{
		Steps:    w.steps,
		LastLoss: w.lastLoss,
	}
	if len(w.losses) > 0 {
		snap.MeanLoss = stat.Mean(w.losses, nil)
		snap.StdLoss = stat.StdDev(w.losses, nil)
	}
	if w.compute > 0 {
		snap.SamplesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	if w.steps > 0 {
		snap.AvgStepMS = w.compute.Seconds() * 1000 / float64(w.steps)
	}

	w.losses = w.losses[:0]
	w.samples = 0
	w.steps = 0
	w.compute = 0
	return snap
}

// Snapshot is an aggregated view of a training window.
type Snapshot struct {
	Steps         int
	MeanLoss      float64
	StdLoss       float64
	LastLoss      float64
	SamplesPerSec float64
	AvgStepMS     float64
}
