package metrics_test

import (
	"math"
	"testing"
	"time"

	"github.com/nimbus-ml/nimbus/internal/metrics"
)

func TestWindowSnapshot(t *testing.T) {
	var w metrics.Window
	w.Record(4, 100*time.Millisecond, 2.0)
	w.Record(4, 100*time.Millisecond, 1.0)
	w.Record(4, 200*time.Millisecond, 0.5)

	snap := w.Snapshot()
	if snap.Steps != 3 {
		t.Errorf("Steps = %d, want 3", snap.Steps)
	}
	if math.Abs(snap.MeanLoss-3.5/3) > 1e-9 {
		t.Errorf("MeanLoss = %v, want %v", snap.MeanLoss, 3.5/3)
	}
	if snap.LastLoss != 0.5 {
		t.Errorf("LastLoss = %v, want 0.5", snap.LastLoss)
	}
	if snap.StdLoss <= 0 {
		t.Errorf("StdLoss = %v, want > 0", snap.StdLoss)
	}
	// 12 samples over 0.4s of compute.
	if math.Abs(snap.SamplesPerSec-30) > 1e-9 {
		t.Errorf("SamplesPerSec = %v, want 30", snap.SamplesPerSec)
	}
	if math.Abs(snap.AvgStepMS-400.0/3) > 1e-6 {
		t.Errorf("AvgStepMS = %v, want %v", snap.AvgStepMS, 400.0/3)
	}
}

func TestWindowResetsAfterSnapshot(t *testing.T) {
	var w metrics.Window
	w.Record(2, time.Millisecond, 1.0)
	w.Snapshot()

	snap := w.Snapshot()
	if snap.Steps != 0 || snap.MeanLoss != 0 || snap.SamplesPerSec != 0 {
		t.Errorf("window not reset: %+v", snap)
	}
}

func TestEmptyWindow(t *testing.T) {
	var w metrics.Window
	snap := w.Snapshot()
	if snap.Steps != 0 || snap.MeanLoss != 0 || snap.AvgStepMS != 0 {
		t.Errorf("empty window snapshot = %+v", snap)
	}
}
