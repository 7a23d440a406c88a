package trainer

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	checkpointExt     = ".nimbus"
	tempSuffix        = "_temp" + checkpointExt
	checkpointStem    = "checkpoint_"
	checkpointWorkDir = "work"
)

// checkpointMonitor publishes finished checkpoints and prunes old ones. The
// trainer writes `checkpoint_<epoch>_<loss>_temp.nimbus` into the work
// directory and renames it in place, dropping the `_temp` marker, once the
// save has succeeded. The monitor moves only those completed files into the
// save directory, so readers polling it never observe a half-written
// checkpoint, and keeps at most `keep` published checkpoints.
type checkpointMonitor struct {
	workDir  string
	saveDir  string
	keep     int
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func newCheckpointMonitor(workDir, saveDir string, keep int) *checkpointMonitor {
	return &checkpointMonitor{
		workDir:  workDir,
		saveDir:  saveDir,
		keep:     keep,
		interval: time.Second,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (m *checkpointMonitor) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// Stop halts the loop and runs one final sweep so the last checkpoint of a
// run is always published.
func (m *checkpointMonitor) Stop() {
	close(m.stop)
	<-m.done
	m.sweep()
}

func (m *checkpointMonitor) sweep() {
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		log.Printf("checkpoint monitor: read %s: %v", m.workDir, err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isPublishedCheckpoint(name) {
			continue
		}
		if err := os.Rename(filepath.Join(m.workDir, name), filepath.Join(m.saveDir, name)); err != nil {
			log.Printf("checkpoint monitor: publish %s: %v", name, err)
		}
	}
	m.prune()
}

// prune removes the oldest published checkpoints beyond the retention count.
func (m *checkpointMonitor) prune() {
	if m.keep <= 0 {
		return
	}
	published, err := listCheckpoints(m.saveDir)
	if err != nil {
		log.Printf("checkpoint monitor: read %s: %v", m.saveDir, err)
		return
	}
	if len(published) <= m.keep {
		return
	}

	// Epoch numbers are zero padded, so name order is training order.
	sort.Strings(published)
	for _, name := range published[:len(published)-m.keep] {
		if err := os.Remove(filepath.Join(m.saveDir, name)); err != nil {
			log.Printf("checkpoint monitor: prune %s: %v", name, err)
		}
	}
}

// isPublishedCheckpoint reports whether name is a completed checkpoint file.
// Temp files are still being written and are never treated as checkpoints.
func isPublishedCheckpoint(name string) bool {
	return strings.HasPrefix(name, checkpointStem) &&
		strings.HasSuffix(name, checkpointExt) &&
		!strings.HasSuffix(name, tempSuffix)
}

func listCheckpoints(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isPublishedCheckpoint(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// LatestCheckpoint returns the newest published checkpoint in dir, or "" when
// none exists.
func LatestCheckpoint(dir string) string {
	names, err := listCheckpoints(dir)
	if err != nil || len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}
