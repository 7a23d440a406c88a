package trainer

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const barWidth = 30

// progressBar renders an in-place progress line for one epoch.
type progressBar struct {
	out   io.Writer
	label string
	total int
	start time.Time
}

func newProgressBar(out io.Writer, label string, total int) *progressBar {
	return &progressBar{out: out, label: label, total: total, start: time.Now()}
}

// Update redraws the bar after `done` of `total` batches.
func (p *progressBar) Update(done int, loss float64) {
	if p.total <= 0 {
		return
	}
	filled := barWidth * done / p.total
	if filled > barWidth {
		filled = barWidth
	}
	elapsed := time.Since(p.start).Truncate(time.Second)
	fmt.Fprintf(p.out, "\r%s [%-*s] %d/%d loss=%.6f %s",
		p.label, barWidth, strings.Repeat("=", filled), done, p.total, loss, elapsed)
}

// Finish terminates the progress line.
func (p *progressBar) Finish() {
	fmt.Fprintln(p.out)
}
