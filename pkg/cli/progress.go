package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const progressBarWidth = 40

// Progress renders a single-line progress bar for a fixed number of
// requests. It is safe for concurrent use.
type Progress struct {
	mu      sync.Mutex
	writer  io.Writer
	total   int
	current int
	failed  int
	started time.Time
	now     func() time.Time
}

// NewProgress creates a progress bar for total requests. A nil writer
// disables rendering.
func NewProgress(w io.Writer, total int) *Progress {
	return &Progress{
		writer:  w,
		total:   total,
		started: time.Now(),
		now:     time.Now,
	}
}

// Increment records one completed request.
func (p *Progress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	p.render()
}

// Fail records one failed request.
func (p *Progress) Fail() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	p.failed++
	p.render()
}

// Counts returns the completed and failed request counts.
func (p *Progress) Counts() (completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current, p.failed
}

// Finish ends the progress line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render()
	if p.writer != nil && p.total > 0 {
		fmt.Fprintln(p.writer)
	}
}

func (p *Progress) render() {
	if p.writer == nil || p.total <= 0 {
		return
	}

	current := min(p.current, p.total)
	filled := progressBarWidth * current / p.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	rate := 0.0
	if elapsed := p.now().Sub(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	fmt.Fprintf(p.writer, "\r[%s] %d/%d requests, %d failed, %.1f req/s",
		bar, current, p.total, p.failed, rate)
}
