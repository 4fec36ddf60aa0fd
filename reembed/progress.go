package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/juju/clock"
)

// ProgressTracker reports how many documents have been processed.
type ProgressTracker struct {
	writer         io.Writer
	clock          clock.Clock
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker that writes a progress line every
// reportInterval documents. A nil clock selects the wall clock.
func NewProgressTracker(writer io.Writer, c clock.Clock, total, reportInterval int) *ProgressTracker {
	if c == nil {
		c = clock.WallClock
	}
	return &ProgressTracker{
		writer:         writer,
		clock:          c,
		total:          total,
		reportInterval: max(reportInterval, 1),
	}
}

// Start begins tracking.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = p.clock.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Add records delta more processed documents.
func (p *ProgressTracker) Add(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(p.current+delta, p.total)
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Current returns the processed count.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish prints the final progress line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return p.clock.Now().Sub(p.startTime)
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	var rate float64
	if secs := p.clock.Now().Sub(p.startTime).Seconds(); secs > 0 {
		rate = float64(p.current) / secs
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f documents/s",
		p.current, p.total, percentage, rate)
}
