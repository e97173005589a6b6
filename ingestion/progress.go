package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker prints "<count> images | <seconds> seconds" lines.
type ProgressTracker struct {
	writer    io.Writer
	interval  int
	count     int
	startTime time.Time
	started   bool
	finished  bool
	mu        sync.Mutex
}

// NewProgressTracker creates a tracker that reports every interval items.
// An interval below 1 disables periodic lines; Finish still reports.
func NewProgressTracker(writer io.Writer, interval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressTracker{
		writer:   writer,
		interval: interval,
	}
}

// Start begins timing and resets the count.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.finished = false
	p.count = 0
}

// Increment records one processed image.
func (p *ProgressTracker) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.finished {
		return
	}

	p.count++
	if p.interval > 0 && p.count%p.interval == 0 {
		p.report()
	}
}

// Finish prints the final line. Calls after the first are no-ops.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.finished {
		return
	}
	p.finished = true
	p.report()
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// Count returns the number of images recorded.
func (p *ProgressTracker) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	fmt.Fprintf(p.writer, "%d images | %f seconds\n", p.count, time.Since(p.startTime).Seconds())
}
