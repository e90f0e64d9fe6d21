package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/dialogfire/internal/metrics"
)

// Snapshotter is the live view a ProgressReporter polls.
type Snapshotter interface {
	Snapshot() metrics.Snapshot
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	source   Snapshotter
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32

	// OnSnapshot, when set, receives every polled snapshot.
	OnSnapshot func(metrics.Snapshot)
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source Snapshotter, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		source:   source,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and terminates the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		p.tick()
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			p.tick()
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) tick() {
	snap := p.source.Snapshot()
	if p.OnSnapshot != nil {
		p.OnSnapshot(snap)
	}
	fmt.Fprint(p.writer, FormatProgress(snap))
}

// FormatProgress renders the one-line progress view of snap.
func FormatProgress(snap metrics.Snapshot) string {
	return fmt.Sprintf("\r[%s] Requests: %d | Errors: %d | RPS: %.1f | P50: %.0fms | P95: %.0fms | Elapsed: %s",
		snap.Name, snap.Total, snap.Errors, snap.RequestsPerSec, snap.P50Ms, snap.P95Ms,
		snap.Elapsed.Truncate(time.Second))
}
