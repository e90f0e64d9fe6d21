package metrics

import "time"

// Snapshot is a point-in-time view of a running collector. Percentiles come
// from the histogram and are approximate; the final table uses exact samples.
type Snapshot struct {
	Name           string
	Total          int
	Errors         int
	Elapsed        time.Duration
	LastMs         float64
	MeanMs         float64
	P50Ms          float64
	P95Ms          float64
	P99Ms          float64
	RequestsPerSec float64
}

// Snapshot returns the current live statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Name:    c.name,
		Total:   len(c.samples),
		Errors:  len(c.errors),
		Elapsed: c.now().Sub(c.start),
		LastMs:  c.last,
	}
	if c.hist.TotalCount() > 0 {
		snap.MeanMs = c.hist.Mean() / 1000
		snap.P50Ms = float64(c.hist.ValueAtQuantile(50)) / 1000
		snap.P95Ms = float64(c.hist.ValueAtQuantile(95)) / 1000
		snap.P99Ms = float64(c.hist.ValueAtQuantile(99)) / 1000
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.RequestsPerSec = float64(snap.Total) / secs
	}
	return snap
}
