package metrics

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile of samples using linear interpolation
// between the two nearest ranks of a sorted copy. The input slice is not
// modified. An empty input yields 0. p is clamped to [0, 100].
func Percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

// percentileSorted expects an ascending slice.
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	index := float64(n-1) * p / 100
	lower := math.Floor(index)
	if index == lower {
		return sorted[int(index)]
	}
	lo := int(lower)
	hi := lo + 1
	v := sorted[lo] + (sorted[hi]-sorted[lo])*(index-lower)
	// Float rounding must not push the result outside its rank interval.
	return math.Min(math.Max(v, sorted[lo]), sorted[hi])
}

// PercentileTable holds the latency statistics of a run, in milliseconds.
type PercentileTable struct {
	Min float64 `json:"min_ms"`
	Max float64 `json:"max_ms"`
	Avg float64 `json:"avg_ms"`
	P50 float64 `json:"p50_ms"`
	P90 float64 `json:"p90_ms"`
	P95 float64 `json:"p95_ms"`
	P99 float64 `json:"p99_ms"`
}

// ComputeTable builds the percentile table for samples. All fields are zero
// when samples is empty.
func ComputeTable(samples []float64) PercentileTable {
	if len(samples) == 0 {
		return PercentileTable{}
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return PercentileTable{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentileSorted(sorted, 50),
		P90: percentileSorted(sorted, 90),
		P95: percentileSorted(sorted, 95),
		P99: percentileSorted(sorted, 99),
	}
}

// Rounded returns a copy with every field rounded to two decimals.
func (t PercentileTable) Rounded() PercentileTable {
	return PercentileTable{
		Min: round2(t.Min),
		Max: round2(t.Max),
		Avg: round2(t.Avg),
		P50: round2(t.P50),
		P90: round2(t.P90),
		P95: round2(t.P95),
		P99: round2(t.P99),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
