package metrics_test

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/torosent/dialogfire/internal/metrics"
)

func TestPercentileInterpolatesBetweenRanks(t *testing.T) {
	got := metrics.Percentile([]float64{10, 20, 30, 40}, 50)
	if got != 25.0 {
		t.Fatalf("expected 25.0, got %v", got)
	}
}

func TestPercentileExactRank(t *testing.T) {
	got := metrics.Percentile([]float64{5, 1, 3, 2, 4}, 50)
	if got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

func TestPercentileEmptyReturnsZero(t *testing.T) {
	if got := metrics.Percentile(nil, 95); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	in := []float64{30, 10, 20}
	_ = metrics.Percentile(in, 90)
	if in[0] != 30 || in[1] != 10 || in[2] != 20 {
		t.Fatalf("input reordered: %v", in)
	}
}

func TestPercentileClampsOutOfRange(t *testing.T) {
	in := []float64{1, 2, 3}
	if got := metrics.Percentile(in, -10); got != 1 {
		t.Errorf("p<0: expected 1, got %v", got)
	}
	if got := metrics.Percentile(in, 250); got != 3 {
		t.Errorf("p>100: expected 3, got %v", got)
	}
}

func sampleGen() *rapid.Generator[[]float64] {
	return rapid.SliceOfN(rapid.Float64Range(-1_000, 120_000), 1, 200)
}

func TestPercentileBoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samples := sampleGen().Draw(t, "samples")
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range samples {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if got := metrics.Percentile(samples, 0); got != lo {
			t.Fatalf("p0 = %v, want min %v", got, lo)
		}
		if got := metrics.Percentile(samples, 100); got != hi {
			t.Fatalf("p100 = %v, want max %v", got, hi)
		}
	})
}

func TestPercentileTableMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samples := sampleGen().Draw(t, "samples")
		for _, table := range []metrics.PercentileTable{
			metrics.ComputeTable(samples),
			metrics.ComputeTable(samples).Rounded(),
		} {
			chain := []float64{table.Min, table.P50, table.P90, table.P95, table.P99, table.Max}
			for i := 1; i < len(chain); i++ {
				if chain[i] < chain[i-1] {
					t.Fatalf("table not monotonic at %d: %+v", i, table)
				}
			}
		}
	})
}

func TestComputeTableEmpty(t *testing.T) {
	if table := metrics.ComputeTable(nil); table != (metrics.PercentileTable{}) {
		t.Fatalf("expected zero table, got %+v", table)
	}
}
