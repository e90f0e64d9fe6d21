// Package metrics collects latency samples and error records for a load test
// run and turns them into a percentile summary.
//
// # Collector
//
// A [Collector] is created per run and passed to every unit of work:
//
//	collector := metrics.NewCollector("concurrent_dialogs", metrics.WithSink(sink))
//	collector.RecordLatency(412.7)
//	collector.RecordError("empty reply for user test_user_1718000000_4242")
//	summary, err := collector.Finalize()
//
// Finalize computes the [PercentileTable] with [Percentile], builds the
// ordered (sequence, latency) series and hands both to the configured [Sink].
//
// # Percentiles
//
// [Percentile] interpolates linearly between the two nearest ranks of a sorted
// copy of the input. An empty input yields 0, so a run with no samples
// produces an all-zero table instead of failing.
//
// # Accounting
//
// TotalRequests is the number of samples. SuccessfulRequests is
// TotalRequests minus the number of errors, even when an error was recorded
// for an attempt that never produced a sample. Reports and dashboards rely on
// these numbers, so the arithmetic is kept as-is.
//
// # Thread Safety
//
// All Collector methods are safe for concurrent use. [Collector.Snapshot]
// exposes histogram-based live statistics for progress output.
package metrics
