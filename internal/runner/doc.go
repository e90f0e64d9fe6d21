// Package runner orchestrates the load test modes of dialogfire.
//
// Three modes share one fan-out skeleton: every unit of work (a session or a
// single request) runs in its own goroutine under an errgroup, wrapped in a
// panic catcher so a crashing unit is recorded as one error and never stops
// its siblings. After the join the per-unit records are merged into the mode
// payload and the run's collector is finalized and persisted.
//
// # Modes
//
//   - [Runner.RunConcurrent]: a fixed number of short sessions launched at once
//   - [Runner.RunResponseTime]: single-turn requests sent in batches spread
//     over a ramp-up window
//   - [Runner.RunLong]: a few sessions of about a hundred turns with a bounded
//     context window and placeholder replies on failure
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Client:     client,
//		ResultsDir: "result_tests",
//		Logger:     logger,
//	})
//	summary, err := r.RunConcurrent(ctx, runner.ConcurrentOptions{
//		Users:    10,
//		Messages: 5,
//		Delay:    time.Second,
//	})
//
// # Suites
//
// A [Suite] runs steps sequentially, keeps going when one fails, and writes
// summary_<timestamp>.json with the headline numbers of every test.
package runner
