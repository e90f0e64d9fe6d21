package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/torosent/dialogfire/internal/metrics"
	"github.com/torosent/dialogfire/internal/threshold"
)

// modeHeaders lists the run parameters printed above the totals of each test.
var modeHeaders = map[string]struct {
	title  string
	fields [][2]string // label, details path
}{
	"concurrent_dialogs": {"Concurrent Dialogues Results", [][2]string{
		{"Users", "num_users"},
		{"Messages per user", "messages_per_dialog"},
	}},
	"response_time": {"Response Time Results", [][2]string{
		{"Batch size", "batch_size"},
		{"Ramp-up (s)", "ramp_up_seconds"},
	}},
	"long_dialogs": {"Long Dialogues Results", [][2]string{
		{"Dialogs", "num_dialogs"},
		{"Messages per dialog", "messages_per_dialog"},
		{"Context window", "context_window"},
	}},
}

// PrintReport outputs a human-readable summary of one run. dir, when set, is
// printed as the location of the persisted results.
func PrintReport(w io.Writer, summary metrics.RunSummary, dir string) {
	header, ok := modeHeaders[summary.TestName]
	title := header.title
	if !ok {
		title = "Load Test Results: " + summary.TestName
	}
	details := detailsJSON(summary)

	fmt.Fprintf(w, "\n--- %s ---\n", title)
	for _, f := range header.fields {
		if v := gjson.GetBytes(details, f[1]); v.Exists() {
			fmt.Fprintf(w, "%-19s%s\n", f[0]+":", v.String())
		}
	}
	fmt.Fprintf(w, "Total Requests:    %d\n", summary.TotalRequests)
	fmt.Fprintf(w, "Successful:        %d\n", summary.SuccessfulRequests)
	fmt.Fprintf(w, "Failed:            %d\n", summary.FailedRequests)
	fmt.Fprintf(w, "Duration:          %.2fs\n", summary.DurationSeconds)
	if rps := gjson.GetBytes(details, "requests_per_second"); rps.Exists() {
		fmt.Fprintf(w, "Requests/sec:      %.2f\n", rps.Float())
	}

	t := summary.ResponseTimes
	fmt.Fprintln(w, "\nResponse Time (ms):")
	fmt.Fprintf(w, "  Min:             %.2f\n", t.Min)
	fmt.Fprintf(w, "  Avg:             %.2f\n", t.Avg)
	fmt.Fprintf(w, "  P50:             %.2f\n", t.P50)
	fmt.Fprintf(w, "  P90:             %.2f\n", t.P90)
	fmt.Fprintf(w, "  P95:             %.2f\n", t.P95)
	fmt.Fprintf(w, "  P99:             %.2f\n", t.P99)
	fmt.Fprintf(w, "  Max:             %.2f\n", t.Max)

	if groups := metrics.GroupErrors(summary.Errors); len(groups) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, g := range groups {
			fmt.Fprintf(w, "  %s: %d\n", g.Kind, g.Count)
		}
	}
	if dir != "" {
		fmt.Fprintf(w, "\nResults saved to:  %s\n", dir)
	}
}

// PrintThresholds outputs threshold results, one per line.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := 0
	for _, r := range results {
		if r.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", passed, len(results))
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, summary metrics.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// detailsJSON renders the mode payload so typed and decoded payloads can be
// queried the same way.
func detailsJSON(summary metrics.RunSummary) []byte {
	if summary.TestData.Details == nil {
		return nil
	}
	data, err := json.Marshal(summary.TestData.Details)
	if err != nil {
		return nil
	}
	return data
}
