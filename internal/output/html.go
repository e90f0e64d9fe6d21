package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/torosent/dialogfire/internal/metrics"
	"github.com/torosent/dialogfire/internal/threshold"
)

// HTMLReportFile is the report file name written into a run directory.
const HTMLReportFile = "report.html"

// Report is everything the HTML report renders.
type Report struct {
	Summary    metrics.RunSummary
	Series     []metrics.SeriesPoint
	Sessions   map[int][]float64 // per-session latencies of long runs
	Thresholds []threshold.Result
	Metadata   ReportMetadata
}

// ReportMetadata contains configuration information about the test run.
type ReportMetadata struct {
	Model   string
	BaseURL string
	RunDir  string
}

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Summary          metrics.RunSummary
	SuccessRate      float64
	ErrorGroups      []metrics.ErrorGroup
	ThresholdSummary *ThresholdSummary
	ChartJSON        string
	HasSeries        bool
	HasSessions      bool
	Metadata         ReportMetadata
}

// ThresholdSummary provides aggregate threshold statistics.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []ThresholdResultJSON
}

// ThresholdResultJSON is a flattened threshold result for the template.
type ThresholdResultJSON struct {
	Threshold string
	Metric    string
	Aggregate string
	Operator  string
	Expected  float64
	Actual    float64
	Pass      bool
}

type chartData struct {
	Distribution [2][]float64 `json:"distribution"`
	Percentiles  []float64    `json:"percentiles"`
	Outcome      [2]int       `json:"outcome"`
	Series       [2][]float64 `json:"series"`
	SessionIDs   []int        `json:"session_ids"`
	Sessions     [][]*float64 `json:"sessions"`
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, report Report) error {
	s := report.Summary
	charts := chartData{
		Percentiles: []float64{
			s.ResponseTimes.Min, s.ResponseTimes.Avg, s.ResponseTimes.P50, s.ResponseTimes.P90,
			s.ResponseTimes.P95, s.ResponseTimes.P99, s.ResponseTimes.Max,
		},
		Outcome: [2]int{max(s.SuccessfulRequests, 0), s.FailedRequests},
	}
	for _, b := range s.Distribution {
		charts.Distribution[0] = append(charts.Distribution[0], b.FromMs)
		charts.Distribution[1] = append(charts.Distribution[1], float64(b.Count))
	}
	for _, p := range report.Series {
		charts.Series[0] = append(charts.Series[0], float64(p.Sequence))
		charts.Series[1] = append(charts.Series[1], p.LatencyMs)
	}
	charts.SessionIDs, charts.Sessions = alignSessions(report.Sessions)

	chartJSON, err := json.Marshal(charts)
	if err != nil {
		return fmt.Errorf("failed to marshal chart data: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Summary:          s,
		SuccessRate:      s.SuccessRate() * 100,
		ErrorGroups:      metrics.GroupErrors(s.Errors),
		ThresholdSummary: summarizeThresholds(report.Thresholds),
		ChartJSON:        string(chartJSON),
		HasSeries:        len(report.Series) > 0,
		HasSessions:      len(charts.SessionIDs) > 0,
		Metadata:         report.Metadata,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// SaveHTMLReport writes the report into dir and returns the file path.
func SaveHTMLReport(dir string, report Report) (string, error) {
	path := filepath.Join(dir, HTMLReportFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create html report: %w", err)
	}
	if err := GenerateHTMLReport(f, report); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close html report: %w", err)
	}
	return path, nil
}

func summarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// alignSessions lays per-session latencies out as uPlot series sharing one x
// axis of turn numbers. Shorter sessions are padded with nulls.
func alignSessions(sessions map[int][]float64) ([]int, [][]*float64) {
	if len(sessions) == 0 {
		return nil, nil
	}
	ids := make([]int, 0, len(sessions))
	longest := 0
	for id, values := range sessions {
		ids = append(ids, id)
		longest = max(longest, len(values))
	}
	sort.Ints(ids)

	rows := make([][]*float64, 0, len(ids)+1)
	x := make([]*float64, longest)
	for i := range x {
		v := float64(i + 1)
		x[i] = &v
	}
	rows = append(rows, x)
	for _, id := range ids {
		row := make([]*float64, longest)
		for i, v := range sessions[id] {
			row[i] = &v
		}
		rows = append(rows, row)
	}
	return ids, rows
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Summary.TestName}} load test report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: #f4f6f8;
            color: #1f2933;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.08);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #0f766e 0%, #1d4ed8 100%);
            color: white;
            padding: 28px 40px;
        }
        header h1 { font-size: 1.8rem; margin-bottom: 8px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 36px 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 18px;
            margin-bottom: 36px;
        }
        .card {
            background: #f8fafc;
            border-radius: 8px;
            padding: 18px;
            border-left: 4px solid #1d4ed8;
        }
        .card h3 {
            font-size: 0.8rem;
            color: #64748b;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 8px;
        }
        .card .value { font-size: 1.8rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #64748b; margin-top: 4px; }
        .card.success { border-left-color: #16a34a; }
        .card.error { border-left-color: #dc2626; }
        .section { margin-bottom: 36px; }
        .section h2 {
            font-size: 1.35rem;
            margin-bottom: 16px;
            padding-bottom: 8px;
            border-bottom: 2px solid #e2e8f0;
        }
        .chart-container {
            border: 1px solid #e2e8f0;
            border-radius: 8px;
            padding: 18px;
            margin-bottom: 24px;
        }
        .chart-container h3 { font-size: 1.05rem; margin-bottom: 12px; color: #475569; }
        .chart { width: 100%; height: 300px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 10px 12px; border-bottom: 1px solid #e2e8f0; }
        th {
            background: #f8fafc;
            font-size: 0.85rem;
            text-transform: uppercase;
            color: #475569;
        }
        .badge { padding: 3px 10px; border-radius: 10px; font-size: 0.85rem; font-weight: 600; }
        .badge-success { background: #dcfce7; color: #166534; }
        .badge-error { background: #fee2e2; color: #991b1b; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>{{.Summary.TestName}} load test report</h1>
            {{if .Metadata.Model}}<div class="meta">Model: {{.Metadata.Model}}{{if .Metadata.BaseURL}} @ {{.Metadata.BaseURL}}{{end}}</div>{{end}}
            <div class="meta">Run: {{.Summary.Timestamp}} | Duration: {{formatFloat .Summary.DurationSeconds}}s | Generated: {{.GeneratedAt}}</div>
            {{if .Metadata.RunDir}}<div class="meta">Results: {{.Metadata.RunDir}}</div>{{end}}
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Total Requests</h3>
                    <div class="value">{{.Summary.TotalRequests}}</div>
                </div>
                <div class="card success">
                    <h3>Successful</h3>
                    <div class="value">{{.Summary.SuccessfulRequests}}</div>
                    <div class="subvalue">{{formatFloat .SuccessRate}}%</div>
                </div>
                <div class="card error">
                    <h3>Failed</h3>
                    <div class="value">{{.Summary.FailedRequests}}</div>
                </div>
                <div class="card">
                    <h3>Avg Response</h3>
                    <div class="value">{{formatFloat .Summary.ResponseTimes.Avg}}</div>
                    <div class="subvalue">ms</div>
                </div>
                <div class="card">
                    <h3>P95 Response</h3>
                    <div class="value">{{formatFloat .Summary.ResponseTimes.P95}}</div>
                    <div class="subvalue">ms</div>
                </div>
            </div>

            <div class="section">
                <h2>Response Time Statistics (ms)</h2>
                <table>
                    <thead><tr><th>Min</th><th>Avg</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th></tr></thead>
                    <tbody>
                        <tr>
                            <td>{{formatFloat .Summary.ResponseTimes.Min}}</td>
                            <td>{{formatFloat .Summary.ResponseTimes.Avg}}</td>
                            <td>{{formatFloat .Summary.ResponseTimes.P50}}</td>
                            <td>{{formatFloat .Summary.ResponseTimes.P90}}</td>
                            <td>{{formatFloat .Summary.ResponseTimes.P95}}</td>
                            <td>{{formatFloat .Summary.ResponseTimes.P99}}</td>
                            <td>{{formatFloat .Summary.ResponseTimes.Max}}</td>
                        </tr>
                    </tbody>
                </table>
            </div>

            <div class="section">
                <h2>Charts</h2>
                <div class="chart-container">
                    <h3>Response Time Distribution</h3>
                    <div id="distribution-chart" class="chart"></div>
                </div>
                <div class="chart-container">
                    <h3>Successful vs Failed</h3>
                    <div id="outcome-chart" class="chart"></div>
                </div>
                <div class="chart-container">
                    <h3>Percentiles</h3>
                    <div id="percentile-chart" class="chart"></div>
                </div>
                {{if .HasSeries}}
                <div class="chart-container">
                    <h3>Response Time per Request</h3>
                    <div id="series-chart" class="chart"></div>
                </div>
                {{end}}
                {{if .HasSessions}}
                <div class="chart-container">
                    <h3>Response Time per Dialog Turn</h3>
                    <div id="sessions-chart" class="chart"></div>
                </div>
                {{end}}
            </div>

            {{if .ErrorGroups}}
            <div class="section">
                <h2>Errors</h2>
                <table>
                    <thead><tr><th>Kind</th><th>Count</th></tr></thead>
                    <tbody>
                        {{range .ErrorGroups}}
                        <tr><td>{{.Kind}}</td><td>{{.Count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead><tr><th>Threshold</th><th>Metric</th><th>Expected</th><th>Actual</th><th>Status</th></tr></thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="badge badge-success">✓ PASS</span>{{else}}<span class="badge badge-error">✗ FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    <script>
        const charts = JSON.parse({{.ChartJSON}});
        const width = id => document.getElementById(id).offsetWidth;
        const bars = uPlot.paths.bars({ size: [0.6, 80] });
        const labels = ["Min", "Avg", "P50", "P90", "P95", "P99", "Max"];

        if (charts.distribution[0] && charts.distribution[0].length > 0) {
            new uPlot({
                width: width('distribution-chart'),
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "From (ms)" },
                    { label: "Requests", stroke: "#1d4ed8", fill: "rgba(29, 78, 216, 0.3)", paths: bars }
                ],
                axes: [{ label: "Response time (ms)" }, { label: "Requests" }]
            }, charts.distribution, document.getElementById('distribution-chart'));
        }

        new uPlot({
            width: width('outcome-chart'),
            height: 300,
            scales: { x: { time: false } },
            series: [
                { label: "Outcome" },
                { label: "Requests", stroke: "#16a34a", fill: "rgba(22, 163, 74, 0.3)", paths: bars }
            ],
            axes: [{ values: (u, vals) => vals.map(v => v === 0 ? "Successful" : v === 1 ? "Failed" : "") }, {}]
        }, [[0, 1], charts.outcome], document.getElementById('outcome-chart'));

        new uPlot({
            width: width('percentile-chart'),
            height: 300,
            scales: { x: { time: false } },
            series: [
                { label: "Statistic" },
                { label: "ms", stroke: "#0f766e", fill: "rgba(15, 118, 110, 0.3)", paths: bars }
            ],
            axes: [{ values: (u, vals) => vals.map(v => labels[v] || "") }, { label: "Response time (ms)" }]
        }, [[0, 1, 2, 3, 4, 5, 6], charts.percentiles], document.getElementById('percentile-chart'));

        {{if .HasSeries}}
        new uPlot({
            width: width('series-chart'),
            height: 300,
            scales: { x: { time: false } },
            series: [
                { label: "Request #" },
                { label: "Response time (ms)", stroke: "#dc2626", width: 1 }
            ],
            axes: [{ label: "Request number" }, { label: "Response time (ms)" }]
        }, charts.series, document.getElementById('series-chart'));
        {{end}}

        {{if .HasSessions}}
        const palette = ["#1d4ed8", "#16a34a", "#dc2626", "#f59e0b", "#7c3aed", "#0f766e"];
        new uPlot({
            width: width('sessions-chart'),
            height: 300,
            scales: { x: { time: false } },
            series: [{ label: "Turn" }].concat(charts.session_ids.map((id, i) => ({
                label: "Dialog " + id,
                stroke: palette[i % palette.length],
                width: 2
            }))),
            axes: [{ label: "Message number" }, { label: "Response time (ms)" }]
        }, charts.sessions, document.getElementById('sessions-chart'));
        {{end}}
    </script>
</body>
</html>
`
