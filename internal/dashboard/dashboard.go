// Package dashboard renders a live terminal view of a running test suite.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/dialogfire/internal/metrics"
)

// Source is the live view of one test run.
type Source interface {
	Snapshot() metrics.Snapshot
	Errors() []string
}

// Totals reports chat client traffic across the whole suite.
type Totals interface {
	Totals() (sent, received, errors int64)
}

// TestConfig holds suite parameters for display.
type TestConfig struct {
	Model      string
	BaseURL    string
	Modes      []string
	Rate       float64       // chat calls per second (0 = unlimited)
	Timeout    time.Duration // per chat call
	Retries    int
	ConfigFile string
}

// Dashboard renders a live terminal UI for suite metrics.
type Dashboard struct {
	totals       Totals
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	source    Source
	completed []metrics.Snapshot

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	rpsGauge       *widgets.Gauge
	errorList      *widgets.List
	testList       *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	clientPara     *widgets.Paragraph
	latencyHistory []float64
	testConfig     TestConfig
}

// New initializes the terminal and creates a Dashboard. shutdownFunc is
// called when the user presses q or Ctrl+C.
func New(cfg TestConfig, totals Totals, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(cfg, totals)
	d.shutdownFunc = shutdownFunc
	d.setupGrid()
	return d, nil
}

func newDashboard(cfg TestConfig, totals Totals) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		totals:         totals,
		ctx:            ctx,
		cancel:         cancel,
		latencyHistory: make([]float64, 0, 100),
		testConfig:     cfg,
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Response time (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Response Time"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Response Time Stats"
	d.latencyPara.Text = "Last: 0ms\nMean: 0ms\nP50: 0ms\nP95: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.rpsGauge = widgets.NewGauge()
	d.rpsGauge.Title = "Requests Per Second"
	d.rpsGauge.BarColor = ui.ColorBlue
	d.rpsGauge.BorderStyle.Fg = ui.ColorCyan
	d.rpsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.testList = widgets.NewList()
	d.testList.Title = "Completed Tests"
	d.testList.Rows = []string{"None yet"}
	d.testList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.testList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Suite"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	d.clientPara = widgets.NewParagraph()
	d.clientPara.Title = "Chat Client"
	d.clientPara.Text = "No traffic"
	d.clientPara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.clientPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.rpsGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.clientPara),
		),
		ui.NewRow(0.28,
			ui.NewCol(0.5, d.testList),
			ui.NewCol(0.5, d.errorList),
		),
	)
}

// Attach switches the dashboard to a new test run. The final view of the
// previous run moves to the completed list.
func (d *Dashboard) Attach(source Source) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.source != nil {
		d.completed = append(d.completed, d.source.Snapshot())
		d.testList.Rows = formatCompleted(d.completed)
	}
	d.source = source
	d.latencyHistory = d.latencyHistory[:0]
	d.latencySparkle.Sparklines[0].Data = []float64{0}
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the suite unwinds.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the attached source.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.totals != nil {
		d.clientPara.Text = formatClientTotals(d.totals.Totals())
	}
	if d.source == nil {
		d.summaryPara.Text = fmt.Sprintf("%s\nWaiting for the first test...", d.formatTestParams())
		return
	}
	snap := d.source.Snapshot()

	if snap.Total > 0 {
		d.latencyHistory = append(d.latencyHistory, snap.LastMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Real-time Response Time | Last: %.0fms | Mean: %.0fms",
			snap.LastMs,
			snap.MeanMs,
		)
	}

	maxRPS := max(10.0, snap.RequestsPerSec)
	d.rpsGauge.Percent = min(int(snap.RequestsPerSec/maxRPS*100), 100)
	d.rpsGauge.Label = fmt.Sprintf("%.1f RPS", snap.RequestsPerSec)

	successful := snap.Total - snap.Errors
	successRate := 0.0
	if snap.Total > 0 {
		successRate = float64(successful) / float64(snap.Total) * 100
	}

	d.summaryPara.Text = fmt.Sprintf(
		"%s\nTest: %s | Elapsed: %s | Requests: %d | Success Rate: %.1f%%",
		d.formatTestParams(),
		snap.Name,
		snap.Elapsed.Round(time.Second),
		snap.Total,
		successRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Requests:    %d\nSuccessful:        %d\nFailed:            %d\nCurrent RPS:       %.2f\nSuccess Rate:      %.1f%%",
		snap.Total,
		successful,
		snap.Errors,
		snap.RequestsPerSec,
		successRate,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Last: %.2fms\nMean: %.2fms\nP50:  %.2fms\nP95:  %.2fms\nP99:  %.2fms",
		snap.LastMs,
		snap.MeanMs,
		snap.P50Ms,
		snap.P95Ms,
		snap.P99Ms,
	)

	d.errorList.Rows = formatErrorRows(d.source.Errors())
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func formatErrorRows(records []string) []string {
	groups := metrics.GroupErrors(records)
	if len(groups) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	rows := make([]string, 0, min(len(groups), 10))
	for _, g := range groups[:min(len(groups), 10)] {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", g.Kind, g.Count))
	}
	return rows
}

func formatCompleted(snaps []metrics.Snapshot) []string {
	if len(snaps) == 0 {
		return []string{"None yet"}
	}
	rows := make([]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, fmt.Sprintf("[%s](fg:cyan) | Req %d | Err %d | P95 %.0fms | %s",
			s.Name, s.Total, s.Errors, s.P95Ms, s.Elapsed.Round(time.Second)))
	}
	return rows
}

func formatClientTotals(sent, received, errors int64) string {
	if sent == 0 && received == 0 && errors == 0 {
		return "No traffic"
	}
	return fmt.Sprintf("Messages sent: [%d](fg:yellow) | Replies received: [%d](fg:yellow) | Client errors: [%d](fg:red)",
		sent, received, errors)
}

// formatTestParams formats the suite parameters for display.
func (d *Dashboard) formatTestParams() string {
	var parts []string

	if d.testConfig.Model != "" {
		parts = append(parts, fmt.Sprintf("Model: %s", d.testConfig.Model))
	}
	if d.testConfig.BaseURL != "" {
		parts = append(parts, fmt.Sprintf("API: %s", d.testConfig.BaseURL))
	}
	if len(d.testConfig.Modes) > 0 {
		parts = append(parts, fmt.Sprintf("Tests: %s", strings.Join(d.testConfig.Modes, ",")))
	}

	if d.testConfig.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %g/s", d.testConfig.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if d.testConfig.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.testConfig.Timeout))
	}

	// Retries (only show if set)
	if d.testConfig.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", d.testConfig.Retries))
	}

	if d.testConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.testConfig.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
