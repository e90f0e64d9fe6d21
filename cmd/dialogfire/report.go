package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/torosent/dialogfire/internal/metrics"
	"github.com/torosent/dialogfire/internal/output"
	"github.com/torosent/dialogfire/internal/runner"
	"github.com/torosent/dialogfire/internal/storage"
	"github.com/torosent/dialogfire/internal/threshold"
)

func newReportCommand() *cobra.Command {
	var (
		resultsDir string
		testName   string
		dir        string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the HTML report of a saved run",
		Long: "Render the HTML report of the latest run (optionally of one test) " +
			"under the results directory, or of the run directory given with --dir.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := renderSavedReport(resultsDir, testName, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HTML report: %s\n", path)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&resultsDir, "results-dir", runner.DefaultResultsDir, "Directory holding run directories")
	flags.StringVar(&testName, "test", "", "Test to render (concurrent_dialogs, response_time or long_dialogs)")
	flags.StringVar(&dir, "dir", "", "Run directory to render (overrides --test)")
	return cmd
}

// renderSavedReport loads a persisted run and writes its HTML report next to
// the results.
func renderSavedReport(root, testName, dir string) (string, error) {
	if dir == "" {
		info, err := storage.FindLatest(root, testName)
		if err != nil {
			return "", err
		}
		dir = info.Dir
	}
	rd, err := storage.OpenRunDir(dir)
	if err != nil {
		return "", err
	}
	summary, err := rd.LoadSummary()
	if err != nil {
		return "", err
	}
	return renderReport(rd.Path(), summary, nil, output.ReportMetadata{RunDir: rd.Path()})
}

func renderReport(dir string, summary metrics.RunSummary, results []threshold.Result, meta output.ReportMetadata) (string, error) {
	rd, err := storage.OpenRunDir(dir)
	if err != nil {
		return "", err
	}
	series, err := rd.LoadSeries()
	if err != nil {
		return "", err
	}
	report := output.Report{
		Summary:    summary,
		Series:     series,
		Thresholds: results,
		Metadata:   meta,
	}
	if summary.TestName == runner.TestLong {
		if report.Sessions, err = storage.SessionLatencies(rd.Path()); err != nil {
			return "", err
		}
	}
	return output.SaveHTMLReport(rd.Path(), report)
}
