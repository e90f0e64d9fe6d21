// Package storage persists finished runs on the local filesystem.
//
// Every run gets its own directory named after the test and the run start
// time. The directory holds results.json, response_times.csv and, for long
// dialogue runs, a full_dialogs folder with one transcript per session.
package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/torosent/dialogfire/internal/metrics"
)

const (
	ResultsFile     = "results.json"
	SeriesFile      = "response_times.csv"
	TranscriptsDir  = "full_dialogs"
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// RunDirName returns the directory name used for a run of testName started at now.
func RunDirName(testName string, now time.Time) string {
	return testName + "_" + now.Format(metrics.TimestampLayout)
}

// RunDir is the output directory of a single run.
type RunDir struct {
	path string
}

// NewRunDir creates <root>/<test>_<YYYYmmdd_HHMMSS>.
func NewRunDir(root, testName string, now time.Time) (*RunDir, error) {
	if testName == "" {
		return nil, errors.New("test name is required")
	}
	path := filepath.Join(root, RunDirName(testName, now))
	if err := os.MkdirAll(path, dirPermissions); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &RunDir{path: path}, nil
}

// OpenRunDir wraps an existing run directory.
func OpenRunDir(path string) (*RunDir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open run directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open run directory: %s is not a directory", path)
	}
	return &RunDir{path: path}, nil
}

// Path returns the directory path.
func (d *RunDir) Path() string { return d.path }

// Save writes results.json and response_times.csv. It implements metrics.Sink.
func (d *RunDir) Save(summary metrics.RunSummary, series []metrics.SeriesPoint) error {
	if err := writeJSON(filepath.Join(d.path, ResultsFile), summary); err != nil {
		return err
	}
	return writeSeries(filepath.Join(d.path, SeriesFile), series)
}

// SaveTranscript writes full_dialogs/dialog_<id>.json.
func (d *RunDir) SaveTranscript(id int, transcript any) (string, error) {
	dir := filepath.Join(d.path, TranscriptsDir)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", fmt.Errorf("create transcripts directory: %w", err)
	}
	path := filepath.Join(dir, "dialog_"+strconv.Itoa(id)+".json")
	if err := writeJSON(path, transcript); err != nil {
		return "", err
	}
	return path, nil
}

// LoadSummary reads results.json back from the directory.
func (d *RunDir) LoadSummary() (metrics.RunSummary, error) {
	var summary metrics.RunSummary
	data, err := os.ReadFile(filepath.Join(d.path, ResultsFile))
	if err != nil {
		return summary, fmt.Errorf("read results: %w", err)
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("decode results: %w", err)
	}
	return summary, nil
}

// LoadSeries reads response_times.csv back from the directory.
func (d *RunDir) LoadSeries() ([]metrics.SeriesPoint, error) {
	f, err := os.Open(filepath.Join(d.path, SeriesFile))
	if err != nil {
		return nil, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	points := make([]metrics.SeriesPoint, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != 2 {
			return nil, fmt.Errorf("series row %d: expected 2 columns, got %d", i+2, len(row))
		}
		seq, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("series row %d: %w", i+2, err)
		}
		ms, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("series row %d: %w", i+2, err)
		}
		points = append(points, metrics.SeriesPoint{Sequence: seq, LatencyMs: ms})
	}
	return points, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeSeries(path string, series []metrics.SeriesPoint) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("write %s: %w", SeriesFile, err)
	}
	buf := bufio.NewWriter(f)
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"request_number", "response_time_ms"})
	for _, p := range series {
		_ = w.Write([]string{
			strconv.Itoa(p.Sequence),
			strconv.FormatFloat(p.LatencyMs, 'f', -1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", SeriesFile, err)
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", SeriesFile, err)
	}
	return f.Close()
}
