package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/gjson"
)

// ErrNoRuns is returned when no run directory matches.
var ErrNoRuns = errors.New("no test results found")

// RunInfo describes a stored run without decoding the whole result file.
type RunInfo struct {
	Dir       string
	TestName  string
	Timestamp string
	Total     int64
	Failed    int64
}

// ListRuns scans root for run directories, optionally filtered by test name.
// Runs are sorted newest first.
func ListRuns(root, testName string) ([]RunInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan results root: %w", err)
	}

	var runs []RunInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		data, err := os.ReadFile(filepath.Join(dir, ResultsFile))
		if err != nil || !gjson.ValidBytes(data) {
			continue
		}
		fields := gjson.GetManyBytes(data, "test_name", "timestamp", "total_requests", "failed_requests")
		if !fields[0].Exists() {
			continue
		}
		info := RunInfo{
			Dir:       dir,
			TestName:  fields[0].String(),
			Timestamp: fields[1].String(),
			Total:     fields[2].Int(),
			Failed:    fields[3].Int(),
		}
		if testName != "" && info.TestName != testName {
			continue
		}
		runs = append(runs, info)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Timestamp == runs[j].Timestamp {
			return runs[i].Dir > runs[j].Dir
		}
		return runs[i].Timestamp > runs[j].Timestamp
	})
	return runs, nil
}

// FindLatest returns the most recent run of testName, or of any test when
// testName is empty.
func FindLatest(root, testName string) (RunInfo, error) {
	runs, err := ListRuns(root, testName)
	if err != nil {
		return RunInfo{}, err
	}
	if len(runs) == 0 {
		if testName != "" {
			return RunInfo{}, fmt.Errorf("%w for %s in %s", ErrNoRuns, testName, root)
		}
		return RunInfo{}, fmt.Errorf("%w in %s", ErrNoRuns, root)
	}
	return runs[0], nil
}

// SessionLatencies extracts the per-session latency lists of a long dialogue
// run straight from results.json.
func SessionLatencies(dir string) (map[int][]float64, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultsFile))
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	out := make(map[int][]float64)
	gjson.GetBytes(data, "test_data.details.dialog_stats").ForEach(func(_, stat gjson.Result) bool {
		id := int(stat.Get("dialog_id").Int())
		var values []float64
		for _, v := range stat.Get("response_times").Array() {
			values = append(values, v.Float())
		}
		out[id] = values
		return true
	})
	return out, nil
}
