package metrics

import (
	"sort"
	"strings"
)

// ErrorGroup is the aggregated count of error records sharing a kind.
type ErrorGroup struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

var errorKinds = []struct {
	kind    string
	markers []string
}{
	{"Timeout", []string{"timeout", "deadline exceeded", "timed out"}},
	{"Empty reply", []string{"empty reply", "empty response", "no reply"}},
	{"Rate limited", []string{"rate limit", "too many requests"}},
	{"Server error", []string{"internal server error", "bad gateway", "service unavailable", "server error"}},
	{"Unit panic", []string{"panic", "exception in"}},
	{"Canceled", []string{"context canceled"}},
}

// ErrorKind classifies an error record by well-known markers.
func ErrorKind(record string) string {
	lower := strings.ToLower(record)
	for _, k := range errorKinds {
		for _, m := range k.markers {
			if strings.Contains(lower, m) {
				return k.kind
			}
		}
	}
	return "Other"
}

// GroupErrors counts error records by kind. Rows are sorted by descending
// count, then by kind for stability.
func GroupErrors(records []string) []ErrorGroup {
	if len(records) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, r := range records {
		counts[ErrorKind(r)]++
	}
	rows := make([]ErrorGroup, 0, len(counts))
	for kind, count := range counts {
		rows = append(rows, ErrorGroup{Kind: kind, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
