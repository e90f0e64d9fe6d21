package dialogue

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/dialogfire/internal/chat"
)

// phraseRecord is one row of a phrase file.
type phraseRecord map[string]string

// LoadBank reads user phrases from a CSV or JSON file and merges them over
// the built-in bank: every category present in the file replaces the built-in
// phrases of that category.
//
// CSV files need a header row with "category" and "phrase" columns. JSON
// files hold an array of objects with the same keys.
func LoadBank(path string) (PhraseBank, error) {
	var (
		records []phraseRecord
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(path)
	case ".json":
		records, err = readJSON(path)
	default:
		return nil, fmt.Errorf("phrase file %s: unsupported format (use .csv or .json)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("phrase file %s: %w", path, err)
	}

	loaded := make(PhraseBank)
	for i, rec := range records {
		n, err := strconv.Atoi(strings.TrimSpace(rec["category"]))
		if err != nil || !chat.Category(n).Valid() {
			return nil, fmt.Errorf("phrase file %s: record %d: invalid category %q", path, i+1, rec["category"])
		}
		phrase := strings.TrimSpace(rec["phrase"])
		if phrase == "" {
			return nil, fmt.Errorf("phrase file %s: record %d: empty phrase", path, i+1)
		}
		loaded[chat.Category(n)] = append(loaded[chat.Category(n)], phrase)
	}

	bank := DefaultBank()
	for c, phrases := range loaded {
		bank[c] = phrases
	}
	return bank, nil
}

func readCSV(path string) ([]phraseRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have a header row and at least one data row")
	}

	header := rows[0]
	for _, col := range []string{"category", "phrase"} {
		if !slices.Contains(header, col) {
			return nil, fmt.Errorf("CSV header is missing the %q column", col)
		}
	}

	records := make([]phraseRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
		rec := make(phraseRecord, len(header))
		for j, field := range header {
			rec[field] = row[j]
		}
		records = append(records, rec)
	}
	return records, nil
}

func readJSON(path string) ([]phraseRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	defer file.Close()

	var raw []map[string]any
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("JSON file contains empty array")
	}

	records := make([]phraseRecord, 0, len(raw))
	for _, obj := range raw {
		rec := make(phraseRecord, len(obj))
		for key, value := range obj {
			rec[key] = fmt.Sprintf("%v", value)
		}
		records = append(records, rec)
	}
	return records, nil
}
