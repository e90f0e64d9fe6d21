package dialogue_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/dialogfire/internal/chat"
	"github.com/torosent/dialogfire/internal/dialogue"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBankCSV(t *testing.T) {
	path := writeFile(t, "phrases.csv", `category,phrase,note
2,"Я выгорел, ничего не хочу.",first
2,Работа больше не радует.,
`)
	bank, err := dialogue.LoadBank(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Я выгорел, ничего не хочу.", "Работа больше не радует."}, bank.Phrases(chat.CategoryBurnout))
	assert.Equal(t, dialogue.DefaultBank().Phrases(chat.CategoryDepression), bank.Phrases(chat.CategoryDepression),
		"categories missing from the file keep the built-in phrases")
}

func TestLoadBankJSON(t *testing.T) {
	path := writeFile(t, "phrases.json", `[
  {"category": 3, "phrase": "Мы часто ссоримся."},
  {"category": "3", "phrase": "Партнер меня не слышит."}
]`)
	bank, err := dialogue.LoadBank(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Мы часто ссоримся.", "Партнер меня не слышит."}, bank.Phrases(chat.CategoryRelationships))
}

func TestLoadBankErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unsupported extension", "phrases.txt", "x", "unsupported format"},
		{"header only", "phrases.csv", "category,phrase\n", "at least one data row"},
		{"missing column", "phrases.csv", "category,text\n1,hello\n", `missing the "phrase" column`},
		{"ragged row", "phrases.csv", "category,phrase\n1,a,b\n", "row 2 has 3 fields"},
		{"unknown category", "phrases.csv", "category,phrase\n7,hello\n", "invalid category"},
		{"empty phrase", "phrases.json", `[{"category": 1, "phrase": "  "}]`, "empty phrase"},
		{"empty array", "phrases.json", `[]`, "empty array"},
		{"bad json", "phrases.json", `{`, "decode JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dialogue.LoadBank(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBankMissingFile(t *testing.T) {
	_, err := dialogue.LoadBank(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open CSV file")
}
