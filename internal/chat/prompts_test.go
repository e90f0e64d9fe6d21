package chat_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/dialogfire/internal/chat"
)

func TestDefaultPrompts(t *testing.T) {
	set := chat.DefaultPrompts()
	require.Len(t, set, 3)
	for _, c := range chat.Categories {
		p := set.For(c)
		assert.NotEmpty(t, p.SystemPrompt, "category %d", c)
		assert.NotEmpty(t, p.InitialMessage, "category %d", c)
	}
	assert.Equal(t, "burnout", set.For(chat.CategoryBurnout).Name)
}

func TestPromptSetFallback(t *testing.T) {
	set := chat.DefaultPrompts()
	assert.Equal(t, set.For(chat.CategoryDepression), set.For(chat.Category(9)))
}

func TestOpening(t *testing.T) {
	msgs := chat.DefaultPrompts().Opening(chat.CategoryBurnout)
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)

	noGreeting := chat.PromptSet{chat.CategoryDepression: {SystemPrompt: "only system"}}
	assert.Len(t, noGreeting.Opening(chat.CategoryDepression), 1)
}

func TestLoadPromptsOverridesCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
2:
  system_prompt: custom burnout prompt
  initial_message: hi
`), 0o600))

	set, err := chat.LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "custom burnout prompt", set.For(chat.CategoryBurnout).SystemPrompt)
	assert.Equal(t, chat.DefaultPrompts().For(chat.CategoryDepression), set.For(chat.CategoryDepression))
}

func TestParsePromptsRejectsUnknownCategory(t *testing.T) {
	_, err := chat.ParsePrompts([]byte("7:\n  system_prompt: x\n"))
	assert.Error(t, err)

	_, err = chat.ParsePrompts([]byte("1:\n  initial_message: x\n"))
	assert.Error(t, err)
}
