package chat

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is the opening of a dialogue in one category.
type Prompt struct {
	Name           string `yaml:"name"`
	SystemPrompt   string `yaml:"system_prompt"`
	InitialMessage string `yaml:"initial_message"`
}

// PromptSet holds the prompt of every category.
type PromptSet map[Category]Prompt

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() PromptSet {
	set, err := ParsePrompts(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("chat: built-in prompts: %v", err))
	}
	return set
}

// LoadPrompts reads a YAML prompt file. Categories missing from the file keep
// their built-in prompt.
func LoadPrompts(path string) (PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	custom, err := ParsePrompts(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	set := DefaultPrompts()
	for c, p := range custom {
		set[c] = p
	}
	return set, nil
}

// ParsePrompts decodes a YAML document keyed by category number.
func ParsePrompts(data []byte) (PromptSet, error) {
	var raw map[int]Prompt
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	set := make(PromptSet, len(raw))
	for k, p := range raw {
		c := Category(k)
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %d", k)
		}
		if p.SystemPrompt == "" {
			return nil, fmt.Errorf("category %d: system_prompt is required", k)
		}
		set[c] = p
	}
	return set, nil
}

// For returns the prompt of c, falling back to the first category.
func (s PromptSet) For(c Category) Prompt {
	if p, ok := s[c]; ok {
		return p
	}
	return s[CategoryDepression]
}

// Opening returns the initial dialogue context: the system prompt followed by
// the assistant greeting when one is configured.
func (s PromptSet) Opening(c Category) []Message {
	p := s.For(c)
	msgs := []Message{{Role: RoleSystem, Content: p.SystemPrompt}}
	if p.InitialMessage != "" {
		msgs = append(msgs, Message{Role: RoleAssistant, Content: p.InitialMessage})
	}
	return msgs
}
