package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Prompts    PromptSet
	// Headers are sent with every request, e.g. the OpenRouter attribution
	// headers HTTP-Referer and X-Title.
	Headers map[string]string
}

// OpenAIClient implements Client against an OpenAI compatible API.
type OpenAIClient struct {
	client  openai.Client
	model   string
	prompts PromptSet
}

// NewOpenAIClient builds a client. Retries are left to the WithRetry
// middleware, so the SDK's own retry loop is disabled.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	prompts := cfg.Prompts
	if len(prompts) == 0 {
		prompts = DefaultPrompts()
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		prompts: prompts,
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// StartDialogue sends the category opening to the model and returns a new
// dialogue id once the model has answered.
func (c *OpenAIClient) StartDialogue(ctx context.Context, category Category, userID string) (string, error) {
	if _, err := c.complete(ctx, c.prompts.Opening(category), userID); err != nil {
		return "", fmt.Errorf("start dialogue: %w", err)
	}
	return NewDialogueID(), nil
}

// Complete returns the model reply to messages.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, userID string, _ Category) (string, error) {
	return c.complete(ctx, messages, userID)
}

func (c *OpenAIClient) complete(ctx context.Context, messages []Message, userID string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toParams(messages),
	}
	if userID != "" {
		params.User = openai.String(userID)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := resp.Choices[0].Message.Content
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// StatusCode returns the HTTP status of an API error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
