// Package chat talks to the chat completion API that backs the support bot.
//
// [Client] is the collaborator seen by the dialogue simulator. [OpenAIClient]
// implements it against any OpenAI compatible endpoint, and [Wrap] layers
// middleware such as retries, rate limiting, per-call deadlines, tracing and
// Prometheus metrics on top of any Client.
package chat

import (
	"context"
	"errors"
	"strconv"

	"github.com/oklog/ulid/v2"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a dialogue context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Category is the topic a dialogue is about.
type Category int

const (
	CategoryDepression    Category = 1
	CategoryBurnout       Category = 2
	CategoryRelationships Category = 3
)

// Categories lists the supported categories in order.
var Categories = []Category{CategoryDepression, CategoryBurnout, CategoryRelationships}

// CategoryFor maps the i-th unit of a run onto a category, cycling 1, 2, 3.
func CategoryFor(i int) Category {
	return Category(i%len(Categories) + 1)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c >= CategoryDepression && c <= CategoryRelationships
}

func (c Category) String() string {
	return strconv.Itoa(int(c))
}

// Client is the chat collaborator.
type Client interface {
	// StartDialogue opens a dialogue for userID and returns its id.
	StartDialogue(ctx context.Context, category Category, userID string) (string, error)
	// Complete returns the assistant reply to messages.
	Complete(ctx context.Context, messages []Message, userID string, category Category) (string, error)
}

var (
	// ErrEmptyReply is returned when the API answers without content.
	ErrEmptyReply = errors.New("empty reply")
	// ErrTimeout is returned when a call exceeds its per-call deadline.
	ErrTimeout = errors.New("request timed out")
)

// NewDialogueID returns a sortable unique dialogue id.
func NewDialogueID() string {
	return ulid.Make().String()
}
