// Package ai is the LLM boundary: multi-turn chat sessions and one-shot
// multimodal analysis, with errors sorted into classes the caller can act on.
package ai

import "context"

// Roles used in Message.Role.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat is one multi-turn session with a single model.
type Chat interface {
	Send(ctx context.Context, text string) (string, error)
	History() []Message
}

// ChatFactory opens chat sessions. history seeds the new session.
type ChatFactory interface {
	NewChat(ctx context.Context, model, system string, history []Message) (Chat, error)
}

// Media is one input for multimodal analysis. Exactly one of Data or Path is set;
// Path is used for inputs too large to inline.
type Media struct {
	MIMEType string
	Data     []byte
	Path     string
}

// Analyzer turns a prompt plus media into text.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, media Media) (string, error)
}
