package ollama

import (
	"fmt"
	"strings"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", invalidParameter(fmt.Sprintf("unknown role %q", s))
	}
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Images is a list of base64-encoded images for multimodal models.
	Images []string `json:"images,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Format   Format    `json:"format,omitempty"`
	Options  Options   `json:"options,omitzero"`

	// Stream set to false requests a single response object.
	Stream *bool `json:"stream,omitempty"`

	// KeepAlive controls how long the model stays loaded, e.g. "5m".
	KeepAlive string `json:"keep_alive,omitempty"`
}

// Streaming reports whether the server will answer with NDJSON.
func (r *ChatRequest) Streaming() bool {
	return streaming(r.Stream)
}

// Validate reports the first constraint the request violates.
func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		return invalidParameter("model is required")
	}
	if len(r.Messages) == 0 {
		return invalidParameter("at least one message is required")
	}
	for i, m := range r.Messages {
		if _, err := ParseRole(string(m.Role)); err != nil {
			return invalidParameter(fmt.Sprintf("messages[%d]: unknown role %q", i, m.Role))
		}
	}
	if err := r.Format.validate(); err != nil {
		return err
	}
	return r.Options.Validate()
}

// ChatResponse is one chunk of a chat response, or the whole response when
// streaming is disabled.
type ChatResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Done      bool   `json:"done"`

	// Message holds the incremental assistant content of this chunk.
	Message *Message `json:"message,omitempty"`

	DoneReason string `json:"done_reason,omitempty"`

	Metrics
}

// Content returns the message content, or "" when the chunk has no message.
func (c ChatResponse) Content() string {
	if c.Message == nil {
		return ""
	}
	return c.Message.Content
}

func (c ChatResponse) Terminal() bool {
	return c.Done
}

func (c ChatResponse) Merge(next ChatResponse) ChatResponse {
	role := RoleAssistant
	switch {
	case next.Message != nil && next.Message.Role != "":
		role = next.Message.Role
	case c.Message != nil && c.Message.Role != "":
		role = c.Message.Role
	}

	content := c.Content() + next.Content()
	next.Message = &Message{Role: role, Content: content}
	next.CreatedAt = c.CreatedAt
	return next
}
