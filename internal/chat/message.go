// ABOUTME: Domain chat message schema stored in the messages table
// ABOUTME: Validates role/content/tool fields with go-playground/validator before storage

package chat

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Role identifies the author of a message turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

var validate = validator.New()

// ToolCall is one tool invocation requested by an assistant turn.
type ToolCall struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one serialized conversational turn. It is the document
// persisted in the messages table; the persistence layer validates it
// at write time and otherwise treats it as opaque.
type Message struct {
	Role       Role       `json:"role" validate:"required,oneof=user assistant system tool"`
	Content    string     `json:"content" validate:"required_without=ToolCalls"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" validate:"omitempty,dive"`
	ToolCallID string     `json:"tool_call_id,omitempty" validate:"required_if=Role tool"`
}

// Validate checks the message against the schema. The returned error
// is a validator.ValidationErrors describing every failing field.
func (m Message) Validate() error {
	return validate.Struct(m)
}

// Marshal validates the message and serializes it to its stored JSON
// form. Validation failures surface before any storage interaction.
func (m Message) Marshal() (json.RawMessage, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validating message: %w", err)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serializing message: %w", err)
	}
	return raw, nil
}

// Unmarshal parses a stored document back into a Message.
func Unmarshal(raw json.RawMessage) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("parsing message document: %w", err)
	}
	return m, nil
}
