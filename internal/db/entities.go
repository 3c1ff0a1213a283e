// ABOUTME: Entity types and sentinel errors for the persistence layer
// ABOUTME: Defines Thread, Message, LLMCall as plain records persisted by repository functions

package db

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrForeignKey is returned when a write references a nonexistent
// thread, parent thread, or LLM call
var ErrForeignKey = errors.New("foreign key violation")

// ErrSessionClosed is returned when an operation uses a session that
// has already been released
var ErrSessionClosed = errors.New("session closed")

// Thread is a node in a forest of conversational contexts.
// ParentThreadID is nil for roots and must reference an existing
// thread otherwise.
type Thread struct {
	ID             string
	ParentThreadID *string
	CreatedAt      time.Time
}

// Message is one turn within a thread's conversation. The Message
// column holds an opaque, schema-validated chat document; this layer
// never interprets its internal shape.
type Message struct {
	ID        uuid.UUID
	ThreadID  string
	LLMCallID *uuid.UUID // nil for user-authored or system messages
	Message   json.RawMessage
	Timestamp time.Time
}

// LLMCall records one invocation of a language model on behalf of a
// thread. Prompt and Cost are opaque JSON documents owned by the
// caller's accounting formats.
type LLMCall struct {
	ID        uuid.UUID
	ThreadID  string
	Model     string
	Prompt    json.RawMessage
	Cost      json.RawMessage
	Timestamp time.Time
}

// isForeignKeyViolation checks if the error is a SQLite foreign key
// constraint failure
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
