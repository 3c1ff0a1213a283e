// ABOUTME: Repository functions and factory for message rows
// ABOUTME: Builds messages from validated chat documents and covers insert, lookup, and listing

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/threadloom/threadloom/internal/chat"
)

// NewMessageFromChat validates and serializes a domain chat message
// into an unsaved Message entity ready for InsertMessage. It performs
// no I/O; a message that fails schema validation is rejected before
// any storage interaction.
func NewMessageFromChat(threadID string, msg chat.Message, llmCallID *uuid.UUID) (*Message, error) {
	raw, err := msg.Marshal()
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        uuid.New(),
		ThreadID:  threadID,
		LLMCallID: llmCallID,
		Message:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// InsertMessage persists a message row. A thread_id or llm_call_id
// referencing no existing row fails with ErrForeignKey.
func InsertMessage(ctx context.Context, s *Session, m *Message) error {
	var callID any
	if m.LLMCallID != nil {
		callID = m.LLMCallID.String()
	}

	_, err := s.exec(ctx, `
		INSERT INTO messages (id, thread_id, llm_call_id, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`,
		m.ID.String(),
		m.ThreadID,
		callID,
		string(m.Message),
		m.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("inserting message into thread %s: %w", m.ThreadID, ErrForeignKey)
		}
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id.
// Returns ErrNotFound if the message doesn't exist.
func GetMessage(ctx context.Context, s *Session, id uuid.UUID) (*Message, error) {
	row, err := s.queryRow(ctx, `
		SELECT id, thread_id, llm_call_id, message, timestamp
		FROM messages
		WHERE id = ?
	`, id.String())
	if err != nil {
		return nil, err
	}

	return scanMessage(row)
}

// ListThreadMessages retrieves messages for a thread in chronological
// order. A positive limit returns only the most recent N, still
// oldest first; otherwise all messages are returned.
func ListThreadMessages(ctx context.Context, s *Session, threadID string, limit int) ([]*Message, error) {
	var query string
	var args []any

	if limit > 0 {
		// Select the most recent N, then flip back to chronological order.
		query = `
			SELECT id, thread_id, llm_call_id, message, timestamp
			FROM (
				SELECT id, thread_id, llm_call_id, message, timestamp
				FROM messages
				WHERE thread_id = ?
				ORDER BY timestamp DESC, id DESC
				LIMIT ?
			)
			ORDER BY timestamp ASC, id ASC
		`
		args = []any{threadID, limit}
	} else {
		query = `
			SELECT id, thread_id, llm_call_id, message, timestamp
			FROM messages
			WHERE thread_id = ?
			ORDER BY timestamp ASC, id ASC
		`
		args = []any{threadID}
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var idStr, doc, timestampStr string
	var callID sql.NullString

	err := row.Scan(&idStr, &m.ThreadID, &callID, &doc, &timestampStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	m.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing message id: %w", err)
	}

	if callID.Valid {
		id, err := uuid.Parse(callID.String)
		if err != nil {
			return nil, fmt.Errorf("parsing llm_call_id: %w", err)
		}
		m.LLMCallID = &id
	}

	m.Message = json.RawMessage(doc)

	m.Timestamp, err = time.Parse(time.RFC3339, timestampStr)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}

	return &m, nil
}
