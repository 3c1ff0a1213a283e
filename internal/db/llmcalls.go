// ABOUTME: Repository functions for language model call records
// ABOUTME: Covers recording calls with prompt/cost documents and indexed lookups by thread and model

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewLLMCall builds an unsaved call record for the given thread and
// model. Prompt and cost documents are stored verbatim; a nil
// document is stored as an empty JSON object.
func NewLLMCall(threadID, model string, prompt, cost json.RawMessage) *LLMCall {
	if prompt == nil {
		prompt = json.RawMessage("{}")
	}
	if cost == nil {
		cost = json.RawMessage("{}")
	}
	return &LLMCall{
		ID:        uuid.New(),
		ThreadID:  threadID,
		Model:     model,
		Prompt:    prompt,
		Cost:      cost,
		Timestamp: time.Now().UTC(),
	}
}

// RecordLLMCall persists a call record. A thread_id referencing no
// existing thread fails with ErrForeignKey.
func RecordLLMCall(ctx context.Context, s *Session, call *LLMCall) error {
	_, err := s.exec(ctx, `
		INSERT INTO llm_calls (id, thread_id, model, prompt, cost, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		call.ID.String(),
		call.ThreadID,
		call.Model,
		string(call.Prompt),
		string(call.Cost),
		call.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("recording call for thread %s: %w", call.ThreadID, ErrForeignKey)
		}
		return fmt.Errorf("inserting llm call: %w", err)
	}
	return nil
}

// GetLLMCall retrieves a call record by id.
// Returns ErrNotFound if the call doesn't exist.
func GetLLMCall(ctx context.Context, s *Session, id uuid.UUID) (*LLMCall, error) {
	row, err := s.queryRow(ctx, `
		SELECT id, thread_id, model, prompt, cost, timestamp
		FROM llm_calls
		WHERE id = ?
	`, id.String())
	if err != nil {
		return nil, err
	}

	return scanLLMCall(row)
}

// ListThreadLLMCalls retrieves all call records for a thread, oldest
// first.
func ListThreadLLMCalls(ctx context.Context, s *Session, threadID string) ([]*LLMCall, error) {
	rows, err := s.query(ctx, `
		SELECT id, thread_id, model, prompt, cost, timestamp
		FROM llm_calls
		WHERE thread_id = ?
		ORDER BY timestamp ASC, id ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("querying thread calls: %w", err)
	}
	defer rows.Close()

	return collectLLMCalls(rows)
}

// ListLLMCallsByModel retrieves the most recent call records for a
// model, newest first. This is the lookup the model index exists for.
// If limit is 0 or negative, a default limit of 100 is used.
func ListLLMCallsByModel(ctx context.Context, s *Session, model string, limit int) ([]*LLMCall, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.query(ctx, `
		SELECT id, thread_id, model, prompt, cost, timestamp
		FROM llm_calls
		WHERE model = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, model, limit)
	if err != nil {
		return nil, fmt.Errorf("querying calls by model: %w", err)
	}
	defer rows.Close()

	return collectLLMCalls(rows)
}

// ListCallMessages retrieves the messages a call produced, oldest
// first.
func ListCallMessages(ctx context.Context, s *Session, callID uuid.UUID) ([]*Message, error) {
	rows, err := s.query(ctx, `
		SELECT id, thread_id, llm_call_id, message, timestamp
		FROM messages
		WHERE llm_call_id = ?
		ORDER BY timestamp ASC, id ASC
	`, callID.String())
	if err != nil {
		return nil, fmt.Errorf("querying call messages: %w", err)
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

func scanLLMCall(row rowScanner) (*LLMCall, error) {
	var call LLMCall
	var idStr, prompt, cost, timestampStr string

	err := row.Scan(&idStr, &call.ThreadID, &call.Model, &prompt, &cost, &timestampStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning llm call: %w", err)
	}

	call.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing call id: %w", err)
	}

	call.Prompt = json.RawMessage(prompt)
	call.Cost = json.RawMessage(cost)

	call.Timestamp, err = time.Parse(time.RFC3339, timestampStr)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}

	return &call, nil
}

func collectLLMCalls(rows *sql.Rows) ([]*LLMCall, error) {
	var calls []*LLMCall
	for rows.Next() {
		c, err := scanLLMCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call rows: %w", err)
	}
	return calls, nil
}
