// ABOUTME: Repository functions for thread rows
// ABOUTME: Covers creation with optional parent, lookup, and forest traversal queries

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateThread allocates a fresh id, inserts a thread row with the
// given optional parent reference, and returns the stored entity.
// A non-nil parentThreadID that references no existing thread fails
// with ErrForeignKey.
func CreateThread(ctx context.Context, s *Session, parentThreadID *string) (*Thread, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC()

	_, err := s.exec(ctx, `
		INSERT INTO threads (id, parent_thread_id, created_at)
		VALUES (?, ?, ?)
	`, id, parentThreadID, createdAt.Format(time.RFC3339))
	if err != nil {
		if isForeignKeyViolation(err) {
			parent := ""
			if parentThreadID != nil {
				parent = *parentThreadID
			}
			return nil, fmt.Errorf("inserting thread with parent %q: %w", parent, ErrForeignKey)
		}
		return nil, fmt.Errorf("inserting thread: %w", err)
	}

	// Read the row back so the caller sees exactly what was stored.
	return GetThread(ctx, s, id)
}

// GetThread retrieves a thread by id.
// Returns ErrNotFound if the thread doesn't exist.
func GetThread(ctx context.Context, s *Session, id string) (*Thread, error) {
	row, err := s.queryRow(ctx, `
		SELECT id, parent_thread_id, created_at
		FROM threads
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}

	return scanThread(row)
}

// ParentThread retrieves the parent of the given thread. Returns
// ErrNotFound when the thread is a root.
func ParentThread(ctx context.Context, s *Session, t *Thread) (*Thread, error) {
	if t.ParentThreadID == nil {
		return nil, ErrNotFound
	}
	return GetThread(ctx, s, *t.ParentThreadID)
}

// ListChildThreads returns the direct children of a thread, oldest
// first.
func ListChildThreads(ctx context.Context, s *Session, parentID string) ([]*Thread, error) {
	rows, err := s.query(ctx, `
		SELECT id, parent_thread_id, created_at
		FROM threads
		WHERE parent_thread_id = ?
		ORDER BY created_at ASC, id ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("querying child threads: %w", err)
	}
	defer rows.Close()

	return collectThreads(rows)
}

// ListRecentThreads returns threads ordered by newest first.
// If limit is 0 or negative, a default limit of 100 is used.
func ListRecentThreads(ctx context.Context, s *Session, limit int) ([]*Thread, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.query(ctx, `
		SELECT id, parent_thread_id, created_at
		FROM threads
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	return collectThreads(rows)
}

// CountThreadMessages returns the number of messages in a thread.
func CountThreadMessages(ctx context.Context, s *Session, threadID string) (int, error) {
	row, err := s.queryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE thread_id = ?
	`, threadID)
	if err != nil {
		return 0, err
	}

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*Thread, error) {
	var thread Thread
	var parentID sql.NullString
	var createdAtStr string

	err := row.Scan(&thread.ID, &parentID, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning thread: %w", err)
	}

	if parentID.Valid {
		thread.ParentThreadID = &parentID.String
	}

	thread.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &thread, nil
}

func collectThreads(rows *sql.Rows) ([]*Thread, error) {
	var threads []*Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thread rows: %w", err)
	}
	return threads, nil
}
