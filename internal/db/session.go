// ABOUTME: Session scope providing a unit-of-work handle over a dedicated connection
// ABOUTME: Guarantees release on every exit path without masking in-scope errors

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Session is one unit of work bound to one engine: a dedicated
// connection checked out of the engine's pool. A session is owned
// exclusively by the logical unit of work that created it — it is not
// reentrant and must not be shared between concurrently executing
// callers.
//
// Statements run in autocommit mode unless the caller opens an
// explicit transaction with Begin. Committing or rolling back that
// transaction before the scope ends is the caller's responsibility;
// Close only guarantees release, rolling back anything left open so
// no partial commit is ever observable.
type Session struct {
	conn   *sql.Conn
	tx     *sql.Tx
	closed bool
}

// Session checks a connection out of the engine's pool. On the loop
// engine acquisition may block until the single connection is free;
// context cancellation aborts the wait.
func (e *Engine) Session(ctx context.Context) (*Session, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring session: %w", err)
	}
	return &Session{conn: conn}, nil
}

// WithSession runs fn inside a session scope, releasing the session on
// every exit path. A release error never masks fn's error: when both
// occur they are joined with fn's error first.
func (e *Engine) WithSession(ctx context.Context, fn func(*Session) error) error {
	s, err := e.Session(ctx)
	if err != nil {
		return err
	}

	err = fn(s)
	if cerr := s.Close(); cerr != nil {
		if err != nil {
			return errors.Join(err, cerr)
		}
		return cerr
	}
	return err
}

// Begin opens an explicit transaction on the session's connection.
func (s *Session) Begin(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx != nil {
		return errors.New("transaction already open")
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// Commit commits the open transaction.
func (s *Session) Commit() error {
	if s.tx == nil {
		return errors.New("no open transaction")
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Rollback discards the open transaction.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return errors.New("no open transaction")
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("rolling back: %w", err)
	}
	return nil
}

// Close releases the underlying connection unconditionally. An open
// transaction is rolled back first. Close is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var rbErr error
	if s.tx != nil {
		rbErr = s.tx.Rollback()
		s.tx = nil
	}

	if err := s.conn.Close(); err != nil {
		if rbErr != nil {
			return errors.Join(rbErr, err)
		}
		return fmt.Errorf("releasing session: %w", err)
	}
	return rbErr
}

// exec dispatches through the open transaction when one exists.
func (s *Session) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.conn.ExecContext(ctx, query, args...)
}

// query dispatches through the open transaction when one exists.
func (s *Session) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	return s.conn.QueryContext(ctx, query, args...)
}

// queryRow dispatches through the open transaction when one exists.
func (s *Session) queryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx.QueryRowContext(ctx, query, args...), nil
	}
	return s.conn.QueryRowContext(ctx, query, args...), nil
}
