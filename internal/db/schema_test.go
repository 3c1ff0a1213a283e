// ABOUTME: Tests for schema bootstrap behavior
// ABOUTME: Covers idempotent creation, the non-destructive guarantee, and force recreate

package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureTablesExist_FreshDatabase(t *testing.T) {
	engine, err := Open(filepath.Join(t.TempDir(), "test.db"), ModeBlocking)
	require.NoError(t, err)
	defer engine.Close()
	ctx := context.Background()

	ok, err := engine.HasTables(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, engine.EnsureTablesExist(ctx))

	ok, err = engine.HasTables(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureTablesExist_NonDestructive(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.WithSession(ctx, func(s *Session) error {
		_, err := CreateThread(ctx, s, nil)
		return err
	}))

	// Running again against a populated database must change nothing.
	require.NoError(t, engine.EnsureTablesExist(ctx))

	require.NoError(t, engine.WithSession(ctx, func(s *Session) error {
		threads, err := ListRecentThreads(ctx, s, 0)
		if err != nil {
			return err
		}
		assert.Len(t, threads, 1)
		return nil
	}))
}

func TestCreateTables_Idempotent(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.CreateTables(ctx, false))
	require.NoError(t, engine.CreateTables(ctx, false))
}

func TestCreateTables_ForceEmptiesTables(t *testing.T) {
	engine := setupTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.WithSession(ctx, func(s *Session) error {
		thread, err := CreateThread(ctx, s, nil)
		if err != nil {
			return err
		}
		call := NewLLMCall(thread.ID, "gpt-4o", nil, nil)
		if err := RecordLLMCall(ctx, s, call); err != nil {
			return err
		}
		msg, err := NewMessageFromChat(thread.ID, testChatMessage("hi"), &call.ID)
		if err != nil {
			return err
		}
		return InsertMessage(ctx, s, msg)
	}))

	require.NoError(t, engine.CreateTables(ctx, true))

	ok, err := engine.HasTables(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "all tables must exist after force recreate")

	require.NoError(t, engine.WithSession(ctx, func(s *Session) error {
		threads, err := ListRecentThreads(ctx, s, 0)
		if err != nil {
			return err
		}
		assert.Empty(t, threads, "force recreate must leave zero rows")
		return nil
	}))
}
