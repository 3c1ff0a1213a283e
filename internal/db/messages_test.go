// ABOUTME: Tests for message factory and repository functions
// ABOUTME: Covers validation, JSON round-trips, referential integrity, and recent-N listing

package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadloom/threadloom/internal/chat"
)

func testChatMessage(content string) chat.Message {
	return chat.Message{
		Role:    chat.RoleUser,
		Content: content,
	}
}

func TestNewMessageFromChat(t *testing.T) {
	msg, err := NewMessageFromChat("thread-1", testChatMessage("hi"), nil)
	require.NoError(t, err)

	assert.Equal(t, "thread-1", msg.ThreadID)
	assert.Nil(t, msg.LLMCallID)
	assert.NotEmpty(t, msg.Message)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewMessageFromChat_InvalidMessage(t *testing.T) {
	// Missing role fails schema validation before any storage interaction.
	_, err := NewMessageFromChat("thread-1", chat.Message{Content: "hi"}, nil)
	assert.Error(t, err)
}

func TestMessage_RoundTrip(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	thread, err := CreateThread(ctx, s, nil)
	require.NoError(t, err)

	original := testChatMessage("hello there")
	msg, err := NewMessageFromChat(thread.ID, original, nil)
	require.NoError(t, err)
	require.NoError(t, InsertMessage(ctx, s, msg))

	loaded, err := GetMessage(ctx, s, msg.ID)
	require.NoError(t, err)

	decoded, err := chat.Unmarshal(loaded.Message)
	require.NoError(t, err)
	assert.Equal(t, original, decoded, "stored document must deep-equal the input after round-trip")
}

func TestMessage_RoundTrip_ToolCalls(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	thread, err := CreateThread(ctx, s, nil)
	require.NoError(t, err)

	original := chat.Message{
		Role: chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{
			{ID: "call_1", Name: "lookup", Arguments: json.RawMessage(`{"q":"weather"}`)},
		},
	}
	msg, err := NewMessageFromChat(thread.ID, original, nil)
	require.NoError(t, err)
	require.NoError(t, InsertMessage(ctx, s, msg))

	loaded, err := GetMessage(ctx, s, msg.ID)
	require.NoError(t, err)

	decoded, err := chat.Unmarshal(loaded.Message)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestInsertMessage_MissingThread(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	msg, err := NewMessageFromChat("nonexistent", testChatMessage("hi"), nil)
	require.NoError(t, err)

	err = InsertMessage(ctx, s, msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForeignKey)

	// No row may be persisted by the rejected write.
	_, err = GetMessage(ctx, s, msg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertMessage_MissingLLMCall(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	thread, err := CreateThread(ctx, s, nil)
	require.NoError(t, err)

	bogus := NewLLMCall(thread.ID, "gpt-4o", nil, nil)
	msg, err := NewMessageFromChat(thread.ID, testChatMessage("hi"), &bogus.ID)
	require.NoError(t, err)

	err = InsertMessage(ctx, s, msg)
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestGetMessage_NotFound(t *testing.T) {
	s := setupTestSession(t)

	msg, err := NewMessageFromChat("thread-1", testChatMessage("hi"), nil)
	require.NoError(t, err)

	_, err = GetMessage(context.Background(), s, msg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListThreadMessages_Chronological(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	thread, err := CreateThread(ctx, s, nil)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 4; i++ {
		msg, err := NewMessageFromChat(thread.ID, testChatMessage(string(rune('a'+i))), nil)
		require.NoError(t, err)
		msg.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, InsertMessage(ctx, s, msg))
	}

	messages, err := ListThreadMessages(ctx, s, thread.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 4)

	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].Timestamp.Before(messages[i-1].Timestamp))
	}
}

func TestListThreadMessages_RecentN(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	thread, err := CreateThread(ctx, s, nil)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		msg, err := NewMessageFromChat(thread.ID, testChatMessage(c), nil)
		require.NoError(t, err)
		msg.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, InsertMessage(ctx, s, msg))
	}

	// The two most recent, still oldest first.
	messages, err := ListThreadMessages(ctx, s, thread.ID, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	first, err := chat.Unmarshal(messages[0].Message)
	require.NoError(t, err)
	second, err := chat.Unmarshal(messages[1].Message)
	require.NoError(t, err)
	assert.Equal(t, "third", first.Content)
	assert.Equal(t, "fourth", second.Content)
}
