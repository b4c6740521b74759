package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ramptix/leicht/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestStore_CreateAppendMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.Create(ctx, "openai", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Len(t, sess.ID, 36)

	require.NoError(t, s.Append(ctx, sess.ID,
		llm.SystemMessage("You are helpful."),
		llm.UserMessage("What   time\nis it?"),
	))
	require.NoError(t, s.Append(ctx, sess.ID,
		llm.SystemMessage("I executed get_time(), results:\n12:00"),
		llm.AssistantMessage("It is noon."),
	))
	require.NoError(t, s.Append(ctx, sess.ID))

	msgs, err := s.Messages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{
		llm.SystemMessage("You are helpful."),
		llm.UserMessage("What   time\nis it?"),
		llm.SystemMessage("I executed get_time(), results:\n12:00"),
		llm.AssistantMessage("It is noon."),
	}, msgs)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "What time is it?", got.Title)
	assert.Equal(t, 4, got.Messages)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestStore_AppendUnknownSession(t *testing.T) {
	s := newTestStore(t)
	err := s.Append(context.Background(), "nope", llm.UserMessage("hi"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Create(ctx, "groq", "m")
	require.NoError(t, err)
	second, err := s.Create(ctx, "groq", "m")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, first.ID, llm.UserMessage("bump")))

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, 1, list[0].Messages)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Zero(t, list[1].Messages)

	list, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_GetByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.Create(ctx, "openai", "m")
	require.NoError(t, err)

	got, err := s.Get(ctx, sess.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = s.Get(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "%")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"abc-1", "abc-2"} {
		_, err := s.db.Exec(`INSERT INTO sessions (id, provider, model, created_at, updated_at) VALUES (?, 'p', 'm', '', '')`, id)
		require.NoError(t, err)
	}
	_, err = s.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrAmbiguous)
	got, err = s.Get(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "abc-2", got.ID)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.Create(ctx, "openai", "m")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, sess.ID, llm.UserMessage("hi")))

	require.NoError(t, s.Delete(ctx, sess.ID))
	msgs, err := s.Messages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.ErrorIs(t, s.Delete(ctx, sess.ID), ErrNotFound)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")

	s, err := Open(path)
	require.NoError(t, err)
	sess, err := s.Create(ctx, "anthropic", "claude")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", got.Provider)
}
