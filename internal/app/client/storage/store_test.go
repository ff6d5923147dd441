package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"chatsync/internal/domain/chat"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chatsync.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newMemory(t *testing.T) Store {
	t.Helper()
	return NewMemoryStore()
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range map[string]func(*testing.T) Store{
		"sqlite": newSQLite,
		"memory": newMemory,
	} {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestStore_SettingsDefaultsAndFirstRun(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		settings, err := s.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, chat.DefaultModelID, settings.ModelID)
		assert.Nil(t, settings.LastUpdated)

		saved, err := s.HasSavedSettings(ctx)
		require.NoError(t, err)
		assert.False(t, saved)

		// сохранение без метки времени не снимает признак первого запуска
		settings.Temperature = 1.0
		require.NoError(t, s.PutSettings(ctx, settings))
		saved, err = s.HasSavedSettings(ctx)
		require.NoError(t, err)
		assert.False(t, saved)

		now := time.Now().UTC()
		settings.LastUpdated = &now
		character := "Alice"
		settings.Character = &character
		require.NoError(t, s.PutSettings(ctx, settings))

		saved, err = s.HasSavedSettings(ctx)
		require.NoError(t, err)
		assert.True(t, saved)

		got, err := s.GetSettings(ctx)
		require.NoError(t, err)
		assert.True(t, settings.Equal(got))
		assert.Equal(t, chat.SourceLocal, got.SyncSource)
	})
}

func TestStore_UpdateSettingsError(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.UpdateSettings(ctx, func(cur *chat.Settings) error {
			cur.Temperature = 1.9
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		got, err := s.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, chat.DefaultTemperature, got.Temperature)
	})
}

func TestStore_Conversations(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

		older := chat.Conversation{ID: "a", Title: "A", CreatedAt: base, UpdatedAt: base,
			Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi", Timestamp: base}}}
		newer := chat.Conversation{ID: "b", Title: "B", CreatedAt: base, UpdatedAt: base.Add(time.Hour)}

		require.NoError(t, s.PutConversation(ctx, older))
		require.NoError(t, s.PutConversation(ctx, newer))

		list, err := s.ListConversations(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b", list[0].ID)
		assert.Equal(t, "a", list[1].ID)

		got, err := s.GetConversation(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "hi", got.Messages[0].Content)
		assert.Equal(t, chat.SourceLocal, got.SyncSource)

		_, err = s.GetConversation(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.DeleteConversation(ctx, "a"))
		assert.ErrorIs(t, s.DeleteConversation(ctx, "a"), ErrNotFound)
	})
}

func TestStore_UpdateConversation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

		// вставка, когда беседы нет
		changed, err := s.UpdateConversation(ctx, "c", func(cur *chat.Conversation) (*chat.Conversation, error) {
			assert.Nil(t, cur)
			return &chat.Conversation{Title: "new", CreatedAt: base, UpdatedAt: base}, nil
		})
		require.NoError(t, err)
		assert.True(t, changed)

		// nil означает пропуск
		changed, err = s.UpdateConversation(ctx, "c", func(cur *chat.Conversation) (*chat.Conversation, error) {
			require.NotNil(t, cur)
			assert.Equal(t, "new", cur.Title)
			return nil, nil
		})
		require.NoError(t, err)
		assert.False(t, changed)

		// updatedAt не может быть раньше createdAt
		changed, err = s.UpdateConversation(ctx, "c", func(cur *chat.Conversation) (*chat.Conversation, error) {
			cur.UpdatedAt = base.Add(-time.Hour)
			return cur, nil
		})
		require.NoError(t, err)
		assert.True(t, changed)

		got, err := s.GetConversation(ctx, "c")
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.Equal(base))
	})
}

func TestStore_Preferences(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, ok, err := s.GetString(ctx, "theme")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SetString(ctx, "theme", "dark"))
		require.NoError(t, s.SetBool(ctx, "compact", true))
		require.NoError(t, s.SetInt(ctx, "font_size", 14))

		v, ok, err := s.GetString(ctx, "theme")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "dark", v)

		b, ok, err := s.GetBool(ctx, "compact")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, b)

		n, ok, err := s.GetInt(ctx, "font_size")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 14, n)

		_, _, err = s.GetInt(ctx, "theme")
		assert.Error(t, err)
	})
}

func TestStore_ChangeEvents(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		events, unsubscribe := s.Subscribe()
		defer unsubscribe()

		settings := chat.DefaultSettings()
		settings.SyncSource = chat.SourceRemote
		require.NoError(t, s.PutSettings(ctx, settings))

		now := time.Now()
		require.NoError(t, s.PutConversation(ctx, chat.Conversation{ID: "x", CreatedAt: now, UpdatedAt: now}))

		ev := <-events
		assert.Equal(t, ChangeEvent{Kind: ChangeSettings, Source: chat.SourceRemote}, ev)
		ev = <-events
		assert.Equal(t, ChangeEvent{Kind: ChangeConversation, ID: "x", Source: chat.SourceLocal}, ev)
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsync.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, slog.Default())
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, s.PutConversation(ctx, chat.Conversation{ID: "keep", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Close())

	// повторное открытие не ломается на уже примененных миграциях
	s, err = NewSQLiteStore(path, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].ID)

	assert.ErrorIs(t, func() error { _ = s.Close(); return s.SetString(ctx, "k", "v") }(), ErrClosed)
}
