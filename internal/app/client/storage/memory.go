package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"chatsync/internal/domain/chat"
	"chatsync/internal/pkg/notify"
)

// MemoryStore хранилище в памяти.
// Используется в тестах и когда SQLite недоступен.
type MemoryStore struct {
	mu            sync.Mutex
	settings      chat.Settings
	conversations map[string]chat.Conversation
	prefs         map[string]string
	hub           *notify.Hub[ChangeEvent]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings:      chat.DefaultSettings(),
		conversations: make(map[string]chat.Conversation),
		prefs:         make(map[string]string),
		hub:           notify.NewHub[ChangeEvent](64),
	}
}

func (m *MemoryStore) GetSettings(_ context.Context) (chat.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settings
	s.SyncSource = chat.SourceLocal
	return s, nil
}

func (m *MemoryStore) PutSettings(ctx context.Context, s chat.Settings) error {
	_, err := m.UpdateSettings(ctx, func(cur *chat.Settings) error {
		*cur = s
		return nil
	})
	return err
}

func (m *MemoryStore) UpdateSettings(_ context.Context, fn func(s *chat.Settings) error) (chat.Settings, error) {
	m.mu.Lock()
	cur := m.settings
	cur.SyncSource = chat.SourceLocal
	if err := fn(&cur); err != nil {
		m.mu.Unlock()
		return chat.Settings{}, err
	}
	m.settings = cur
	m.mu.Unlock()

	m.hub.Publish(ChangeEvent{Kind: ChangeSettings, Source: sourceOrLocal(cur.SyncSource)})
	return cur, nil
}

func (m *MemoryStore) HasSavedSettings(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.LastUpdated != nil, nil
}

func (m *MemoryStore) ListConversations(_ context.Context) ([]chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]chat.Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, c.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return chat.Conversation{}, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
	}
	return c.Clone(), nil
}

func (m *MemoryStore) PutConversation(ctx context.Context, c chat.Conversation) error {
	_, err := m.UpdateConversation(ctx, c.ID, func(*chat.Conversation) (*chat.Conversation, error) {
		return &c, nil
	})
	return err
}

func (m *MemoryStore) UpdateConversation(_ context.Context, id string, fn ConversationUpdate) (bool, error) {
	m.mu.Lock()
	var cur *chat.Conversation
	if c, ok := m.conversations[id]; ok {
		cp := c.Clone()
		cur = &cp
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		m.mu.Unlock()
		return false, err
	}
	stored := next.Clone()
	stored.ID = id
	stored.SyncSource = sourceOrLocal(stored.SyncSource)
	if stored.UpdatedAt.Before(stored.CreatedAt) {
		stored.UpdatedAt = stored.CreatedAt
	}
	m.conversations[id] = stored
	m.mu.Unlock()

	m.hub.Publish(ChangeEvent{Kind: ChangeConversation, ID: id, Source: stored.SyncSource})
	return true, nil
}

func (m *MemoryStore) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.conversations[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: conversation %s", ErrNotFound, id)
	}
	delete(m.conversations, id)
	m.mu.Unlock()

	m.hub.Publish(ChangeEvent{Kind: ChangeConversationDeleted, ID: id, Source: chat.SourceLocal})
	return nil
}

func (m *MemoryStore) GetString(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.prefs[key]
	return v, ok, nil
}

func (m *MemoryStore) SetString(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.prefs[key] = value
	m.mu.Unlock()

	m.hub.Publish(ChangeEvent{Kind: ChangePreference, ID: key, Source: chat.SourceLocal})
	return nil
}

func (m *MemoryStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	raw, ok, _ := m.GetString(ctx, key)
	if !ok {
		return false, false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("preference %s: %w", key, err)
	}
	return v, true, nil
}

func (m *MemoryStore) SetBool(ctx context.Context, key string, value bool) error {
	return m.SetString(ctx, key, strconv.FormatBool(value))
}

func (m *MemoryStore) GetInt(ctx context.Context, key string) (int, bool, error) {
	raw, ok, _ := m.GetString(ctx, key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("preference %s: %w", key, err)
	}
	return v, true, nil
}

func (m *MemoryStore) SetInt(ctx context.Context, key string, value int) error {
	return m.SetString(ctx, key, strconv.Itoa(value))
}

func (m *MemoryStore) Subscribe() (<-chan ChangeEvent, func()) {
	return m.hub.Subscribe()
}

func (m *MemoryStore) Close() error {
	m.hub.Close()
	return nil
}
