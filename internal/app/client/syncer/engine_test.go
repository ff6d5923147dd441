package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"chatsync/internal/app/client/remote"
	"chatsync/internal/app/client/storage"
	"chatsync/internal/domain/chat"
	"chatsync/internal/domain/sync"
)

// MockRemote is a mock implementation of the Remote interface for testing
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) GetSettings(ctx context.Context) (*chat.SettingsRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.SettingsRecord), args.Error(1)
}

func (m *MockRemote) PutSettings(ctx context.Context, rec chat.SettingsRecord) (*chat.SettingsRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.SettingsRecord), args.Error(1)
}

func (m *MockRemote) ListConversations(ctx context.Context) (*remote.ConversationBatch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.ConversationBatch), args.Error(1)
}

func (m *MockRemote) Sync(ctx context.Context, req sync.SyncRequest) (*sync.SyncResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.SyncResponse), args.Error(1)
}

type fakeAuth struct {
	authenticated bool
}

func (a *fakeAuth) IsAuthenticated() bool { return a.authenticated }
func (a *fakeAuth) AuthHeader() string {
	if !a.authenticated {
		return ""
	}
	return "Bearer test"
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store storage.Store) (*Engine, *MockRemote) {
	t.Helper()
	rmt := new(MockRemote)
	cfg, err := MergeConfig(Config{RequestTimeout: time.Second})
	require.NoError(t, err)

	e := NewEngine(store, rmt, &fakeAuth{authenticated: true}, cfg, slog.Default())
	e.now = func() time.Time { return testNow }
	return e, rmt
}

func saveLocalSettings(t *testing.T, store storage.Store, fn func(s *chat.Settings)) {
	t.Helper()
	_, err := store.UpdateSettings(context.Background(), func(s *chat.Settings) error {
		fn(s)
		return nil
	})
	require.NoError(t, err)
}

func TestEngine_NotAuthenticatedFailsFast(t *testing.T) {
	store := storage.NewMemoryStore()
	rmt := new(MockRemote)
	e := NewEngine(store, rmt, &fakeAuth{}, DefaultConfig(), slog.Default())

	res, err := e.SyncAll(context.Background())
	assert.ErrorIs(t, err, remote.ErrNotAuthenticated)
	assert.Nil(t, res)

	_, err = e.PullSettings(context.Background())
	assert.ErrorIs(t, err, remote.ErrNotAuthenticated)

	rmt.AssertNotCalled(t, "GetSettings", mock.Anything)
	assert.False(t, e.State().IsSyncing)
}

func TestEngine_FirstRunAppliesOlderRemote(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, _ := newTestEngine(t, store)

	firstRun, err := e.IsFirstRun(ctx)
	require.NoError(t, err)
	require.True(t, firstRun)

	local, err := store.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, 0.7, local.Temperature)

	applied, err := e.ApplyUserSettings(ctx, chat.SettingsRecord{
		Temperature: 1.2,
		LastUpdated: ts(testNow.Add(-time.Hour)),
		SyncSource:  "discord",
	}, firstRun)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.2, got.Temperature)

	firstRun, err = e.IsFirstRun(ctx)
	require.NoError(t, err)
	assert.False(t, firstRun)
}

func TestEngine_RemoteIsCompleteStateAfterFirstRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, _ := newTestEngine(t, store)

	t1 := testNow.Add(-2 * time.Hour)
	t2 := testNow.Add(-time.Hour)
	saveLocalSettings(t, store, func(s *chat.Settings) {
		s.Character = str("Alice")
		s.LastUpdated = ts(t1)
	})

	applied, err := e.ApplyUserSettings(ctx, chat.SettingsRecord{
		ModelID:     chat.DefaultModelID,
		Temperature: 0.7,
		Character:   nil,
		LastUpdated: ts(t2),
		SyncSource:  "remote",
	}, false)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.Character)
	assert.True(t, got.LastUpdated.Equal(t2))
}

func TestEngine_ApplyUserSettingsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, _ := newTestEngine(t, store)

	saveLocalSettings(t, store, func(s *chat.Settings) { s.LastUpdated = ts(testNow.Add(-time.Hour)) })

	rec := chat.SettingsRecord{
		ModelID:       "openai/gpt-4o",
		Temperature:   1.1,
		SystemMessage: str("be brief"),
		LastUpdated:   ts(testNow),
		SyncSource:    "remote",
	}

	applied, err := e.ApplyUserSettings(ctx, rec, false)
	require.NoError(t, err)
	assert.True(t, applied)
	once, err := store.GetSettings(ctx)
	require.NoError(t, err)

	applied, err = e.ApplyUserSettings(ctx, rec, false)
	require.NoError(t, err)
	assert.False(t, applied)
	twice, err := store.GetSettings(ctx)
	require.NoError(t, err)

	assert.True(t, once.Equal(twice))
}

func TestEngine_ApplyUserSettingsEchoAndInvalid(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, _ := newTestEngine(t, store)

	applied, err := e.ApplyUserSettings(ctx, chat.SettingsRecord{
		Temperature: 1.9,
		LastUpdated: ts(testNow),
		SyncSource:  "flutter",
	}, true)
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = e.ApplyUserSettings(ctx, chat.SettingsRecord{Temperature: 7, SyncSource: "remote"}, true)
	assert.ErrorIs(t, err, chat.ErrInvalidRecord)

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultTemperature, got.Temperature)
}

func TestEngine_PullConversationsMerge(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, rmt := newTestEngine(t, store)

	t1 := testNow.Add(-2 * time.Hour)
	t2 := testNow.Add(-time.Hour)

	require.NoError(t, store.PutConversation(ctx, chat.Conversation{ID: "a", Title: "local a", CreatedAt: t1, UpdatedAt: t1}))
	require.NoError(t, store.PutConversation(ctx, chat.Conversation{ID: "b", Title: "local b", CreatedAt: t1, UpdatedAt: t2}))
	require.NoError(t, store.PutConversation(ctx, chat.Conversation{ID: "d", Title: "local only", CreatedAt: t1, UpdatedAt: t1}))

	rmt.On("ListConversations", mock.Anything).Return(&remote.ConversationBatch{
		Conversations: []chat.ConversationRecord{
			{ID: "a", Title: "remote a", CreatedAt: t1, UpdatedAt: t2},
			{ID: "b", Title: "remote b", CreatedAt: t1, UpdatedAt: t1},
			{ID: "c", Title: "remote c", CreatedAt: t1, UpdatedAt: t1},
			{ID: "c", Title: "duplicate c", CreatedAt: t1, UpdatedAt: t2},
		},
		Skipped: []*remote.DecodeError{{Index: 4, Err: errors.New("bad json")}},
	}, nil)

	res, err := e.PullConversations(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Pulled)
	assert.Equal(t, 1, res.Rejected)

	titles := map[string]string{}
	list, err := store.ListConversations(ctx)
	require.NoError(t, err)
	for _, c := range list {
		titles[c.ID] = c.Title
	}
	assert.Equal(t, map[string]string{
		"a": "remote a",
		"b": "local b",
		"c": "remote c",
		"d": "local only",
	}, titles)

	a, err := store.GetConversation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, chat.SourceRemote, a.SyncSource)
}

func TestEngine_FailureRecordedAsLastError(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, rmt := newTestEngine(t, store)

	rmt.On("GetSettings", mock.Anything).
		Return(nil, &remote.TransportError{Op: "get settings", Err: errors.New("connection refused")}).Once()

	res, err := e.PullSettings(ctx)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "connection refused")
	assert.Contains(t, e.State().LastError, "connection refused")
	assert.Nil(t, e.State().LastSyncTime)
	assert.False(t, e.State().IsSyncing)

	rmt.On("GetSettings", mock.Anything).Return(nil, nil).Once()

	res, err = e.PullSettings(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, e.State().LastError)
	require.NotNil(t, e.State().LastSyncTime)

	stats := e.Stats()
	assert.Equal(t, 2, stats.TotalSyncs)
	assert.Equal(t, 1, stats.TotalFailures)

	// время последней синхронизации переживает перезапуск
	restored := NewEngine(store, rmt, &fakeAuth{authenticated: true}, DefaultConfig(), slog.Default())
	require.NotNil(t, restored.State().LastSyncTime)
	assert.True(t, restored.State().LastSyncTime.Equal(testNow))
}

func TestEngine_InFlightRequestIsDropped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, rmt := newTestEngine(t, store)
	e.cfg.RequestTimeout = 5 * time.Second

	started := make(chan struct{})
	release := make(chan struct{})
	rmt.On("GetSettings", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil, nil).Once()

	done := make(chan *Result)
	go func() {
		res, _ := e.PullSettings(ctx)
		done <- res
	}()

	<-started
	assert.True(t, e.State().IsSyncing)

	res, err := e.PullConversations(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Success)

	close(release)
	first := <-done
	assert.True(t, first.Success)
	assert.False(t, e.State().IsSyncing)
	assert.Equal(t, 1, e.Stats().TotalSkipped)
	rmt.AssertNotCalled(t, "ListConversations", mock.Anything)
}

func TestEngine_SyncAllFirstRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, rmt := newTestEngine(t, store)

	t1 := testNow.Add(-time.Hour)
	withMessages := chat.Conversation{ID: "m", CreatedAt: t1, UpdatedAt: t1,
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi", Timestamp: t1}}}
	empty := chat.Conversation{ID: "empty", CreatedAt: t1, UpdatedAt: t1}
	require.NoError(t, store.PutConversation(ctx, withMessages))
	require.NoError(t, store.PutConversation(ctx, empty))

	rmt.On("GetSettings", mock.Anything).Return(&chat.SettingsRecord{
		ModelID:     "anthropic/claude-3-haiku",
		Temperature: 1.2,
		LastUpdated: ts(t1),
		SyncSource:  "discord",
	}, nil)

	rmt.On("Sync", mock.Anything, mock.MatchedBy(func(req sync.SyncRequest) bool {
		return len(req.Conversations) == 1 &&
			req.Conversations[0].ID == "m" &&
			req.Conversations[0].SyncSource == "local" &&
			req.LastSyncTime == nil &&
			req.UserSettings != nil &&
			req.UserSettings.Temperature == 1.2 &&
			req.UserSettings.SyncSource == "local"
	})).Return(&sync.SyncResponse{
		Success: true,
		// эхо нашей же отправки
		UserSettings: &chat.SettingsRecord{Temperature: 1.2, LastUpdated: ts(t1), SyncSource: "local"},
	}, nil)

	rmt.On("ListConversations", mock.Anything).Return(&remote.ConversationBatch{
		Conversations: []chat.ConversationRecord{
			{ID: "r", Title: "from bot", CreatedAt: t1, UpdatedAt: t1, SyncSource: "discord"},
		},
	}, nil)

	res, err := e.SyncAll(ctx)
	require.NoError(t, err)
	require.True(t, res.Success, res.Err)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, res.Pulled)
	assert.True(t, res.SettingsApplied)

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-haiku", got.ModelID)
	assert.Equal(t, 1.2, got.Temperature)

	_, err = store.GetConversation(ctx, "r")
	assert.NoError(t, err)
	rmt.AssertExpectations(t)
}

func TestEngine_SyncAllOmitsUntouchedDefaults(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, rmt := newTestEngine(t, store)

	rmt.On("GetSettings", mock.Anything).Return(nil, nil)
	rmt.On("Sync", mock.Anything, mock.MatchedBy(func(req sync.SyncRequest) bool {
		return req.UserSettings == nil
	})).Return(&sync.SyncResponse{Success: true}, nil)
	rmt.On("ListConversations", mock.Anything).Return(&remote.ConversationBatch{}, nil)

	res, err := e.SyncAll(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success, res.Err)

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.LastUpdated)

	firstRun, err := e.IsFirstRun(ctx)
	require.NoError(t, err)
	assert.True(t, firstRun)
	rmt.AssertExpectations(t)
}

// settingsServer хранит настройки по правилу сервера: запись без метки
// времени или не новее сохраненной отбрасывается.
type settingsServer struct {
	MockRemote
	stored *chat.SettingsRecord
}

func (s *settingsServer) GetSettings(_ context.Context) (*chat.SettingsRecord, error) {
	return s.stored, nil
}

func (s *settingsServer) Sync(_ context.Context, req sync.SyncRequest) (*sync.SyncResponse, error) {
	if in := req.UserSettings; in != nil {
		switch {
		case s.stored == nil || s.stored.LastUpdated == nil:
			s.stored = in
		case in.LastUpdated != nil && in.LastUpdated.After(*s.stored.LastUpdated):
			s.stored = in
		}
	}
	return &sync.SyncResponse{Success: true, UserSettings: s.stored}, nil
}

func (s *settingsServer) ListConversations(_ context.Context) (*remote.ConversationBatch, error) {
	return &remote.ConversationBatch{}, nil
}

func TestEngine_SyncAllReinstallKeepsServerSettings(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	cfg, err := MergeConfig(Config{RequestTimeout: time.Second})
	require.NoError(t, err)
	// настройки когда-то отправила другая установка этого же клиента
	srv := &settingsServer{stored: &chat.SettingsRecord{
		ModelID:     "anthropic/claude-3-haiku",
		Temperature: 1.2,
		Character:   str("Alice"),
		LastUpdated: ts(testNow.Add(-24 * time.Hour)),
		SyncSource:  "local",
	}}
	e := NewEngine(store, srv, &fakeAuth{authenticated: true}, cfg, slog.Default())
	e.now = func() time.Time { return testNow }

	res, err := e.SyncAll(ctx)
	require.NoError(t, err)
	require.True(t, res.Success, res.Err)
	assert.False(t, res.SettingsApplied)

	require.NotNil(t, srv.stored)
	assert.Equal(t, 1.2, srv.stored.Temperature)
	assert.Equal(t, "anthropic/claude-3-haiku", srv.stored.ModelID)
	require.NotNil(t, srv.stored.Character)
	assert.Equal(t, "Alice", *srv.stored.Character)

	// повторный цикл тоже ничего не перезаписывает
	_, err = e.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.2, srv.stored.Temperature)
}

func TestEngine_PushConversationsAppliesReturnedSettings(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, rmt := newTestEngine(t, store)

	saveLocalSettings(t, store, func(s *chat.Settings) { s.LastUpdated = ts(testNow.Add(-time.Hour)) })

	rmt.On("Sync", mock.Anything, mock.MatchedBy(func(req sync.SyncRequest) bool {
		return len(req.Conversations) == 0 && req.UserSettings == nil
	})).Return(&sync.SyncResponse{
		Success:      true,
		UserSettings: &chat.SettingsRecord{ModelID: "x/y", Temperature: 0.1, LastUpdated: ts(testNow), SyncSource: "remote"},
	}, nil)

	res, err := e.PushConversations(ctx, []chat.Conversation{{ID: "no-messages"}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.SettingsApplied)
	require.NotNil(t, res.Settings)
	assert.Equal(t, 0.1, res.Settings.Temperature)
}

func TestEngine_PushSettings(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, rmt := newTestEngine(t, store)

	saveLocalSettings(t, store, func(s *chat.Settings) { s.LastUpdated = ts(testNow) })
	local, err := store.GetSettings(ctx)
	require.NoError(t, err)

	rmt.On("PutSettings", mock.Anything, mock.MatchedBy(func(rec chat.SettingsRecord) bool {
		return rec.SyncSource == "local"
	})).Return(&chat.SettingsRecord{LastUpdated: ts(testNow), SyncSource: "local"}, nil)

	res, err := e.PushSettings(ctx, local)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.SettingsApplied)
}

// failingStore отказывает в сохранении одной беседы
type failingStore struct {
	*storage.MemoryStore
	failID string
}

func (f *failingStore) UpdateConversation(ctx context.Context, id string, fn storage.ConversationUpdate) (bool, error) {
	if id == f.failID {
		return false, errors.New("disk full")
	}
	return f.MemoryStore.UpdateConversation(ctx, id, fn)
}

func TestEngine_StoreFailureDoesNotAbortMerge(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), failID: "bad"}
	e, rmt := newTestEngine(t, store)

	rmt.On("ListConversations", mock.Anything).Return(&remote.ConversationBatch{
		Conversations: []chat.ConversationRecord{
			{ID: "bad", CreatedAt: testNow, UpdatedAt: testNow},
			{ID: "good", CreatedAt: testNow, UpdatedAt: testNow},
		},
	}, nil)

	res, err := e.PullConversations(ctx)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "disk full")
	assert.Equal(t, 1, res.Pulled)

	_, err = store.GetConversation(ctx, "good")
	assert.NoError(t, err)
}

func TestEngine_SubscribeReceivesCursor(t *testing.T) {
	store := storage.NewMemoryStore()
	e, rmt := newTestEngine(t, store)
	rmt.On("GetSettings", mock.Anything).Return(nil, nil)

	updates, unsubscribe := e.Subscribe()
	defer unsubscribe()

	_, err := e.PullSettings(context.Background())
	require.NoError(t, err)

	assert.True(t, (<-updates).IsSyncing)
	last := <-updates
	assert.False(t, last.IsSyncing)
	assert.NotNil(t, last.LastSyncTime)
}
