package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/internal/app/client/syncer"
	"chatsync/internal/domain/chat"
	"chatsync/internal/domain/sync"
)

type noSession struct{}

func (noSession) IsAuthenticated() bool { return false }

type idleSyncer struct{}

func (idleSyncer) SyncAll(context.Context) (*syncer.Result, error) {
	return &syncer.Result{Success: true}, nil
}

func TestSetSetting(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		check   func(t *testing.T, s chat.Settings)
		wantErr bool
	}{
		{
			name: "temperature", key: "temperature", value: "1.3",
			check: func(t *testing.T, s chat.Settings) { assert.Equal(t, 1.3, s.Temperature) },
		},
		{
			name: "bool", key: "web_search_enabled", value: "true",
			check: func(t *testing.T, s chat.Settings) { assert.True(t, s.WebSearchEnabled) },
		},
		{
			name: "text", key: "character", value: "Alice",
			check: func(t *testing.T, s chat.Settings) {
				require.NotNil(t, s.Character)
				assert.Equal(t, "Alice", *s.Character)
			},
		},
		{
			name: "empty text clears", key: "system_message", value: " ",
			check: func(t *testing.T, s chat.Settings) { assert.Nil(t, s.SystemMessage) },
		},
		{name: "unknown key", key: "colour", value: "red", wantErr: true},
		{name: "bad number", key: "max_tokens", value: "many", wantErr: true},
		{name: "bad effort", key: "reasoning_effort", value: "extreme", wantErr: true},
		{name: "empty model", key: "model_id", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := chat.DefaultSettings()
			s.SystemMessage = strPtr("be brief")
			err := SetSetting(&s, tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}

	assert.ErrorIs(t, SetSetting(&chat.Settings{}, "colour", "red"), ErrUnknownSetting)
	assert.Contains(t, SettingKeys(), "temperature")
}

func strPtr(s string) *string { return &s }

func TestApp_UpdateSettingsStampsEdit(t *testing.T) {
	app, store := newTestApp(t, "http://127.0.0.1:1", nil)
	edited := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	app.now = func() time.Time { return edited }
	ctx := context.Background()

	cfg := syncer.Config{Interval: time.Hour, Debounce: time.Hour, StartupDelay: time.Hour, RequestTimeout: time.Second}
	scheduler := syncer.NewScheduler(ctx, idleSyncer{}, noSession{}, store, cfg, app.log)
	defer scheduler.Stop()

	got, err := app.UpdateSettings(ctx, func(s *chat.Settings) error {
		return SetSetting(s, "temperature", "1.1")
	})
	require.NoError(t, err)
	require.NotNil(t, got.LastUpdated)
	assert.True(t, got.LastUpdated.Equal(edited))
	assert.Equal(t, chat.SourceLocal, got.SyncSource)

	assert.Eventually(t, scheduler.Dirty, time.Second, 5*time.Millisecond)

	// удаленная запись старше правки проигрывает
	applied, err := app.engine.ApplyUserSettings(ctx, chat.SettingsRecord{
		ModelID:     "x/y",
		Temperature: 0.2,
		LastUpdated: ptrTime(edited.Add(-time.Minute)),
		SyncSource:  "remote",
	}, false)
	require.NoError(t, err)
	assert.False(t, applied)

	local, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.1, local.Temperature)

	// более новая выигрывает
	applied, err = app.engine.ApplyUserSettings(ctx, chat.SettingsRecord{
		ModelID:     "x/y",
		Temperature: 0.2,
		LastUpdated: ptrTime(edited.Add(time.Minute)),
		SyncSource:  "remote",
	}, false)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestApp_UpdateSettingsRejectsInvalid(t *testing.T) {
	app, store := newTestApp(t, "http://127.0.0.1:1", nil)
	ctx := context.Background()

	_, err := app.UpdateSettings(ctx, func(s *chat.Settings) error {
		s.Temperature = 9
		return nil
	})
	assert.ErrorIs(t, err, chat.ErrInvalidRecord)

	saved, err := store.HasSavedSettings(ctx)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestApp_PushSettings(t *testing.T) {
	var got sync.UpdateSettingsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/settings" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(sync.SettingsResponse{Settings: &got.UserSettings})
	}))
	defer srv.Close()

	app, _ := newTestApp(t, srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, app.tokens.Save("good.token"))

	_, err := app.UpdateSettings(ctx, func(s *chat.Settings) error {
		return SetSetting(s, "character", "Alice")
	})
	require.NoError(t, err)

	res, err := app.PushSettings(ctx)
	require.NoError(t, err)
	require.True(t, res.Success, res.Err)
	assert.False(t, res.SettingsApplied)

	require.NotNil(t, got.UserSettings.Character)
	assert.Equal(t, "Alice", *got.UserSettings.Character)
	assert.Equal(t, "local", got.UserSettings.SyncSource)
	assert.NotNil(t, got.UserSettings.LastUpdated)
}

func ptrTime(t time.Time) *time.Time { return &t }
