// Package syncer синхронизирует локальные данные с сервисом-компаньоном.
package syncer

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/scylladb/go-set/strset"
	"golang.org/x/exp/slog"

	"chatsync/internal/app/client/remote"
	"chatsync/internal/app/client/storage"
	"chatsync/internal/domain/chat"
	"chatsync/internal/domain/sync"
	"chatsync/internal/pkg/notify"
)

// lastSyncKey ключ, под которым хранится время последней успешной синхронизации
const lastSyncKey = "sync.last_sync_time"

// Remote операции сервера, нужные движку
type Remote interface {
	GetSettings(ctx context.Context) (*chat.SettingsRecord, error)
	PutSettings(ctx context.Context, rec chat.SettingsRecord) (*chat.SettingsRecord, error)
	ListConversations(ctx context.Context) (*remote.ConversationBatch, error)
	Sync(ctx context.Context, req sync.SyncRequest) (*sync.SyncResponse, error)
}

// Cursor состояние синхронизации
type Cursor struct {
	LastSyncTime *time.Time `json:"last_sync_time"`
	IsSyncing    bool       `json:"is_syncing"`
	LastError    string     `json:"last_error,omitempty"`
}

// Stats статистика синхронизации
type Stats struct {
	TotalSyncs      int           `json:"total_syncs"`
	TotalFailures   int           `json:"total_failures"`
	TotalSkipped    int           `json:"total_skipped"`
	TotalPushed     int           `json:"total_pushed"`
	TotalPulled     int           `json:"total_pulled"`
	LastSuccessful  time.Time     `json:"last_successful"`
	LastFailed      time.Time     `json:"last_failed"`
	AvgSyncDuration time.Duration `json:"avg_sync_duration"`
}

// Result результат одной операции.
// Skipped означает, что другая операция уже выполнялась и эта отброшена.
type Result struct {
	Success         bool
	Skipped         bool
	Pushed          int
	Pulled          int
	Rejected        int
	SettingsApplied bool
	Err             string
	Settings        *chat.Settings
	Conversations   []chat.Conversation
	Duration        time.Duration
}

// Engine выполняет push/pull и применяет решения резолвера к хранилищу.
// Одновременно выполняется не больше одной операции.
type Engine struct {
	store  storage.Store
	remote Remote
	auth   remote.AuthProvider
	cfg    Config
	log    *slog.Logger
	now    func() time.Time

	mu     gosync.Mutex
	cursor Cursor
	stats  Stats
	hub    *notify.Hub[Cursor]
}

// NewEngine создает движок и восстанавливает время последней синхронизации
func NewEngine(store storage.Store, rmt Remote, auth remote.AuthProvider, cfg Config, log *slog.Logger) *Engine {
	e := &Engine{
		store:  store,
		remote: rmt,
		auth:   auth,
		cfg:    cfg,
		log:    log.With("component", "sync_engine"),
		now:    time.Now,
		hub:    notify.NewHub[Cursor](16),
	}

	raw, ok, err := store.GetString(context.Background(), lastSyncKey)
	switch {
	case err != nil:
		e.log.Warn("не удалось прочитать время последней синхронизации", "error", err)
	case ok:
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			e.cursor.LastSyncTime = &ts
		}
	}
	return e
}

// State возвращает снимок курсора
func (e *Engine) State() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Stats возвращает копию статистики
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Subscribe подписка на изменения курсора
func (e *Engine) Subscribe() (<-chan Cursor, func()) {
	return e.hub.Subscribe()
}

// IsFirstRun true, пока локально не сохранялась метка времени настроек
func (e *Engine) IsFirstRun(ctx context.Context) (bool, error) {
	saved, err := e.store.HasSavedSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("check saved settings: %w", err)
	}
	return !saved, nil
}

// PushConversations отправляет беседы, в которых есть хотя бы одно сообщение.
// Возвращенные сервером настройки проходят через резолвер.
func (e *Engine) PushConversations(ctx context.Context, convs []chat.Conversation) (*Result, error) {
	return e.run(ctx, "push_conversations", func(ctx context.Context, res *Result) error {
		firstRun, err := e.IsFirstRun(ctx)
		if err != nil {
			return err
		}
		outgoing := pushable(convs)
		resp, err := e.remote.Sync(ctx, sync.SyncRequest{
			Conversations: outgoing,
			LastSyncTime:  e.State().LastSyncTime,
		})
		if err != nil {
			return err
		}
		res.Pushed = len(outgoing)
		return e.applyReturnedSettings(ctx, resp.UserSettings, firstRun, res)
	})
}

// PushSettings отправляет настройки через PUT /settings
func (e *Engine) PushSettings(ctx context.Context, settings chat.Settings) (*Result, error) {
	return e.run(ctx, "push_settings", func(ctx context.Context, res *Result) error {
		firstRun, err := e.IsFirstRun(ctx)
		if err != nil {
			return err
		}
		stored, err := e.remote.PutSettings(ctx, e.outgoingSettings(settings))
		if err != nil {
			return err
		}
		return e.applyReturnedSettings(ctx, stored, firstRun, res)
	})
}

// PullSettings загружает настройки с сервера и применяет их по правилам резолвера
func (e *Engine) PullSettings(ctx context.Context) (*Result, error) {
	return e.run(ctx, "pull_settings", func(ctx context.Context, res *Result) error {
		firstRun, err := e.IsFirstRun(ctx)
		if err != nil {
			return err
		}
		rec, err := e.remote.GetSettings(ctx)
		if err != nil {
			return err
		}
		return e.applyReturnedSettings(ctx, rec, firstRun, res)
	})
}

// PullConversations загружает беседы и сливает их с локальными
func (e *Engine) PullConversations(ctx context.Context) (*Result, error) {
	return e.run(ctx, "pull_conversations", e.pullConversations)
}

// SyncAll полный цикл в одной операции: на первом запуске сначала
// забираются настройки, затем отправка через /sync и загрузка бесед.
func (e *Engine) SyncAll(ctx context.Context) (*Result, error) {
	return e.run(ctx, "sync_all", func(ctx context.Context, res *Result) error {
		firstRun, err := e.IsFirstRun(ctx)
		if err != nil {
			return err
		}

		if firstRun {
			rec, err := e.remote.GetSettings(ctx)
			if err != nil {
				return err
			}
			if err := e.applyReturnedSettings(ctx, rec, true, res); err != nil {
				return err
			}
		}

		local, err := e.store.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("read local settings: %w", err)
		}

		convs, err := e.store.ListConversations(ctx)
		if err != nil {
			return fmt.Errorf("read local conversations: %w", err)
		}
		outgoing := pushable(convs)

		// настройки без метки времени никто не менял: это значения по умолчанию,
		// и они не должны перезаписать сохраненные на сервере
		var settingsRec *chat.SettingsRecord
		if local.LastUpdated != nil {
			rec := e.outgoingSettings(local)
			settingsRec = &rec
		} else {
			e.log.Debug("локальные настройки не менялись, отправка пропущена")
		}

		resp, err := e.remote.Sync(ctx, sync.SyncRequest{
			Conversations: outgoing,
			LastSyncTime:  e.State().LastSyncTime,
			UserSettings:  settingsRec,
		})
		if err != nil {
			return err
		}
		res.Pushed = len(outgoing)

		if err := e.applyReturnedSettings(ctx, resp.UserSettings, firstRun, res); err != nil {
			return err
		}
		return e.pullConversations(ctx, res)
	})
}

// ApplyUserSettings применяет удаленные настройки по решению резолвера.
// Возвращает true, если локальная запись изменилась.
func (e *Engine) ApplyUserSettings(ctx context.Context, rec chat.SettingsRecord, isFirstRun bool) (bool, error) {
	if err := rec.Validate(); err != nil {
		e.log.Warn("отклонены некорректные настройки с сервера", "error", err)
		return false, err
	}

	remoteSettings := rec.ToSettings()
	applied := false
	_, err := e.store.UpdateSettings(ctx, func(local *chat.Settings) error {
		decision := Resolve(local.Stamp(), remoteSettings.Stamp(), isFirstRun)
		e.log.Debug("разрешение настроек",
			"decision", decision,
			"first_run", isFirstRun,
			"remote_source", remoteSettings.SyncSource,
		)
		if decision == KeepLocal {
			return errKeepLocal
		}
		*local = MergeSettings(*local, remoteSettings, isFirstRun, e.now())
		applied = true
		return nil
	})
	if errors.Is(err, errKeepLocal) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("save settings: %w", err)
	}
	return applied, nil
}

// errKeepLocal отменяет транзакцию, когда писать нечего
var errKeepLocal = errors.New("keep local")

func (e *Engine) applyReturnedSettings(ctx context.Context, rec *chat.SettingsRecord, firstRun bool, res *Result) error {
	if rec == nil {
		return nil
	}
	applied, err := e.ApplyUserSettings(ctx, *rec, firstRun)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRecord) {
			return &remote.DecodeError{Err: err}
		}
		return err
	}
	if applied {
		res.SettingsApplied = true
		settings, err := e.store.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		res.Settings = &settings
	}
	return nil
}

func (e *Engine) pullConversations(ctx context.Context, res *Result) error {
	batch, err := e.remote.ListConversations(ctx)
	if err != nil {
		return err
	}

	seen := strset.New()
	var saveErrs []error
	for _, rec := range batch.Conversations {
		if seen.Has(rec.ID) {
			e.log.Warn("дубликат беседы в ответе сервера", "id", rec.ID)
			continue
		}
		seen.Add(rec.ID)

		incoming := rec.ToConversation()
		var merged *chat.Conversation
		changed, err := e.store.UpdateConversation(ctx, rec.ID, func(local *chat.Conversation) (*chat.Conversation, error) {
			merged = MergeConversation(local, incoming, e.now())
			return merged, nil
		})
		if err != nil {
			e.log.Error("ошибка сохранения беседы", "id", rec.ID, "error", err)
			saveErrs = append(saveErrs, fmt.Errorf("save conversation %s: %w", rec.ID, err))
			continue
		}
		if changed && merged != nil {
			res.Pulled++
			res.Conversations = append(res.Conversations, *merged)
		}
	}
	res.Rejected += len(batch.Skipped)

	return errors.Join(saveErrs...)
}

// outgoingSettings готовит локальные настройки к отправке
func (e *Engine) outgoingSettings(s chat.Settings) chat.SettingsRecord {
	s.SyncSource = chat.SourceLocal
	return chat.NewSettingsRecord(s)
}

// run выполняет операцию под защитой флага isSyncing
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, res *Result) error) (*Result, error) {
	if e.auth == nil || !e.auth.IsAuthenticated() {
		return nil, remote.ErrNotAuthenticated
	}

	e.mu.Lock()
	if e.cursor.IsSyncing {
		e.stats.TotalSkipped++
		e.mu.Unlock()
		e.log.Debug("синхронизация уже выполняется, запрос отброшен", "op", op)
		return &Result{Skipped: true}, nil
	}
	e.cursor.IsSyncing = true
	snapshot := e.cursor
	e.mu.Unlock()
	e.hub.Publish(snapshot)

	start := e.now()
	res := &Result{}

	opCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	err := fn(opCtx, res)
	cancel()

	res.Duration = e.now().Sub(start)
	e.finish(res, err, op)
	if errors.Is(err, remote.ErrNotAuthenticated) {
		// сессия пропала между проверкой и запросом
		return nil, err
	}
	return res, nil
}

func (e *Engine) finish(res *Result, err error, op string) {
	now := e.now()

	e.mu.Lock()
	e.cursor.IsSyncing = false
	e.stats.TotalSyncs++
	if err != nil {
		res.Err = err.Error()
		e.cursor.LastError = res.Err
		e.stats.TotalFailures++
		e.stats.LastFailed = now
	} else {
		res.Success = true
		ts := now.UTC()
		e.cursor.LastSyncTime = &ts
		e.cursor.LastError = ""
		e.stats.LastSuccessful = now
		e.stats.TotalPushed += res.Pushed
		e.stats.TotalPulled += res.Pulled
	}
	n := time.Duration(e.stats.TotalSyncs)
	e.stats.AvgSyncDuration = (e.stats.AvgSyncDuration*(n-1) + res.Duration) / n
	snapshot := e.cursor
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("синхронизация завершилась ошибкой", "op", op, "error", err, "duration", res.Duration)
	} else {
		e.log.Info("синхронизация завершена",
			"op", op,
			"pushed", res.Pushed,
			"pulled", res.Pulled,
			"settings_applied", res.SettingsApplied,
			"duration", res.Duration,
		)
		if snapshot.LastSyncTime != nil {
			if serr := e.store.SetString(context.Background(), lastSyncKey, snapshot.LastSyncTime.Format(time.RFC3339Nano)); serr != nil {
				e.log.Warn("не удалось сохранить время синхронизации", "error", serr)
			}
		}
	}

	e.hub.Publish(snapshot)
}

// pushable оставляет беседы с сообщениями и помечает их как локальные
func pushable(convs []chat.Conversation) []chat.ConversationRecord {
	out := make([]chat.ConversationRecord, 0, len(convs))
	for _, c := range convs {
		if len(c.Messages) == 0 {
			continue
		}
		c.SyncSource = chat.SourceLocal
		out = append(out, chat.NewConversationRecord(c))
	}
	return out
}
