package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"chatsync/internal/app/client/config"
	"chatsync/internal/app/client/remote"
	"chatsync/internal/app/client/storage"
	"chatsync/internal/app/client/stream"
	"chatsync/internal/app/client/syncer"
	"chatsync/internal/domain/chat"
)

var (
	ErrNoBackend     = errors.New("не задан ключ API модели (OPENROUTER_API_KEY)")
	ErrTokenRejected = errors.New("токен отклонен сервером")
)

const titleLimit = 48

// Backend открывает поток ответа модели
type Backend interface {
	Open(ctx context.Context, params chat.Params, history []chat.Message) (stream.Source, error)
}

// App связывает хранилище, клиент сервера, движок синхронизации и потоковую сборку ответов
type App struct {
	config  *config.Config
	log     *slog.Logger
	store   storage.Store
	tokens  *TokenStore
	remote  *remote.Client
	engine  *syncer.Engine
	streams *stream.Manager
	backend Backend
	syncCfg syncer.Config
	now     func() time.Time
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	syncCfg, err := cfg.Sync()
	if err != nil {
		return nil, fmt.Errorf("ошибка настроек синхронизации: %w", err)
	}

	// Локальное хранилище: SQLite, при ошибке память
	var store storage.Store
	sqliteStore, err := storage.NewSQLiteStore(cfg.DataPath, log)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		store = storage.NewMemoryStore()
	} else {
		store = sqliteStore
	}

	tokens := NewTokenStore(cfg.TokenPath)
	rmt := remote.New(cfg.ServerURL, tokens, syncCfg.RequestTimeout, log.With("component", "remote"))

	var backend Backend
	if cfg.OpenRouterAPIKey != "" {
		backend = stream.NewOpenAIClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL)
	}

	return newApp(cfg, log, store, tokens, rmt, backend, syncCfg), nil
}

func newApp(cfg *config.Config, log *slog.Logger, store storage.Store, tokens *TokenStore,
	rmt *remote.Client, backend Backend, syncCfg syncer.Config,
) *App {
	return &App{
		config:  cfg,
		log:     log,
		store:   store,
		tokens:  tokens,
		remote:  rmt,
		engine:  syncer.NewEngine(store, rmt, tokens, syncCfg, log),
		streams: stream.NewManager(store, log.With("component", "stream")),
		backend: backend,
		syncCfg: syncCfg,
		now:     time.Now,
	}
}

// Run запускает автосинхронизацию и работает до отмены ctx
func (a *App) Run(ctx context.Context) error {
	scheduler := syncer.NewScheduler(ctx, a.engine, a.tokens, a.store, a.syncCfg, a.log)
	defer scheduler.Stop()

	cursors, unsubscribe := a.engine.Subscribe()
	defer unsubscribe()

	a.log.Info("Клиент запущен",
		"server", a.config.ServerURL,
		"env", a.config.Env,
		"interval", a.syncCfg.Interval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("Клиент завершил работу")
			return nil
		case c, ok := <-cursors:
			if !ok {
				return nil
			}
			if c.IsSyncing {
				continue
			}
			if c.LastError != "" {
				a.log.Warn("Синхронизация не удалась", "error", c.LastError)
			} else if c.LastSyncTime != nil {
				a.log.Debug("Синхронизация завершена", "at", c.LastSyncTime.Format(time.RFC3339))
			}
		}
	}
}

// Close отменяет активные потоки и закрывает хранилище
func (a *App) Close() error {
	a.streams.CancelAll(context.Background())
	return a.store.Close()
}

// CheckConnection проверяет доступность сервера синхронизации
func (a *App) CheckConnection(ctx context.Context) error {
	return a.remote.HealthCheck(ctx)
}

func (a *App) IsAuthenticated() bool {
	return a.tokens.IsAuthenticated()
}

// Login сохраняет токен и проверяет его запросом настроек.
// Отклоненный токен удаляется, при недоступности сервера токен остается.
func (a *App) Login(ctx context.Context, token string) error {
	if err := a.tokens.Save(token); err != nil {
		return err
	}

	if _, err := a.remote.GetSettings(ctx); err != nil {
		var perr *remote.ProtocolError
		if errors.As(err, &perr) && (perr.Status == http.StatusUnauthorized || perr.Status == http.StatusForbidden) {
			if cerr := a.tokens.Clear(); cerr != nil {
				a.log.Warn("Не удалось удалить токен", "error", cerr)
			}
			return fmt.Errorf("%w: %s", ErrTokenRejected, perr.Body)
		}
		return fmt.Errorf("не удалось проверить токен: %w", err)
	}

	a.log.Info("Вход выполнен успешно")
	return nil
}

func (a *App) Logout() error {
	return a.tokens.Clear()
}

// Sync полный цикл синхронизации
func (a *App) Sync(ctx context.Context) (*syncer.Result, error) {
	return a.engine.SyncAll(ctx)
}

// Pull только загрузка: настройки, затем беседы
func (a *App) Pull(ctx context.Context) (*syncer.Result, error) {
	settings, err := a.engine.PullSettings(ctx)
	if err != nil || !settings.Success {
		return settings, err
	}

	convs, err := a.engine.PullConversations(ctx)
	if err != nil {
		return nil, err
	}
	convs.SettingsApplied = settings.SettingsApplied
	convs.Settings = settings.Settings
	convs.Duration += settings.Duration
	return convs, nil
}

func (a *App) SyncState() syncer.Cursor {
	return a.engine.State()
}

func (a *App) SyncStats() syncer.Stats {
	return a.engine.Stats()
}

func (a *App) Settings(ctx context.Context) (chat.Settings, error) {
	return a.store.GetSettings(ctx)
}

func (a *App) Conversations(ctx context.Context) ([]chat.Conversation, error) {
	return a.store.ListConversations(ctx)
}

func (a *App) Conversation(ctx context.Context, id string) (chat.Conversation, error) {
	return a.store.GetConversation(ctx, id)
}

// NewConversation создает пустую беседу с глобальными настройками
func (a *App) NewConversation(ctx context.Context, title string) (chat.Conversation, error) {
	now := a.now()
	conv := chat.Conversation{
		ID:         uuid.NewString(),
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncSource: chat.SourceLocal,
	}
	if err := a.store.PutConversation(ctx, conv); err != nil {
		return chat.Conversation{}, fmt.Errorf("ошибка создания беседы: %w", err)
	}
	return conv, nil
}

// DeleteConversation удаляет беседу локально и, при наличии сессии, на сервере.
// Отсутствие беседы на сервере ошибкой не считается.
func (a *App) DeleteConversation(ctx context.Context, id string) error {
	localErr := a.store.DeleteConversation(ctx, id)
	if localErr != nil && !errors.Is(localErr, storage.ErrNotFound) {
		return localErr
	}

	if !a.IsAuthenticated() {
		return localErr
	}

	err := a.remote.DeleteConversation(ctx, id)
	var perr *remote.ProtocolError
	if errors.As(err, &perr) && perr.Status == http.StatusNotFound {
		return localErr
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления на сервере: %w", err)
	}
	return nil
}

// SendMessage добавляет сообщение пользователя и получает ответ модели.
// onUpdate вызывается с промежуточным текстом, если в настройках включен потоковый вывод.
// Отмена ctx прерывает ответ: частичный текст сохраняется с пометкой об отмене.
func (a *App) SendMessage(ctx context.Context, convID, prompt string, onUpdate func(preview string)) (chat.Message, error) {
	if a.backend == nil {
		return chat.Message{}, ErrNoBackend
	}

	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return chat.Message{}, err
	}

	var conv chat.Conversation
	now := a.now()
	_, err = a.store.UpdateConversation(ctx, convID, func(cur *chat.Conversation) (*chat.Conversation, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: conversation %s", storage.ErrNotFound, convID)
		}
		next := cur.Clone()
		next.Messages = append(next.Messages, chat.Message{
			Role:      chat.RoleUser,
			Content:   prompt,
			Timestamp: now,
		})
		if next.Title == "" {
			next.Title = titleFrom(prompt)
		}
		next.SyncSource = chat.SourceLocal
		next.Touch(now)
		conv = next
		return &next, nil
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("ошибка сохранения сообщения: %w", err)
	}

	params := chat.Effective(settings, conv)
	asm, err := a.streams.Begin(conv.ID)
	if err != nil {
		return chat.Message{}, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	asm.Bind(cancel)

	stop := context.AfterFunc(ctx, func() {
		if err := asm.Cancel(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn("Не удалось сохранить прерванный ответ", "error", err)
		}
	})
	defer stop()

	src, err := a.backend.Open(streamCtx, params, conv.Messages)
	if err != nil {
		if cerr := asm.Cancel(context.WithoutCancel(ctx)); cerr != nil {
			a.log.Warn("Не удалось отменить поток", "error", cerr)
		}
		return chat.Message{}, fmt.Errorf("ошибка запроса к модели: %w", err)
	}

	if !params.Stream {
		onUpdate = nil
	}
	msg, err := asm.Run(ctx, src, onUpdate)
	if err != nil {
		return msg, err
	}
	if serr := asm.Err(); serr != nil {
		a.log.Warn("Ответ модели оборван", "conversation", conv.ID, "error", serr)
	}
	return msg, nil
}

func titleFrom(prompt string) string {
	if utf8.RuneCountInString(prompt) <= titleLimit {
		return prompt
	}
	runes := []rune(prompt)
	return string(runes[:titleLimit]) + "..."
}
