// Package api собирает HTTP API сервера синхронизации.
//
//	GET    /api/v1/                    # Баннер (публичный)
//	GET    /api/v1/health              # Проверка состояния (публичный)
//	GET    /api/v1/settings            # Настройки пользователя (auth)
//	PUT    /api/v1/settings            # Замена настроек (auth)
//	GET    /api/v1/conversations       # Список бесед (auth)
//	POST   /api/v1/sync                # Слияние бесед и настроек (auth)
//	DELETE /api/v1/conversations/{id}  # Удаление беседы (auth)
package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	healthAPI "chatsync/internal/app/server/api/http/health"
	"chatsync/internal/app/server/api/http/middleware"
	"chatsync/internal/app/server/api/http/middleware/auth"
	"chatsync/internal/app/server/api/http/middleware/logger"
	syncAPI "chatsync/internal/app/server/api/http/sync"
	"chatsync/internal/domain/session"
	"chatsync/internal/domain/sync"
	"chatsync/internal/infrastructure/storage/postgres"
)

type Handlers struct {
	Health *healthAPI.Handler
	Sync   *syncAPI.Handler
}

// Services доменные сервисы, из которых собираются обработчики
type Services struct {
	Sessions session.Servicer
	Sync     sync.Servicer
}

// New создает *chi.Mux поверх хранилища PostgreSQL
func New(storage *postgres.Storage, log *slog.Logger) *chi.Mux {
	tokens := postgres.NewTokenRepository(storage.Pool(), log)
	syncRepo := postgres.NewSyncRepository(storage.Pool(), log)

	return NewRouter(Services{
		Sessions: session.NewService(tokens, log),
		Sync:     sync.NewService(syncRepo, log),
	}, log)
}

// NewRouter создает *chi.Mux со ВСЕМИ операциями через huma.Register
func NewRouter(services Services, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(chimw.Recoverer)

	config := huma.DefaultConfig("chatsync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(services, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(services Services, log *slog.Logger) *Handlers {
	authMW := auth.New(services.Sessions, log)
	loggerMW := logger.New(log)
	chain := middleware.NewChain(loggerMW.Middleware()).WithAuth(authMW.Middleware())

	return &Handlers{
		Health: healthAPI.NewHandler(log, chain.Public()),
		Sync:   syncAPI.NewHandler(services.Sync, log, chain.Protected()),
	}
}
