package syncer

import (
	"context"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"

	"chatsync/internal/app/client/storage"
	"chatsync/internal/domain/chat"
)

// Syncer выполняет полный цикл синхронизации
type Syncer interface {
	SyncAll(ctx context.Context) (*Result, error)
}

// Authenticator сообщает, активна ли сессия
type Authenticator interface {
	IsAuthenticated() bool
}

// ChangeSource источник событий об изменениях
type ChangeSource interface {
	Subscribe() (<-chan storage.ChangeEvent, func())
}

// Scheduler запускает синхронизацию по таймеру и после изменений.
//
// Все таймеры и события обрабатываются одной горутиной, поэтому флаг
// изменений и запуск синхронизации не требуют блокировок.
type Scheduler struct {
	syncer Syncer
	auth   Authenticator
	cfg    Config
	log    *slog.Logger

	events      <-chan storage.ChangeEvent
	unsubscribe func()

	dirty    atomic.Bool
	syncs    atomic.Int64
	cancel   context.CancelFunc
	done     chan struct{}
	wg       gosync.WaitGroup
	stopOnce gosync.Once
}

// NewScheduler подписывается на изменения и сразу запускает цикл.
// Первая синхронизация планируется через cfg.StartupDelay независимо от флага изменений.
func NewScheduler(ctx context.Context, syncer Syncer, auth Authenticator, changes ChangeSource, cfg Config, log *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	events, unsubscribe := changes.Subscribe()

	s := &Scheduler{
		syncer:      syncer,
		auth:        auth,
		cfg:         cfg,
		log:         log.With("component", "auto_sync"),
		events:      events,
		unsubscribe: unsubscribe,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info("Запуск автоматической синхронизации",
		"interval", cfg.Interval,
		"debounce", cfg.Debounce,
	)
	return s
}

// Dirty есть ли несинхронизированные изменения
func (s *Scheduler) Dirty() bool {
	return s.dirty.Load()
}

// Runs сколько раз запускалась синхронизация
func (s *Scheduler) Runs() int64 {
	return s.syncs.Load()
}

// Stop отменяет таймеры и отписывается от изменений.
// После возврата ни одна синхронизация не запустится.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		close(s.done)
		s.wg.Wait()
		s.unsubscribe()
		s.log.Info("Автоматическая синхронизация остановлена")
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	startup := time.NewTimer(s.cfg.StartupDelay)
	defer startup.Stop()
	startupC := startup.C

	// с go 1.23 Reset не оставляет в канале устаревших срабатываний
	debounce := time.NewTimer(s.cfg.Debounce)
	debounce.Stop()
	defer debounce.Stop()
	var debounceC <-chan time.Time

	events := s.events

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !tracked(ev) {
				continue
			}
			s.dirty.Store(true)
			debounce.Reset(s.cfg.Debounce)
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			s.trigger(ctx, "debounce")

		case <-startupC:
			startupC = nil
			s.trigger(ctx, "startup")

		case <-ticker.C:
			if s.dirty.Load() {
				s.trigger(ctx, "tick")
			}
		}
	}
}

// trigger запускает синхронизацию; ошибки логируются и не останавливают цикл
func (s *Scheduler) trigger(ctx context.Context, reason string) {
	select {
	case <-s.done:
		return
	default:
	}

	// сессия могла закончиться с момента планирования
	if !s.auth.IsAuthenticated() {
		s.log.Debug("нет активной сессии, синхронизация пропущена", "reason", reason)
		return
	}

	s.syncs.Add(1)
	res, err := s.syncer.SyncAll(ctx)
	switch {
	case err != nil:
		s.log.Warn("Ошибка автоматической синхронизации", "reason", reason, "error", err)
	case res == nil || res.Skipped:
		s.log.Debug("синхронизация уже выполняется", "reason", reason)
	case !res.Success:
		s.log.Warn("Ошибка автоматической синхронизации", "reason", reason, "error", res.Err)
	default:
		s.dirty.Store(false)
	}
}

// tracked отбирает пользовательские изменения настроек и бесед.
// Записи, сделанные самой синхронизацией, помечены как remote.
func tracked(ev storage.ChangeEvent) bool {
	if ev.Source == chat.SourceRemote {
		return false
	}
	switch ev.Kind {
	case storage.ChangeSettings, storage.ChangeConversation, storage.ChangeConversationDeleted:
		return true
	}
	return false
}
