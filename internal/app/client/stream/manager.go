package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Manager выдает сборщики, не более одного активного на беседу
type Manager struct {
	store Persister
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	active map[string]*Assembler
}

func NewManager(store Persister, log *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		log:    log,
		now:    time.Now,
		active: make(map[string]*Assembler),
	}
}

// Begin запускает сборщик для беседы.
// Если по беседе уже идет поток, возвращает ErrStreamActive.
func (m *Manager) Begin(convID string) (*Assembler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[convID]; ok {
		m.log.Error("stream already active", slog.String("conversation", convID))
		return nil, fmt.Errorf("%w: %s", ErrStreamActive, convID)
	}

	a := newAssembler(convID, m.store, m.log, m.now)
	a.release = func() { m.releaseAssembler(a) }
	if err := a.Start(); err != nil {
		return nil, err
	}
	m.active[convID] = a
	return a, nil
}

// Active возвращает текущий сборщик беседы
func (m *Manager) Active(convID string) (*Assembler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.active[convID]
	return a, ok
}

// CancelAll отменяет все активные потоки
func (m *Manager) CancelAll(ctx context.Context) {
	m.mu.Lock()
	list := make([]*Assembler, 0, len(m.active))
	for _, a := range m.active {
		list = append(list, a)
	}
	m.mu.Unlock()

	for _, a := range list {
		if err := a.Cancel(ctx); err != nil {
			m.log.Warn("cancelling stream",
				slog.String("conversation", a.ConversationID()),
				slog.String("error", err.Error()))
		}
	}
}

func (m *Manager) releaseAssembler(a *Assembler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.active[a.convID]; ok && cur == a {
		delete(m.active, a.convID)
	}
}
