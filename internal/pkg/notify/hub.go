// Package notify рассылает события подписчикам через каналы.
package notify

import (
	"sync"
)

// Hub раздает события всем подписчикам.
// Публикация не блокируется: медленный подписчик теряет событие.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
	buffer int
}

// NewHub создает хаб с заданным размером буфера каналов
func NewHub[T any](buffer int) *Hub[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub[T]{
		subs:   make(map[int]chan T),
		buffer: buffer,
	}
}

// Subscribe возвращает канал событий и функцию отписки
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

// Publish отправляет событие всем подписчикам
func (h *Hub[T]) Publish(ev T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close закрывает все каналы подписчиков
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
