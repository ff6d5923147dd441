// Package stream собирает ответ модели из потока фрагментов.
package stream

import (
	"chatsync/internal/domain/chat"
)

// Chunk фрагмент потока: приращение текста или итоговые данные о расходе
type Chunk struct {
	Delta     string
	Reasoning string
	Usage     *chat.Usage
}

// Source поток фрагментов ответа. Recv возвращает io.EOF после последнего фрагмента.
type Source interface {
	Recv() (Chunk, error)
	Close() error
}
