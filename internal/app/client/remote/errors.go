package remote

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated запрос без активной сессии; сеть не трогается
var ErrNotAuthenticated = errors.New("not authenticated")

// TransportError ошибка соединения или таймаут
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError неуспешный статус или некорректное тело ответа
type ProtocolError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response (status %d): %v: %s", e.Op, e.Status, e.Err, e.Body)
	}
	return fmt.Sprintf("%s: server returned status %d: %s", e.Op, e.Status, e.Body)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// DecodeError ошибка разбора одной беседы из пакета
type DecodeError struct {
	Index int
	ID    string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("conversation %s (#%d): %v", e.ID, e.Index, e.Err)
	}
	return fmt.Sprintf("conversation #%d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
