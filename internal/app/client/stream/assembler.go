package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"chatsync/internal/app/client/storage"
	"chatsync/internal/domain/chat"
)

var (
	ErrStreamActive = errors.New("stream already active for conversation")
	ErrNotStreaming = errors.New("assembler is not streaming")
	ErrCancelled    = errors.New("stream cancelled")
)

// CancelMarker дописывается к частичному ответу при отмене
const CancelMarker = "\n\n_Response cancelled by user._"

// State состояние сборщика
type State int

const (
	Idle State = iota
	Streaming
	Finalized
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Finalized:
		return "finalized"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Persister сохраняет готовое сообщение в беседу
type Persister interface {
	UpdateConversation(ctx context.Context, id string, fn storage.ConversationUpdate) (bool, error)
}

// Assembler собирает один ответ ассистента.
// Накопленный текст хранится без изменений, Preview досчитывается на лету.
type Assembler struct {
	convID  string
	store   Persister
	log     *slog.Logger
	now     func() time.Time
	release func()

	mu        sync.Mutex
	state     State
	raw       strings.Builder
	reasoning strings.Builder
	scan      *scanner
	usage     *chat.Usage
	started   time.Time
	cancel    context.CancelFunc
	err       error
}

func newAssembler(convID string, store Persister, log *slog.Logger, now func() time.Time) *Assembler {
	return &Assembler{
		convID: convID,
		store:  store,
		log:    log,
		now:    now,
		scan:   newScanner(),
	}
}

// Start переводит сборщик в Streaming с пустым сообщением-заглушкой
func (a *Assembler) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Idle {
		return fmt.Errorf("%w: %s", ErrStreamActive, a.convID)
	}
	a.state = Streaming
	a.started = a.now()
	return nil
}

// Ingest принимает очередной фрагмент
func (a *Assembler) Ingest(chunk Chunk) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.streamingLocked(); err != nil {
		return err
	}

	if chunk.Delta != "" {
		a.raw.WriteString(chunk.Delta)
		a.scan.feed(a.raw.String())
	}
	if chunk.Reasoning != "" {
		a.reasoning.WriteString(chunk.Reasoning)
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.usage = &u
	}
	return nil
}

// Finalize чистит текст и сохраняет сообщение в беседу
func (a *Assembler) Finalize(ctx context.Context) (chat.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.streamingLocked(); err != nil {
		return chat.Message{}, err
	}

	msg := a.messageLocked(a.scan.Cleanup(a.raw.String()))
	a.finishLocked(Finalized)

	if err := a.persist(ctx, msg); err != nil {
		return msg, err
	}
	a.log.Debug("stream finalized",
		slog.String("conversation", a.convID),
		slog.Int("length", len(msg.Content)))
	return msg, nil
}

// Cancel прерывает поток. Пустой ответ не сохраняется,
// непустой сохраняется с пометкой об отмене. После завершения ничего не делает.
func (a *Assembler) Cancel(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Streaming {
		return nil
	}

	empty := a.raw.Len() == 0
	msg := a.messageLocked(a.scan.Cleanup(a.raw.String()) + CancelMarker)
	a.finishLocked(Cancelled)

	if empty {
		a.log.Debug("stream cancelled before first chunk", slog.String("conversation", a.convID))
		return nil
	}
	return a.persist(ctx, msg)
}

// Run читает src до конца потока и завершает сборку.
// onUpdate получает промежуточный текст после каждого фрагмента.
func (a *Assembler) Run(ctx context.Context, src Source, onUpdate func(preview string)) (chat.Message, error) {
	defer func() {
		if err := src.Close(); err != nil {
			a.log.Debug("closing stream source", slog.String("error", err.Error()))
		}
	}()

	// сохранение не должно срываться из-за отмены запроса
	saveCtx := context.WithoutCancel(ctx)

	for {
		chunk, err := src.Recv()
		if errors.Is(err, io.EOF) {
			return a.Finalize(saveCtx)
		}
		if err != nil {
			return a.fail(saveCtx, err)
		}
		if err := a.Ingest(chunk); err != nil {
			return chat.Message{}, err
		}
		if onUpdate != nil && chunk.Delta != "" {
			onUpdate(a.Preview())
		}
	}
}

// Bind связывает сборщик с функцией отмены запроса к модели
func (a *Assembler) Bind(cancel context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancel = cancel
}

// fail обрабатывает обрыв потока: частичный ответ сохраняется, пустой отбрасывается
func (a *Assembler) fail(ctx context.Context, cause error) (chat.Message, error) {
	a.mu.Lock()
	if a.state == Cancelled {
		a.mu.Unlock()
		return chat.Message{}, ErrCancelled
	}
	a.err = cause
	empty := a.raw.Len() == 0
	if empty && a.state == Streaming {
		a.finishLocked(Cancelled)
	}
	a.mu.Unlock()

	if empty {
		return chat.Message{}, fmt.Errorf("receiving chunk: %w", cause)
	}

	a.log.Warn("stream interrupted, keeping partial response",
		slog.String("conversation", a.convID),
		slog.String("error", cause.Error()))
	return a.Finalize(ctx)
}

// Preview текст для показа во время потока
func (a *Assembler) Preview() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scan.Sanitize(a.raw.String())
}

// Snapshot текущее состояние сообщения-заглушки
func (a *Assembler) Snapshot() chat.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messageLocked(a.scan.Sanitize(a.raw.String()))
}

func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err ошибка, оборвавшая поток, если ответ сохранен частично
func (a *Assembler) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Assembler) ConversationID() string {
	return a.convID
}

func (a *Assembler) streamingLocked() error {
	switch a.state {
	case Streaming:
		return nil
	case Cancelled:
		return ErrCancelled
	default:
		return ErrNotStreaming
	}
}

func (a *Assembler) messageLocked(content string) chat.Message {
	msg := chat.Message{
		Role:      chat.RoleAssistant,
		Content:   content,
		Timestamp: a.started,
	}
	if a.reasoning.Len() > 0 {
		r := a.reasoning.String()
		msg.Reasoning = &r
	}
	if a.usage != nil {
		u := *a.usage
		msg.Usage = &u
	}
	return msg
}

func (a *Assembler) finishLocked(state State) {
	a.state = state
	if a.cancel != nil {
		a.cancel()
	}
	if a.release != nil {
		a.release()
		a.release = nil
	}
}

func (a *Assembler) persist(ctx context.Context, msg chat.Message) error {
	_, err := a.store.UpdateConversation(ctx, a.convID, func(cur *chat.Conversation) (*chat.Conversation, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", chat.ErrConversationMissing, a.convID)
		}
		next := cur.Clone()
		next.Messages = append(next.Messages, msg)
		next.SyncSource = chat.SourceLocal
		next.Touch(a.now())
		return &next, nil
	})
	if err != nil {
		return fmt.Errorf("saving assistant message: %w", err)
	}
	return nil
}
