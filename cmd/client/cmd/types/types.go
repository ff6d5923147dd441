package types

import (
	"errors"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"chatsync/internal/app/client"
	"chatsync/internal/app/client/config"
)

type contextKey string

// RuntimeKey ключ контекста команды, под которым лежит Runtime
const RuntimeKey contextKey = "runtime"

// AnnotationFileLog включает запись логов в файл с ротацией
const AnnotationFileLog = "file_log"

var ErrNotInitialized = errors.New("приложение не инициализировано")

// Runtime общее окружение команд клиента
type Runtime struct {
	App    *client.App
	Config *config.Config
	Loader *config.Loader
	Log    *slog.Logger
	JSON   bool

	closers []io.Closer
}

// OnClose регистрирует ресурс, закрываемый после команды
func (r *Runtime) OnClose(c io.Closer) {
	r.closers = append(r.closers, c)
}

// Close закрывает ресурсы в обратном порядке
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// FromCommand достает Runtime из контекста команды
func FromCommand(cmd *cobra.Command) (*Runtime, error) {
	rt, ok := cmd.Context().Value(RuntimeKey).(*Runtime)
	if !ok || rt == nil || rt.App == nil {
		return nil, ErrNotInitialized
	}
	return rt, nil
}
