package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New создает логгер для окружения. Вывод идет в stderr,
// чтобы не смешиваться с выводом команд.
func New(env string) *slog.Logger {
	return newWithWriter(env, os.Stderr)
}

func newWithWriter(env string, w io.Writer) *slog.Logger {
	return newLeveled(env, levelFor(env), w)
}

// NewLeveled как New, но с явным уровнем из конфигурации ("debug", "info", "warn", "error").
// Неизвестный уровень заменяется уровнем окружения.
func NewLeveled(env, level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = levelFor(env)
	}
	return newLeveled(env, lvl, os.Stderr)
}

func newLeveled(env string, level slog.Level, w io.Writer) *slog.Logger {
	switch env {
	case EnvLocal, "":
		return slog.New(newPrettyHandler(w, level))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
}

// ParseLevel разбирает имя уровня логирования
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return lvl, nil
}

func setupPrettySlog() *slog.Logger {
	return slog.New(newPrettyHandler(os.Stderr, slog.LevelDebug))
}

func newPrettyHandler(w io.Writer, level slog.Level) *PrettyHandler {
	opts := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: level},
	}
	return opts.NewPrettyHandler(w)
}

func levelFor(env string) slog.Level {
	if env == EnvProd {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// FileOptions параметры ротации файла логов
type FileOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var defaultFileOptions = FileOptions{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28}

// NewWithFile пишет в консоль как New и дополнительно в JSON-файл с ротацией.
// Возвращаемый io.Closer закрывает файл.
func NewWithFile(env, path string) (*slog.Logger, io.Closer) {
	return newWithFile(env, path, os.Stderr, defaultFileOptions)
}

func newWithFile(env, path string, console io.Writer, opts FileOptions) (*slog.Logger, io.Closer) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	file := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: levelFor(env)})
	return slog.New(fanout{newWithWriter(env, console).Handler(), file}), rotator
}

// fanout рассылает записи в несколько обработчиков
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
