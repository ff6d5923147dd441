package syncer

import (
	"fmt"
	"time"

	"dario.cat/mergo"
)

// Config параметры синхронизации
type Config struct {
	// Interval период проверки флага изменений
	Interval time.Duration `json:"interval"`
	// Debounce задержка после последнего изменения
	Debounce time.Duration `json:"debounce"`
	// StartupDelay задержка первой синхронизации после старта
	StartupDelay time.Duration `json:"startup_delay"`
	// RequestTimeout ограничение на одну операцию с сервером
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultConfig значения по умолчанию
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Minute,
		Debounce:       2 * time.Second,
		StartupDelay:   1500 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
	}
}

// MergeConfig дополняет пользовательские настройки значениями по умолчанию
func MergeConfig(user Config) (Config, error) {
	out := user
	if err := mergo.Merge(&out, DefaultConfig()); err != nil {
		return DefaultConfig(), fmt.Errorf("merge sync config: %w", err)
	}
	return out, nil
}
