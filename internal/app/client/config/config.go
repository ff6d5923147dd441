package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"chatsync/internal/app/client/syncer"
)

const (
	defaultServerURL     = "http://localhost:8080/api/v1"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".chatsync"
	defaultOpenRouterURL = "https://openrouter.ai/api/v1"
)

type Config struct {
	Env       string `mapstructure:"app_env"`
	ServerURL string `mapstructure:"server_url"`
	LogLevel  string `mapstructure:"log_level"`
	ConfigDir string `mapstructure:"config_dir"`
	TokenPath string `mapstructure:"token_path"`
	DataPath  string `mapstructure:"data_path"`
	LogFile   string `mapstructure:"log_file"`

	SyncInterval   time.Duration
	SyncDebounce   time.Duration
	StartupDelay   time.Duration
	RequestTimeout time.Duration

	OpenRouterAPIKey  string `mapstructure:"openrouter_api_key"`
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url"`
}

// Loader читает конфигурацию из файла, .env и переменных окружения
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load загружает конфигурацию клиента. Пустой cfgFile означает поиск
// config.yaml в каталоге конфигурации и текущем каталоге.
func (l *Loader) Load(cfgFile string) (*Config, error) {
	loadDotEnv()

	v := l.v
	v.AutomaticEnv()

	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("server_url", defaultServerURL)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("config_dir", defaultConfigDir)
	v.SetDefault("sync_interval_seconds", 300)
	v.SetDefault("sync_debounce_ms", 2000)
	v.SetDefault("sync_startup_delay_ms", 1500)
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("openrouter_base_url", defaultOpenRouterURL)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(resolveDir(v.GetString("config_dir")))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения конфигурации: %w", err)
		}
	}

	return l.build()
}

// Watch следит за файлом конфигурации и передает новую версию в onChange
func (l *Loader) Watch(log *slog.Logger, onChange func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config file changed",
			slog.String("file", e.Name),
			slog.String("op", e.Op.String()))

		cfg, err := l.build()
		if err != nil {
			log.Warn("config reload rejected", slog.String("error", err.Error()))
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

// ConfigFileUsed путь к прочитанному файлу конфигурации
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) build() (*Config, error) {
	v := l.v

	configDir := resolveDir(v.GetString("config_dir"))
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	cfg := &Config{
		Env:               v.GetString("app_env"),
		ServerURL:         v.GetString("server_url"),
		LogLevel:          v.GetString("log_level"),
		ConfigDir:         configDir,
		TokenPath:         pathOr(v.GetString("token_path"), configDir, "token"),
		DataPath:          pathOr(v.GetString("data_path"), configDir, "chatsync.db"),
		LogFile:           pathOr(v.GetString("log_file"), configDir, "chatsync.log"),
		SyncInterval:      time.Duration(v.GetInt("sync_interval_seconds")) * time.Second,
		SyncDebounce:      time.Duration(v.GetInt("sync_debounce_ms")) * time.Millisecond,
		StartupDelay:      time.Duration(v.GetInt("sync_startup_delay_ms")) * time.Millisecond,
		RequestTimeout:    time.Duration(v.GetInt("request_timeout_seconds")) * time.Second,
		OpenRouterAPIKey:  v.GetString("openrouter_api_key"),
		OpenRouterBaseURL: v.GetString("openrouter_base_url"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url должен быть абсолютным http(s) адресом: %q", c.ServerURL)
	}
	if c.SyncInterval < 0 || c.SyncDebounce < 0 || c.StartupDelay < 0 || c.RequestTimeout < 0 {
		return errors.New("интервалы синхронизации не могут быть отрицательными")
	}
	return nil
}

// Sync параметры планировщика. Нулевые значения заменяются значениями по умолчанию.
func (c *Config) Sync() (syncer.Config, error) {
	return syncer.MergeConfig(syncer.Config{
		Interval:       c.SyncInterval,
		Debounce:       c.SyncDebounce,
		StartupDelay:   c.StartupDelay,
		RequestTimeout: c.RequestTimeout,
	})
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}

func loadDotEnv() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Ошибка загрузки .env файла: %v\n", err)
		}
		return
	}
}

// resolveDir относительный каталог конфигурации считается от домашнего
func resolveDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return dir
	}
	return filepath.Join(home, dir)
}

func pathOr(value, dir, name string) string {
	if value != "" {
		return value
	}
	return filepath.Join(dir, name)
}
