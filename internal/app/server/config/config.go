package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultRunAddress = ":8080"
	defaultMigrations = "migrations/server"
	defaultLogLevel   = "info"
)

type Config struct {
	Env    string
	DB     db
	Server server
	Logger logger
}

type db struct {
	DatabaseURI string
	Migrations  string
}

type server struct {
	RunAddress      string
	ShutdownTimeout time.Duration
}

type logger struct {
	LogLevel string
}

// Load читает конфигурацию сервера из .env и переменных окружения.
// envFile может быть пустым: тогда ищется .env в текущем каталоге.
func Load(envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", defaultRunAddress)
	v.SetDefault("migrations_path", defaultMigrations)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("shutdown_timeout_seconds", 10)

	cfg := &Config{
		Env: v.GetString("app_env"),
		DB: db{
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: server{
			RunAddress:      v.GetString("run_address"),
			ShutdownTimeout: time.Duration(v.GetInt("shutdown_timeout_seconds")) * time.Second,
		},
		Logger: logger{LogLevel: v.GetString("log_level")},
	}

	if cfg.DB.DatabaseURI == "" {
		return nil, errors.New("database_uri не задан")
	}
	switch cfg.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return nil, fmt.Errorf("неизвестное окружение app_env: %q", cfg.Env)
	}
	return cfg, nil
}

// MustLoad как Load, но завершает процесс при ошибке
func MustLoad(envFile string) *Config {
	cfg, err := Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("ошибка загрузки %s: %w", path, err)
	}
	return nil
}
