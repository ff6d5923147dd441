package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"chatsync/internal/app/server/config"
	"chatsync/internal/infrastructure/storage/postgres"
	"chatsync/internal/utils/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "chatsync-server",
	Short:         "Сервер синхронизации бесед и настроек chatsync",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap загружает конфигурацию, логгер и подключение к базе
func bootstrap(ctx context.Context) (*config.Config, *slog.Logger, *postgres.Storage, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	log := logger.New(cfg.Env)

	storage, err := postgres.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ошибка подключения к базе: %w", err)
	}
	return cfg, log, storage, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "путь к .env файлу")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}
