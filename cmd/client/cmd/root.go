// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"chatsync/cmd/client/cmd/auth"
	"chatsync/cmd/client/cmd/chat"
	"chatsync/cmd/client/cmd/conversations"
	"chatsync/cmd/client/cmd/settings"
	syncCmd "chatsync/cmd/client/cmd/sync"
	"chatsync/cmd/client/cmd/types"
	"chatsync/internal/app/client"
	"chatsync/internal/app/client/config"
	"chatsync/internal/utils/logger"
)

var (
	cfgFile    string
	debug      bool
	jsonOutput bool
	serverURL  string

	active *types.Runtime
)

var rootCmd = &cobra.Command{
	Use:   "chatsync",
	Short: "chatsync - чат-клиент с синхронизацией бесед и настроек",
	Long: `chatsync хранит беседы и настройки локально (SQLite) и синхронизирует
их с сервером chatsync. Ответы модели принимаются потоком через
OpenAI-совместимый API (OpenRouter).`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if active != nil {
		if cerr := active.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "Ошибка закрытия: %v\n", cerr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}

	rt := &types.Runtime{Config: cfg, Loader: loader, JSON: jsonOutput}

	var log *slog.Logger
	if cmd.Annotations[types.AnnotationFileLog] == "true" {
		var closer io.Closer
		log, closer = logger.NewWithFile(cfg.Env, cfg.LogFile)
		rt.OnClose(closer)
	} else {
		log = logger.NewLeveled(cfg.Env, level)
	}
	rt.Log = log

	app, err := client.New(cfg, log)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}
	rt.App = app
	rt.OnClose(app)

	active = rt
	cmd.SetContext(context.WithValue(cmd.Context(), types.RuntimeKey, rt))
	return nil
}

func init() {
	// Глобальные флаги
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "URL сервера chatsync (с /api/v1)")

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(syncCmd.SyncCmd)
	rootCmd.AddCommand(chat.ChatCmd)
	rootCmd.AddCommand(conversations.ConversationsCmd)
	rootCmd.AddCommand(settings.SettingsCmd)
	rootCmd.AddCommand(runCmd)
}
