package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatsync/cmd/client/cmd/types"
	"chatsync/internal/app/client/syncer"
)

var (
	syncStatus bool
	pullOnly   bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизация с сервером",
	Long: `Синхронизация бесед и настроек между клиентом и сервером.

Без флагов выполняет полный цикл: отправка локальных бесед и настроек,
разрешение конфликта настроек и загрузка бесед с сервера.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		if syncStatus {
			return showSyncStatus(cmd.Context(), rt)
		}
		return runSync(cmd.Context(), rt, pullOnly)
	},
}

func runSync(ctx context.Context, rt *types.Runtime, pull bool) error {
	if !rt.App.IsAuthenticated() {
		return fmt.Errorf("требуется аутентификация. Выполните: chatsync auth login")
	}

	var (
		result *syncer.Result
		err    error
	)
	if pull {
		fmt.Println("Загрузка с сервера...")
		result, err = rt.App.Pull(ctx)
	} else {
		fmt.Println("Синхронизация...")
		result, err = rt.App.Sync(ctx)
	}
	if err != nil {
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}

	if rt.JSON {
		return printJSON(map[string]any{
			"success":          result.Success,
			"skipped":          result.Skipped,
			"pushed":           result.Pushed,
			"pulled":           result.Pulled,
			"rejected":         result.Rejected,
			"settings_applied": result.SettingsApplied,
			"error":            result.Err,
			"duration_ms":      result.Duration.Milliseconds(),
		})
	}

	switch {
	case result.Skipped:
		color.Yellow("⚠️  Синхронизация уже выполняется, запрос пропущен")
		return nil
	case !result.Success:
		return fmt.Errorf("синхронизация не удалась: %s", result.Err)
	}

	fmt.Println()
	color.Green("✅ Синхронизация завершена!")
	fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
	if !pull {
		fmt.Printf("Отправлено на сервер: %d бесед\n", result.Pushed)
	}
	fmt.Printf("Загружено с сервера: %d бесед\n", result.Pulled)
	if result.Rejected > 0 {
		color.Yellow("Отклонено некорректных записей: %d", result.Rejected)
	}
	if result.SettingsApplied {
		fmt.Println("Настройки обновлены с сервера")
	}
	return nil
}

func showSyncStatus(ctx context.Context, rt *types.Runtime) error {
	state := rt.App.SyncState()
	stats := rt.App.SyncStats()

	if rt.JSON {
		return printJSON(map[string]any{"state": state, "stats": stats})
	}

	fmt.Println("=== Статус синхронизации ===")
	if state.LastSyncTime != nil {
		fmt.Printf("Последняя синхронизация: %s\n", state.LastSyncTime.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Последняя синхронизация: никогда")
	}
	if state.LastError != "" {
		color.Red("Последняя ошибка: %s", state.LastError)
	}

	fmt.Println("📊 Статистика:")
	fmt.Printf("  Всего синхронизаций: %d\n", stats.TotalSyncs)
	fmt.Printf("  С ошибками: %d\n", stats.TotalFailures)
	fmt.Printf("  Пропущено: %d\n", stats.TotalSkipped)
	fmt.Printf("  Отправлено: %d\n", stats.TotalPushed)
	fmt.Printf("  Загружено: %d\n", stats.TotalPulled)

	fmt.Printf("\n⚙️  Интервал: %v, дебаунс: %v\n", rt.Config.SyncInterval, rt.Config.SyncDebounce)

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fmt.Printf("\n🌐 Соединение с сервером: ")
	if err := rt.App.CheckConnection(checkCtx); err != nil {
		color.Red("❌ Ошибка: %v", err)
	} else {
		color.Green("✅ OK")
	}

	fmt.Printf("🔐 Аутентификация: ")
	if rt.App.IsAuthenticated() {
		color.Green("✅ Выполнена")
	} else {
		color.Red("❌ Требуется вход")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&pullOnly, "pull", false, "только загрузить данные с сервера")
}
