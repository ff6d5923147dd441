package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatsync/cmd/client/cmd/types"
	"chatsync/internal/app/client"
	"chatsync/internal/domain/chat"
)

var noPush bool

// SettingsCmd - родительская команда для глобальных настроек
var SettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Глобальные настройки чата",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Показать текущие настройки",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		s, err := rt.App.Settings(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения настроек: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(chat.NewSettingsRecord(s))
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Изменить настройку",
	Long: fmt.Sprintf(`Изменить одну настройку и отправить ее на сервер.

Пустое значение сбрасывает текстовые поля.
Доступные ключи: %s`, strings.Join(client.SettingKeys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if _, err := rt.App.UpdateSettings(ctx, func(s *chat.Settings) error {
			return client.SetSetting(s, args[0], args[1])
		}); err != nil {
			return err
		}
		color.Green("✅ %s = %s", args[0], args[1])

		if noPush || !rt.App.IsAuthenticated() {
			return nil
		}
		res, err := rt.App.PushSettings(ctx)
		switch {
		case err != nil:
			color.Yellow("⚠️  Не удалось отправить настройки: %v", err)
		case !res.Success:
			color.Yellow("⚠️  Не удалось отправить настройки: %s", res.Err)
		case res.SettingsApplied:
			fmt.Println("На сервере были более новые настройки, они применены локально")
		default:
			fmt.Println("Настройки отправлены на сервер")
		}
		return nil
	},
}

func init() {
	setCmd.Flags().BoolVar(&noPush, "no-push", false, "сохранить только локально")

	SettingsCmd.AddCommand(showCmd)
	SettingsCmd.AddCommand(setCmd)
}
