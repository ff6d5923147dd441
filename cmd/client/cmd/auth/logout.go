package auth

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatsync/cmd/client/cmd/types"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Удалить сохраненный токен",
	Long:  `Удаляет токен. Локальные беседы и настройки сохраняются.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		if err := rt.App.Logout(); err != nil {
			return fmt.Errorf("ошибка удаления токена: %w", err)
		}
		color.Green("✅ Выход выполнен")
		return nil
	},
}
