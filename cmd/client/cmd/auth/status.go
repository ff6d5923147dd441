package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatsync/cmd/client/cmd/types"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Показать состояние входа и доступность сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("Сервер: %s\n", rt.Config.ServerURL)

		fmt.Print("🔐 Аутентификация: ")
		if rt.App.IsAuthenticated() {
			color.Green("выполнена")
		} else {
			color.Red("требуется вход (chatsync auth login)")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		fmt.Print("🌐 Соединение с сервером: ")
		if err := rt.App.CheckConnection(ctx); err != nil {
			color.Red("ошибка: %v", err)
		} else {
			color.Green("OK")
		}
		return nil
	},
}
