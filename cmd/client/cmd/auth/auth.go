package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd - родительская команда для всех операций с токеном доступа
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Управление доступом к серверу синхронизации",
	Long:  `Вход по токену, выход и проверка состояния.`,
}

func init() {
	AuthCmd.AddCommand(LoginCmd)
	AuthCmd.AddCommand(LogoutCmd)
	AuthCmd.AddCommand(StatusCmd)
}
