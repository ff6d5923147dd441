// cmd/client/cmd/auth/login.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chatsync/cmd/client/cmd/types"
	"chatsync/internal/app/client"
)

var (
	tokenFlag string
	syncAfter bool
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти на сервер chatsync по токену",
	Long: `Сохраняет токен доступа и проверяет его запросом к серверу.

Токен выпускает администратор сервера командой
  chatsync-server token issue --login <имя>
Если сервер недоступен, токен сохраняется и будет проверен при синхронизации.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		token := strings.TrimSpace(tokenFlag)
		if token == "" {
			fmt.Print("Токен: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			if err != nil {
				return fmt.Errorf("ошибка чтения токена: %w", err)
			}
			fmt.Println()
			token = strings.TrimSpace(string(raw))
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		fmt.Println("Аутентификация...")
		if err := rt.App.Login(ctx, token); err != nil {
			if errors.Is(err, client.ErrTokenRejected) {
				return fmt.Errorf("сервер отклонил токен: %w", err)
			}
			color.Yellow("⚠️  Токен сохранен, но не проверен: %v", err)
			return nil
		}
		color.Green("✅ Вход выполнен успешно!")

		if !syncAfter {
			return nil
		}

		fmt.Println("Синхронизация данных...")
		result, err := rt.App.Sync(ctx)
		switch {
		case err != nil:
			color.Yellow("⚠️  Ошибка синхронизации: %v", err)
		case result.Skipped:
			fmt.Println("Синхронизация уже выполняется")
		case !result.Success:
			color.Yellow("⚠️  Синхронизация не удалась: %s", result.Err)
			fmt.Println("Вы можете продолжить работу в офлайн-режиме")
		default:
			color.Green("✓ Данные синхронизированы")
		}
		return nil
	},
}

func init() {
	LoginCmd.Flags().StringVarP(&tokenFlag, "token", "t", "", "токен доступа (иначе будет запрошен)")
	LoginCmd.Flags().BoolVar(&syncAfter, "sync", true, "синхронизировать после входа")
}
