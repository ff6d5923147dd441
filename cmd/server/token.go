package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chatsync/internal/domain/session"
	"chatsync/internal/domain/user"
	"chatsync/internal/infrastructure/storage/postgres"
)

var (
	tokenLogin string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Управление токенами доступа",
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Выпустить токен для пользователя (пользователь создается при необходимости)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		_, log, storage, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer storage.Close()

		users := user.NewService(postgres.NewUserRepository(storage.Pool(), log), log)
		u, err := users.EnsureUser(ctx, tokenLogin)
		if err != nil {
			return fmt.Errorf("ошибка создания пользователя: %w", err)
		}

		sessions := session.NewService(postgres.NewTokenRepository(storage.Pool(), log), log)
		token, err := sessions.Issue(ctx, u.ID, tokenTTL)
		if err != nil {
			return fmt.Errorf("ошибка выпуска токена: %w", err)
		}

		// токен печатается один раз: на сервере хранится только хэш
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Отозвать токен по идентификатору (часть до точки)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, log, storage, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer storage.Close()

		if err := postgres.NewTokenRepository(storage.Pool(), log).Revoke(ctx, args[0]); err != nil {
			return fmt.Errorf("ошибка отзыва токена: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Токен отозван")
		return nil
	},
}

func init() {
	issueCmd.Flags().StringVar(&tokenLogin, "login", "", "логин пользователя")
	issueCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "время жизни токена (0 - бессрочный)")
	_ = issueCmd.MarkFlagRequired("login")

	tokenCmd.AddCommand(issueCmd)
	tokenCmd.AddCommand(revokeCmd)
}
