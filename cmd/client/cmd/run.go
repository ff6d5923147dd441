package cmd

import (
	"github.com/spf13/cobra"

	"chatsync/cmd/client/cmd/types"
	"chatsync/internal/app/client/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Фоновая автосинхронизация до сигнала остановки",
	Long: `Запускает планировщик синхронизации: первый цикл после короткой задержки,
затем по интервалу и после локальных изменений (с дебаунсом).
Логи дополнительно пишутся в файл с ротацией.`,
	Annotations: map[string]string{types.AnnotationFileLog: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := types.FromCommand(cmd)
		if err != nil {
			return err
		}

		current := rt.Config
		rt.Loader.Watch(rt.Log, func(next *config.Config) {
			if next.ServerURL != current.ServerURL || next.SyncInterval != current.SyncInterval {
				rt.Log.Warn("config changed, restart required to apply",
					"server_url", next.ServerURL,
					"sync_interval", next.SyncInterval.String())
			}
		})

		return rt.App.Run(cmd.Context())
	},
}
