package cmd

import (
	"fmt"

	"motium/cmd/client/cmd/auth"
	"motium/cmd/client/cmd/company"
	"motium/cmd/client/cmd/record"
	"motium/cmd/client/cmd/report"
	"motium/cmd/client/cmd/sync"
	"motium/cmd/client/cmd/types"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Проверить настройки клиента",
	Long: `Команда init создает локальную базу и идентификатор устройства,
показывает пути к файлам и проверяет соединение с сервером.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		fmt.Println(types.Bold("=== Инициализация Motium ==="))
		fmt.Printf("Директория:  %s\n", cfg.ConfigDir)
		fmt.Printf("База данных: %s\n", cfg.DBPath)
		fmt.Printf("Сервер:      %s\n", cfg.BaseURL())
		fmt.Printf("Стратегия конфликтов: %s\n", cfg.ConflictStrategy)
		fmt.Println()

		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		if err := app.CheckConnection(ctx); err != nil {
			fmt.Printf("%s не удалось подключиться к серверу: %v\n", types.Warn("!"), err)
			fmt.Println("Клиент работает офлайн, синхронизация выполнится позже.")
		} else {
			fmt.Println(types.OK("✓"), "Соединение с сервером установлено")
		}

		fmt.Println()
		fmt.Println("Что дальше:")
		fmt.Println("1. Зарегистрируйтесь: motium auth register")
		fmt.Println("2. Войдите: motium auth login")
		fmt.Println("3. Добавьте транспорт: motium vehicle add --name Clio --type car --power 5CV")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd, auth.LoginCmd, auth.LogoutCmd, auth.WhoamiCmd)

	rootCmd.AddCommand(record.TripCmd, record.ExpenseCmd, record.VehicleCmd, record.ScheduleCmd)

	rootCmd.AddCommand(company.CompanyCmd)
	rootCmd.AddCommand(report.ReportCmd)
	rootCmd.AddCommand(sync.SyncCmd)
}
