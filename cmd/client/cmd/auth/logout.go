package auth

import (
	"fmt"

	"motium/cmd/client/cmd/types"

	"github.com/spf13/cobra"
)

var wipe bool

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти из аккаунта",
	Long: `Отзывает сессию на сервере и удаляет токены.

С флагом --wipe также удаляются все локальные данные, включая
неотправленные изменения.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		if wipe {
			st, err := app.Status(ctx)
			if err == nil && st.Pending > 0 {
				fmt.Printf("%s будет потеряно неотправленных изменений: %d\n", types.Warn("!"), st.Pending)
			}
		}

		if err := app.Logout(ctx, wipe); err != nil {
			return fmt.Errorf("ошибка выхода: %w", err)
		}

		fmt.Println(types.OK("✓"), "Вы вышли из аккаунта")
		return nil
	},
}

var WhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Показать текущую сессию",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		t, err := app.Session()
		if err != nil {
			return err
		}
		if t == nil {
			fmt.Println("Вход не выполнен")
			return nil
		}
		fmt.Printf("%s (id %d)\n", t.Email, t.UserID)
		return nil
	},
}

func init() {
	LogoutCmd.Flags().BoolVar(&wipe, "wipe", false, "удалить локальные данные")
}
