package auth

import (
	"fmt"

	"motium/cmd/client/cmd/types"

	"github.com/spf13/cobra"
)

var skipSync bool

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в аккаунт",
	Long: `Аутентификация на сервере Motium.

Токены сохраняются локально, access-токен обновляется автоматически.
После входа выполняется первая синхронизация.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		fmt.Println(types.Bold("=== Вход ==="))

		email, err := readEmail()
		if err != nil {
			return err
		}
		password, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}

		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		tokens, err := app.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", types.Hint(err))
		}
		fmt.Println(types.OK("✓"), "Вход выполнен, сессия действует до", tokens.ExpiresAt.Local().Format("2006-01-02 15:04"))

		if skipSync {
			return nil
		}

		fmt.Println("Синхронизация данных...")
		result, err := app.Sync(ctx)
		switch {
		case err != nil:
			fmt.Println(types.Warn("!"), "синхронизация не выполнена:", types.Hint(err))
		case !result.Success:
			fmt.Printf("%s синхронизация завершена с ошибками (%d)\n", types.Warn("!"), len(result.Errors))
		default:
			fmt.Printf("%s получено %d, отправлено %d\n", types.OK("✓"), result.Downloaded, result.Uploaded)
		}
		return nil
	},
}

func init() {
	LoginCmd.Flags().BoolVar(&skipSync, "no-sync", false, "не синхронизировать после входа")
}
