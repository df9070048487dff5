package auth

import (
	"fmt"

	"motium/cmd/client/cmd/types"
	"motium/internal/domain/user"

	"github.com/spf13/cobra"
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать нового пользователя",
	Long: `Регистрация нового пользователя на сервере Motium.

После регистрации данные синхронизируются между всеми вашими устройствами.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		fmt.Println(types.Bold("=== Регистрация ==="))

		email, err := readEmail()
		if err != nil {
			return err
		}
		password, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}
		confirm, err := readPassword("Повторите пароль: ")
		if err != nil {
			return err
		}

		if password != confirm {
			return fmt.Errorf("пароли не совпадают")
		}
		if len(password) < user.MinPasswordLen {
			return fmt.Errorf("пароль должен содержать минимум %d символов", user.MinPasswordLen)
		}

		ctx, cancel := types.WithTimeout(cmd)
		defer cancel()

		userID, err := app.Register(ctx, email, password)
		if err != nil {
			return fmt.Errorf("ошибка регистрации: %w", types.Hint(err))
		}

		fmt.Println(types.OK("✓"), "Регистрация завершена, id пользователя:", userID)
		fmt.Println("Теперь войдите в систему: motium auth login")
		return nil
	},
}
