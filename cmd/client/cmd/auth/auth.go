package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// AuthCmd - родительская команда для входа, регистрации и выхода
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Управление аккаунтом",
	Long:  `Регистрация, вход и выход из аккаунта Motium.`,
}

func readEmail() (string, error) {
	fmt.Print("Email: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("ошибка чтения email: %w", err)
	}
	email := strings.TrimSpace(line)
	if email == "" {
		return "", fmt.Errorf("email не может быть пустым")
	}
	return email, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("ошибка чтения пароля: %w", err)
	}
	return string(password), nil
}
