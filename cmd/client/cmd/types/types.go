// Package types - общие для команд клиента ключи контекста и вывод.
package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"motium/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type ctxKey string

// ClientAppKey - ключ *client.App в контексте команды
const ClientAppKey ctxKey = "app"

// RequestTimeout - ограничение на одну сетевую операцию команды
const RequestTimeout = 30 * time.Second

var (
	OK   = color.New(color.FgGreen).SprintFunc()
	Warn = color.New(color.FgYellow).SprintFunc()
	Fail = color.New(color.FgRed).SprintFunc()
	Bold = color.New(color.Bold).SprintFunc()
)

// App достает приложение, созданное в PersistentPreRunE
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, errors.New("приложение не инициализировано")
	}
	return app, nil
}

// WithTimeout - контекст команды с RequestTimeout
func WithTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), RequestTimeout)
}

// PrintJSON печатает v с отступами
func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// StatusMark - цветная метка статуса синхронизации записи
func StatusMark(s client.SyncStatus) string {
	switch s {
	case client.StatusSynced:
		return OK("●")
	case client.StatusConflict:
		return Fail("!")
	default:
		return Warn("○")
	}
}

// Hint объясняет типичные сетевые ошибки
func Hint(err error) error {
	switch {
	case errors.Is(err, client.ErrUnauthenticated):
		return fmt.Errorf("%w. Выполните: motium auth login", err)
	case errors.Is(err, client.ErrOffline):
		return fmt.Errorf("%w. Локальные изменения сохранены и будут отправлены при следующей синхронизации", err)
	}
	return err
}

// ParseDate принимает YYYY-MM-DD или RFC3339, пустая строка - сейчас
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("неверная дата %q: ожидается YYYY-MM-DD", s)
	}
	return t, nil
}
