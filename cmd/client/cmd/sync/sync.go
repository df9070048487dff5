package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"motium/cmd/client/cmd/types"
	"motium/internal/app/client"

	"github.com/spf13/cobra"
)

var (
	syncStatus    bool
	showConflicts bool
	resolveID     string
	keep          string
	retryFailed   bool
	autoSync      bool
	asJSON        bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Управление синхронизацией",
	Long: `Синхронизация локальных данных с сервером.

Без флагов выполняет один цикл: получение изменений с сервера и отправку
локальной очереди. Флаги позволяют посмотреть статус, разрешить конфликты
и вернуть в работу операции, исчерпавшие попытки.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		switch {
		case syncStatus:
			return showStatus(cmd.Context(), app)
		case showConflicts:
			return listConflicts(cmd.Context(), app)
		case resolveID != "":
			return resolve(cmd.Context(), app, resolveID, keep)
		case retryFailed:
			return retry(cmd.Context(), app)
		case autoSync:
			return runAuto(cmd.Context(), app)
		}
		return runSync(cmd.Context(), app)
	},
}

func runSync(ctx context.Context, app *client.App) error {
	if !app.IsAuthenticated() {
		return types.Hint(client.ErrUnauthenticated)
	}

	fmt.Println("=== Синхронизация данных ===")
	result, err := app.Sync(ctx)
	if err != nil {
		if errors.Is(err, client.ErrSyncInProgress) {
			fmt.Println(types.Warn("Синхронизация уже выполняется"))
			return nil
		}
		return types.Hint(err)
	}
	if asJSON {
		return types.PrintJSON(result)
	}

	mark := types.OK("✓")
	if !result.Success {
		mark = types.Warn("⚠")
	}
	fmt.Printf("%s завершено за %v\n", mark, result.Duration.Round(time.Millisecond))
	fmt.Printf("  получено:    %d\n", result.Downloaded)
	fmt.Printf("  отправлено:  %d\n", result.Uploaded)
	if result.Resolved > 0 {
		fmt.Printf("  разрешено:   %d\n", result.Resolved)
	}
	if result.Conflicts > 0 {
		fmt.Printf("  %s %d. Смотрите: motium sync --conflicts\n", types.Fail("конфликтов:"), result.Conflicts)
	}
	for _, e := range result.Errors {
		fmt.Printf("  %s %s %s: %s\n", types.Fail("✗"), e.Operation, e.RecordID, e.Error)
	}
	return nil
}

func showStatus(ctx context.Context, app *client.App) error {
	status, err := app.Status(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return types.PrintJSON(status)
	}

	fmt.Println("=== Статус синхронизации ===")
	if status.LastSync.IsZero() {
		fmt.Println("Последняя синхронизация: никогда")
	} else {
		fmt.Println("Последняя синхронизация:", status.LastSync.Local().Format(time.DateTime))
	}
	fmt.Printf("Записи: %s %d  %s %d  %s %d\n",
		types.StatusMark(client.StatusSynced), status.Counts[client.StatusSynced],
		types.StatusMark(client.StatusPending), status.Counts[client.StatusPending],
		types.StatusMark(client.StatusConflict), status.Counts[client.StatusConflict])
	fmt.Println("В очереди операций:", status.Pending)

	if len(status.Failed) > 0 {
		fmt.Println(types.Fail(fmt.Sprintf("Исчерпали попытки: %d (motium sync --retry)", len(status.Failed))))
		for _, op := range status.Failed {
			fmt.Printf("  %s %s: %s\n", op.Op, op.RecordID, op.LastError)
		}
	}

	st := status.Stats
	fmt.Printf("\nВсего синхронизаций: %d, получено %d, отправлено %d, конфликтов %d, ошибок %d\n",
		st.TotalSyncs, st.TotalDownloaded, st.TotalUploaded, st.TotalConflicts, st.TotalErrors)

	if status.Server == nil {
		fmt.Println(types.Warn("\nСервер недоступен"))
		return nil
	}
	fmt.Printf("\nСервер: записей %d, устройств %d\n", status.Server.TotalRecords, status.Server.DeviceCount)

	devices, err := app.Devices(ctx)
	if err != nil {
		return types.Hint(err)
	}
	for _, d := range devices {
		fmt.Printf("  %s  %-20s  %s\n", d.ID, d.Name, d.LastSyncTime.Local().Format(time.DateTime))
	}
	return nil
}

func listConflicts(ctx context.Context, app *client.App) error {
	conflicts, err := app.Conflicts(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return types.PrintJSON(conflicts)
	}
	if len(conflicts) == 0 {
		fmt.Println(types.OK("Конфликтов нет"))
		return nil
	}

	for _, c := range conflicts {
		fmt.Printf("%s %s (%s, %s)\n", types.Fail("!"), c.RecordID, c.Kind, c.ConflictType)
		fmt.Printf("    локально: версия %d%s\n", c.LocalVersion, deletedMark(c.LocalDeleted))
		fmt.Printf("    сервер:   версия %d%s, изменено %s\n", c.ServerVersion, deletedMark(c.ServerDeleted),
			c.ServerUpdatedAt.Local().Format(time.DateTime))
	}
	fmt.Println("\nРазрешить: motium sync --resolve <id> --keep local|server")
	return nil
}

func resolve(ctx context.Context, app *client.App, id, side string) error {
	var keepLocal bool
	switch side {
	case "local":
		keepLocal = true
	case "server":
	default:
		return fmt.Errorf("--keep: ожидается local или server, получено %q", side)
	}

	if err := app.ResolveConflict(ctx, id, keepLocal); err != nil {
		return types.Hint(err)
	}
	fmt.Printf("%s конфликт %s разрешен в пользу версии: %s\n", types.OK("✓"), id, side)
	if keepLocal {
		fmt.Println("Локальная версия будет отправлена при следующей синхронизации")
	}
	return nil
}

func retry(ctx context.Context, app *client.App) error {
	n, err := app.RetryFailed(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s возвращено в очередь: %d\n", types.OK("✓"), n)
	return nil
}

func runAuto(ctx context.Context, app *client.App) error {
	if !app.IsAuthenticated() {
		return types.Hint(client.ErrUnauthenticated)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Автоматическая синхронизация запущена, Ctrl+C для остановки")
	app.AutoSync(ctx)
	fmt.Println("Остановлено")
	return nil
}

func deletedMark(deleted bool) string {
	if deleted {
		return ", " + types.Warn("удалена")
	}
	return ""
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&showConflicts, "conflicts", false, "показать неразрешенные конфликты")
	SyncCmd.Flags().StringVar(&resolveID, "resolve", "", "разрешить конфликт записи с указанным id")
	SyncCmd.Flags().StringVar(&keep, "keep", "server", "какую версию оставить: local или server")
	SyncCmd.Flags().BoolVar(&retryFailed, "retry", false, "вернуть в очередь операции, исчерпавшие попытки")
	SyncCmd.Flags().BoolVar(&autoSync, "auto", false, "синхронизировать периодически до остановки")
	SyncCmd.Flags().BoolVar(&asJSON, "json", false, "вывод в формате JSON")
	SyncCmd.MarkFlagsMutuallyExclusive("status", "conflicts", "resolve", "retry", "auto")
}
