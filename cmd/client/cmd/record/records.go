package record

import (
	"fmt"

	"motium/cmd/client/cmd/types"
	"motium/internal/app/client"
	"motium/internal/domain/record"

	"github.com/spf13/cobra"
)

// TripCmd, ExpenseCmd, VehicleCmd, ScheduleCmd - команды над локальными записями.
// Изменения сохраняются офлайн и уходят на сервер при синхронизации.
var (
	TripCmd = &cobra.Command{
		Use:   "trip",
		Short: "Поездки",
		Long:  `Добавление, просмотр, подтверждение и удаление поездок, симуляция маршрута.`,
	}
	ExpenseCmd = &cobra.Command{
		Use:   "expense",
		Short: "Расходы",
		Long:  `Учет расходов: топливо, платные дороги, парковка, питание, гостиница.`,
	}
	VehicleCmd = &cobra.Command{
		Use:   "vehicle",
		Short: "Транспорт",
		Long:  `Транспорт используется для расчета компенсации по шкале пробега.`,
	}
	ScheduleCmd = &cobra.Command{
		Use:   "schedule",
		Short: "Рабочий график",
		Long:  `Рабочие интервалы по дням недели (1 - понедельник, 7 - воскресенье).`,
	}
)

// add сохраняет запись и печатает ее идентификатор
func add(cmd *cobra.Command, p record.Payload) error {
	app, err := types.App(cmd)
	if err != nil {
		return err
	}

	rec, err := app.Add(cmd.Context(), p)
	if err != nil {
		return fmt.Errorf("ошибка сохранения: %w", err)
	}

	fmt.Printf("%s сохранено локально: %s\n", types.OK("✓"), rec.ID)
	return nil
}

func newDeleteCmd(kind record.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Удалить запись",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := types.App(cmd)
			if err != nil {
				return err
			}

			rec, err := app.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec.Kind != kind {
				return fmt.Errorf("запись %s имеет тип %s", rec.ID, rec.Kind)
			}

			if err := app.Delete(cmd.Context(), rec.ID); err != nil {
				return fmt.Errorf("ошибка удаления: %w", err)
			}
			fmt.Println(types.OK("✓"), "Удалено:", rec.ID)
			return nil
		},
	}
}

// newListCmd строит команду list для типа kind: row превращает запись в строку таблицы
func newListCmd[T any](kind record.Kind, headers []string, row func(client.Entry[T]) []string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список записей",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := types.App(cmd)
			if err != nil {
				return err
			}

			entries, err := client.ListOf[T](cmd.Context(), app, kind)
			if err != nil {
				return fmt.Errorf("ошибка получения списка: %w", err)
			}

			if asJSON {
				return types.PrintJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println("Записи не найдены")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, append([]string{types.StatusMark(e.SyncStatus), e.ID}, row(e)...))
			}
			printTable(append([]string{"", "ID"}, headers...), rows)
			fmt.Printf("\nВсего записей: %d\n", len(entries))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывод в формате JSON")
	return cmd
}
