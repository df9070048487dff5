package record

import (
	"fmt"
	"strings"
	"time"

	"motium/cmd/client/cmd/types"
	"motium/internal/app/client"
	"motium/internal/domain/record"
	"motium/internal/domain/tracking"

	"github.com/spf13/cobra"
)

var (
	tripStart     string
	tripEnd       string
	tripDistance  float64
	tripType      string
	tripVehicle   string
	tripFrom      string
	tripTo        string
	tripNotes     string
	tripValidated bool

	simRoute    string
	simPoints   int
	simInterval time.Duration
)

var tripAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Добавить поездку вручную",
	RunE: func(cmd *cobra.Command, _ []string) error {
		start, err := types.ParseDate(tripStart)
		if err != nil {
			return err
		}
		end := start
		if tripEnd != "" {
			if end, err = types.ParseDate(tripEnd); err != nil {
				return err
			}
		}

		return add(cmd, &record.Trip{
			StartTime:    start,
			EndTime:      end,
			StartAddress: tripFrom,
			EndAddress:   tripTo,
			DistanceKm:   tripDistance,
			Type:         record.TripType(tripType),
			VehicleID:    tripVehicle,
			Validated:    tripValidated,
			Notes:        tripNotes,
		})
	},
}

var tripValidateCmd = &cobra.Command{
	Use:   "validate <id>",
	Short: "Подтвердить поездку для отчета",
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
		p, err := record.NewFactory().ParsePayload(rec.Kind, rec.Payload)
		if err != nil {
			return err
		}
		trip, ok := p.(*record.Trip)
		if !ok {
			return fmt.Errorf("запись %s не является поездкой", rec.ID)
		}

		trip.Validated = true
		if tripVehicle != "" {
			trip.VehicleID = tripVehicle
		}
		if _, err := app.Edit(cmd.Context(), rec.ID, trip); err != nil {
			return err
		}
		fmt.Println(types.OK("✓"), "Поездка подтверждена")
		return nil
	},
}

var tripSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Записать поездку по симулированному GPS-маршруту",
	Long: `Прогоняет точки маршрута через трекер поездок так же, как при записи
с телефона, и сохраняет получившуюся поездку.

Маршруты: ` + strings.Join(tracking.RouteNames(), ", "),
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		rec, trip, err := app.SimulateTrip(cmd.Context(), simRoute, simPoints, simInterval, record.TripType(tripType), tripVehicle)
		if err != nil {
			return fmt.Errorf("ошибка симуляции: %w", err)
		}

		fmt.Printf("%s поездка %s: %s за %s, точек %d\n",
			types.OK("✓"), rec.ID, km(trip.DistanceKm), trip.Duration().Round(time.Second), len(trip.Points))
		return nil
	},
}

func init() {
	tripAddCmd.Flags().StringVar(&tripStart, "start", "", "начало (YYYY-MM-DD или RFC3339), по умолчанию сейчас")
	tripAddCmd.Flags().StringVar(&tripEnd, "end", "", "конец (YYYY-MM-DD или RFC3339)")
	tripAddCmd.Flags().Float64Var(&tripDistance, "distance", 0, "расстояние, км")
	tripAddCmd.Flags().StringVar(&tripFrom, "from", "", "адрес начала")
	tripAddCmd.Flags().StringVar(&tripTo, "to", "", "адрес конца")
	tripAddCmd.Flags().StringVar(&tripNotes, "notes", "", "заметка")
	tripAddCmd.Flags().BoolVar(&tripValidated, "validated", false, "сразу подтвердить")

	for _, c := range []*cobra.Command{tripAddCmd, tripSimulateCmd} {
		c.Flags().StringVar(&tripType, "type", string(record.TripProfessional), "professional или personal")
		c.Flags().StringVar(&tripVehicle, "vehicle", "", "id транспорта, по умолчанию основной")
	}
	tripValidateCmd.Flags().StringVar(&tripVehicle, "vehicle", "", "назначить транспорт")

	tripSimulateCmd.Flags().StringVar(&simRoute, "route", "chambery-lyon", "имя маршрута")
	tripSimulateCmd.Flags().IntVar(&simPoints, "points", 120, "количество GPS-точек")
	tripSimulateCmd.Flags().DurationVar(&simInterval, "interval", 10*time.Second, "интервал между точками")

	TripCmd.AddCommand(
		tripAddCmd,
		tripValidateCmd,
		tripSimulateCmd,
		newDeleteCmd(record.KindTrip),
		newListCmd(record.KindTrip,
			[]string{"Дата", "Тип", "Расстояние", "Маршрут", "Подтверждена"},
			func(e client.Entry[record.Trip]) []string {
				route := ""
				if e.Data.StartAddress != "" || e.Data.EndAddress != "" {
					route = truncate(e.Data.StartAddress+" -> "+e.Data.EndAddress, 40)
				}
				return []string{
					e.Data.StartTime.Local().Format("2006-01-02 15:04"),
					string(e.Data.Type),
					km(e.Data.DistanceKm),
					route,
					yesNo(e.Data.Validated),
				}
			}),
	)
}
