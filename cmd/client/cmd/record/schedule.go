package record

import (
	"strconv"

	"motium/internal/app/client"
	"motium/internal/domain/record"

	"github.com/spf13/cobra"
)

var (
	scheduleDay      int
	scheduleStart    string
	scheduleEnd      string
	scheduleInactive bool
)

var weekdays = [...]string{"", "пн", "вт", "ср", "чт", "пт", "сб", "вс"}

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Добавить рабочий интервал",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return add(cmd, &record.WorkSchedule{
			DayOfWeek: scheduleDay,
			Start:     scheduleStart,
			End:       scheduleEnd,
			Active:    !scheduleInactive,
		})
	},
}

func init() {
	scheduleAddCmd.Flags().IntVar(&scheduleDay, "day", 1, "день недели, 1 - понедельник")
	scheduleAddCmd.Flags().StringVar(&scheduleStart, "start", "09:00", "начало HH:MM")
	scheduleAddCmd.Flags().StringVar(&scheduleEnd, "end", "18:00", "конец HH:MM")
	scheduleAddCmd.Flags().BoolVar(&scheduleInactive, "inactive", false, "не учитывать интервал")

	ScheduleCmd.AddCommand(
		scheduleAddCmd,
		newDeleteCmd(record.KindWorkSchedule),
		newListCmd(record.KindWorkSchedule,
			[]string{"День", "Начало", "Конец", "Активен"},
			func(e client.Entry[record.WorkSchedule]) []string {
				day := strconv.Itoa(e.Data.DayOfWeek)
				if e.Data.DayOfWeek >= 1 && e.Data.DayOfWeek <= 7 {
					day = weekdays[e.Data.DayOfWeek]
				}
				return []string{day, e.Data.Start, e.Data.End, yesNo(e.Data.Active)}
			}),
	)
}
