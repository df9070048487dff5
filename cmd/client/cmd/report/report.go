package report

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"motium/cmd/client/cmd/types"

	"github.com/spf13/cobra"
)

var (
	year   int
	asJSON bool
)

// ReportCmd - годовой отчет по локальным данным, работает офлайн
var ReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Годовой отчет: пробег, компенсация, расходы",
	Long: `Считает компенсацию за подтвержденные профессиональные поездки
по шкале пробега и суммирует расходы за год.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		rep, err := app.Report(cmd.Context(), year)
		if err != nil {
			return fmt.Errorf("ошибка построения отчета: %w", err)
		}
		if asJSON {
			return types.PrintJSON(rep)
		}

		fmt.Println(types.Bold(fmt.Sprintf("=== Отчет за %d ===", rep.Year)))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Транспорт\tПоездок\tПробег\tФормула\tКомпенсация")
		for _, v := range rep.Vehicles {
			formula, amount := "-", "-"
			if v.Allowance != nil {
				formula = v.Allowance.Formula
				amount = fmt.Sprintf("%.2f €", v.Allowance.Amount)
			} else if v.Error != "" {
				formula = types.Warn(v.Error)
			}
			fmt.Fprintf(w, "%s\t%d\t%.1f км\t%s\t%s\n", v.Name, v.Trips, v.Distance, formula, amount)
		}
		if rep.Unassigned.Trips > 0 {
			fmt.Fprintf(w, "%s\t%d\t%.1f км\t-\t-\n", types.Warn("без транспорта"), rep.Unassigned.Trips, rep.Unassigned.Distance)
		}
		w.Flush()
		fmt.Printf("\nИтого компенсация: %s\n", types.Bold(fmt.Sprintf("%.2f €", rep.AllowanceTotal)))

		if len(rep.Expenses) > 0 {
			fmt.Println("\nРасходы:")
			for _, t := range slices.Sorted(maps.Keys(rep.Expenses)) {
				fmt.Printf("  %-8s %10.2f €\n", t, rep.Expenses[t])
			}
			fmt.Printf("  %-8s %10.2f €\n", "итого", rep.ExpensesTotal)
		}
		return nil
	},
}

func init() {
	ReportCmd.Flags().IntVar(&year, "year", time.Now().Year(), "год отчета")
	ReportCmd.Flags().BoolVar(&asJSON, "json", false, "вывод в формате JSON")
}
