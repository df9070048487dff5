package record

import (
	"fmt"

	"motium/cmd/client/cmd/types"
	"motium/internal/app/client"
	"motium/internal/domain/record"

	"github.com/spf13/cobra"
)

var (
	expenseDate     string
	expenseType     string
	expenseAmount   float64
	expenseAmountHT float64
	expenseTrip     string
	expenseNote     string
	expenseReceipt  string
)

var expenseAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Добавить расход",
	RunE: func(cmd *cobra.Command, _ []string) error {
		date, err := types.ParseDate(expenseDate)
		if err != nil {
			return err
		}

		e := &record.Expense{
			Date:       date,
			Type:       record.ExpenseType(expenseType),
			Amount:     expenseAmount,
			TripID:     expenseTrip,
			Note:       expenseNote,
			ReceiptURL: expenseReceipt,
		}
		if cmd.Flags().Changed("amount-ht") {
			e.AmountHT = &expenseAmountHT
		}
		return add(cmd, e)
	},
}

func init() {
	expenseAddCmd.Flags().StringVar(&expenseDate, "date", "", "дата (YYYY-MM-DD), по умолчанию сегодня")
	expenseAddCmd.Flags().StringVar(&expenseType, "type", string(record.ExpenseFuel), "fuel, toll, parking, meal, hotel, other")
	expenseAddCmd.Flags().Float64Var(&expenseAmount, "amount", 0, "сумма с НДС, евро")
	expenseAddCmd.Flags().Float64Var(&expenseAmountHT, "amount-ht", 0, "сумма без НДС, евро")
	expenseAddCmd.Flags().StringVar(&expenseTrip, "trip", "", "id связанной поездки")
	expenseAddCmd.Flags().StringVar(&expenseNote, "note", "", "комментарий")
	expenseAddCmd.Flags().StringVar(&expenseReceipt, "receipt", "", "ссылка на чек")
	_ = expenseAddCmd.MarkFlagRequired("amount")

	ExpenseCmd.AddCommand(
		expenseAddCmd,
		newDeleteCmd(record.KindExpense),
		newListCmd(record.KindExpense,
			[]string{"Дата", "Тип", "Сумма", "Комментарий"},
			func(e client.Entry[record.Expense]) []string {
				return []string{
					e.Data.Date.Local().Format("2006-01-02"),
					string(e.Data.Type),
					fmt.Sprintf("%.2f €", e.Data.Amount),
					truncate(e.Data.Note, 40),
				}
			}),
	)
}
