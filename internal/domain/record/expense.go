package record

import (
	"fmt"
	"net/url"
	"time"
)

type ExpenseType string

const (
	ExpenseFuel    ExpenseType = "fuel"
	ExpenseToll    ExpenseType = "toll"
	ExpenseParking ExpenseType = "parking"
	ExpenseMeal    ExpenseType = "meal"
	ExpenseHotel   ExpenseType = "hotel"
	ExpenseOther   ExpenseType = "other"
)

// Expense - расход, сумма в евро с НДС
type Expense struct {
	Date       time.Time   `json:"date"`
	Type       ExpenseType `json:"type"`
	Amount     float64     `json:"amount"`
	AmountHT   *float64    `json:"amount_ht,omitempty"`
	TripID     string      `json:"trip_id,omitempty"`
	Note       string      `json:"note,omitempty"`
	ReceiptURL string      `json:"receipt_url,omitempty"`
}

func (e *Expense) Kind() Kind {
	return KindExpense
}

func (e *Expense) Validate() error {
	if e.Date.IsZero() {
		return fmt.Errorf("date is required")
	}

	switch e.Type {
	case ExpenseFuel, ExpenseToll, ExpenseParking, ExpenseMeal, ExpenseHotel, ExpenseOther:
	default:
		return fmt.Errorf("unknown expense type %q", string(e.Type))
	}

	if e.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if e.AmountHT != nil && (*e.AmountHT < 0 || *e.AmountHT > e.Amount) {
		return fmt.Errorf("amount_ht must be between 0 and amount")
	}

	if e.ReceiptURL != "" {
		u, err := url.Parse(e.ReceiptURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			return fmt.Errorf("receipt_url must be an http(s) URL")
		}
	}

	return nil
}
