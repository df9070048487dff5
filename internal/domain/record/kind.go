package record

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

type Kind string

const (
	KindTrip         Kind = "trip"
	KindExpense      Kind = "expense"
	KindVehicle      Kind = "vehicle"
	KindWorkSchedule Kind = "work_schedule"
)

// Kinds - все синхронизируемые типы записей
var Kinds = []Kind{KindTrip, KindExpense, KindVehicle, KindWorkSchedule}

func (Kind) Schema(huma.Registry) *huma.Schema {
	enum := make([]any, 0, len(Kinds))
	for _, k := range Kinds {
		enum = append(enum, string(k))
	}

	return &huma.Schema{
		Type:        huma.TypeString,
		Enum:        enum,
		Description: "Тип синхронизируемой записи",
		Examples:    []any{string(KindTrip)},
	}
}

// Validate проверяет, что тип известен
func (k Kind) Validate() error {
	switch k {
	case KindTrip, KindExpense, KindVehicle, KindWorkSchedule:
		return nil
	}
	return fmt.Errorf("неверный тип записи: %q", string(k))
}

func (k Kind) String() string {
	return string(k)
}

// DisplayName возвращает название типа для интерфейса
func (k Kind) DisplayName() string {
	switch k {
	case KindTrip:
		return "Trajet"
	case KindExpense:
		return "Dépense"
	case KindVehicle:
		return "Véhicule"
	case KindWorkSchedule:
		return "Horaires de travail"
	default:
		return "Inconnu"
	}
}
