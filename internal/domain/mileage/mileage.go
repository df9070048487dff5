// Package mileage считает компенсацию за пробег по шкале URSSAF 2024 для легковых автомобилей.
package mileage

import (
	"errors"
	"fmt"
	"math"
)

type Power string

const (
	Power3CV     Power = "3CV"
	Power4CV     Power = "4CV"
	Power5CV     Power = "5CV"
	Power6CV     Power = "6CV"
	Power7CVPlus Power = "7CV+"
)

// Powers - классы фискальной мощности в порядке возрастания
var Powers = []Power{Power3CV, Power4CV, Power5CV, Power6CV, Power7CVPlus}

const (
	LowBandLimit  = 5000.0
	HighBandLimit = 20000.0
	// электромобили получают надбавку 20%
	ElectricBonus = 0.20
)

var (
	ErrUnknownPower       = errors.New("unknown fiscal power")
	ErrNegativeDistance   = errors.New("distance must not be negative")
	ErrUnsupportedVehicle = errors.New("mileage scale applies to cars only")
)

type Band int

const (
	BandLow Band = iota + 1
	BandMid
	BandHigh
)

type rate struct {
	low      float64
	mid      float64
	midFixed float64
	high     float64
}

var scale2024 = map[Power]rate{
	Power3CV:     {low: 0.529, mid: 0.316, midFixed: 1065, high: 0.370},
	Power4CV:     {low: 0.606, mid: 0.340, midFixed: 1330, high: 0.407},
	Power5CV:     {low: 0.636, mid: 0.357, midFixed: 1395, high: 0.427},
	Power6CV:     {low: 0.665, mid: 0.374, midFixed: 1457, high: 0.447},
	Power7CVPlus: {low: 0.697, mid: 0.394, midFixed: 1515, high: 0.470},
}

func (p Power) Valid() bool {
	_, ok := scale2024[p]
	return ok
}

// Result - расчет за год
type Result struct {
	Power    Power   `json:"power"`
	Distance float64 `json:"distance_km"`
	Band     Band    `json:"band"`
	Formula  string  `json:"formula"`
	Electric bool    `json:"electric"`
	Amount   float64 `json:"amount"`
}

// Calculate применяет шкалу к годовому пробегу
func Calculate(power Power, annualKm float64, electric bool) (Result, error) {
	r, ok := scale2024[power]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPower, string(power))
	}
	if annualKm < 0 || math.IsNaN(annualKm) {
		return Result{}, ErrNegativeDistance
	}

	res := Result{Power: power, Distance: annualKm, Electric: electric}
	switch {
	case annualKm <= LowBandLimit:
		res.Band = BandLow
		res.Amount = annualKm * r.low
		res.Formula = fmt.Sprintf("d x %.3f", r.low)
	case annualKm <= HighBandLimit:
		res.Band = BandMid
		res.Amount = annualKm*r.mid + r.midFixed
		res.Formula = fmt.Sprintf("(d x %.3f) + %.0f", r.mid, r.midFixed)
	default:
		res.Band = BandHigh
		res.Amount = annualKm * r.high
		res.Formula = fmt.Sprintf("d x %.3f", r.high)
	}

	if electric {
		res.Amount *= 1 + ElectricBonus
		res.Formula += " (+20%)"
	}
	res.Amount = roundCents(res.Amount)

	return res, nil
}

// ForVehicle - то же, что Calculate, но сначала проверяет тип транспорта
func ForVehicle(vehicleType string, power Power, annualKm float64, electric bool) (Result, error) {
	if vehicleType != "car" {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedVehicle, vehicleType)
	}
	return Calculate(power, annualKm, electric)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
