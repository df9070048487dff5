package client

import (
	"math"
	"sort"

	"motium/internal/domain/mileage"
	"motium/internal/domain/record"
)

// VehicleReport - пробег и компенсация по одному транспорту за год
type VehicleReport struct {
	VehicleID string          `json:"vehicle_id"`
	Name      string          `json:"name"`
	Trips     int             `json:"trips"`
	Distance  float64         `json:"distance_km"`
	Allowance *mileage.Result `json:"allowance,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Report - годовой отчет по профессиональным поездкам и расходам
type Report struct {
	Year           int                            `json:"year"`
	Vehicles       []VehicleReport                `json:"vehicles"`
	Unassigned     VehicleReport                  `json:"unassigned"`
	Expenses       map[record.ExpenseType]float64 `json:"expenses"`
	ExpensesTotal  float64                        `json:"expenses_total"`
	AllowanceTotal float64                        `json:"allowance_total"`
}

// BuildReport учитывает только подтвержденные профессиональные поездки года.
// Поездка без транспорта относится к транспорту по умолчанию, если он есть.
func BuildReport(year int, trips []Entry[record.Trip], vehicles []Entry[record.Vehicle], expenses []Entry[record.Expense]) *Report {
	rep := &Report{
		Year:     year,
		Expenses: make(map[record.ExpenseType]float64),
	}

	byID := make(map[string]*VehicleReport, len(vehicles))
	specs := make(map[string]record.Vehicle, len(vehicles))
	defaultID := ""
	for _, v := range vehicles {
		byID[v.ID] = &VehicleReport{VehicleID: v.ID, Name: v.Data.Name}
		specs[v.ID] = v.Data
		if v.Data.IsDefault && defaultID == "" {
			defaultID = v.ID
		}
	}

	for _, t := range trips {
		trip := t.Data
		if trip.Type != record.TripProfessional || !trip.Validated || trip.StartTime.Year() != year {
			continue
		}
		id := trip.VehicleID
		if id == "" {
			id = defaultID
		}
		vr, ok := byID[id]
		if !ok {
			vr = &rep.Unassigned
		}
		vr.Trips++
		vr.Distance += trip.DistanceKm
	}

	for _, v := range vehicles {
		vr := byID[v.ID]
		vr.Distance = round2(vr.Distance)
		spec := specs[v.ID]
		res, err := mileage.ForVehicle(string(spec.Type), spec.Power, vr.Distance, spec.IsElectric())
		if err != nil {
			vr.Error = err.Error()
		} else {
			vr.Allowance = &res
			rep.AllowanceTotal += res.Amount
		}
		rep.Vehicles = append(rep.Vehicles, *vr)
	}
	rep.Unassigned.Distance = round2(rep.Unassigned.Distance)
	rep.AllowanceTotal = round2(rep.AllowanceTotal)

	sort.Slice(rep.Vehicles, func(i, j int) bool {
		return rep.Vehicles[i].Name < rep.Vehicles[j].Name
	})

	for _, e := range expenses {
		if e.Data.Date.Year() != year {
			continue
		}
		rep.Expenses[e.Data.Type] += e.Data.Amount
		rep.ExpensesTotal += e.Data.Amount
	}
	for k, v := range rep.Expenses {
		rep.Expenses[k] = round2(v)
	}
	rep.ExpensesTotal = round2(rep.ExpensesTotal)

	return rep
}

// до сотых
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
