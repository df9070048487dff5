package record

import (
	"fmt"
	"strings"

	"motium/internal/domain/mileage"
)

type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleMoped      VehicleType = "moped"
)

type Energy string

const (
	EnergyFuel     Energy = "fuel"
	EnergyElectric Energy = "electric"
	EnergyHybrid   Energy = "hybrid"
)

type Vehicle struct {
	Name         string        `json:"name"`
	Type         VehicleType   `json:"type"`
	Power        mileage.Power `json:"power,omitempty"`
	Energy       Energy        `json:"energy"`
	LicensePlate string        `json:"license_plate,omitempty"`
	IsDefault    bool          `json:"is_default"`
	MileagePro   float64       `json:"mileage_pro"`
	MileagePerso float64       `json:"mileage_perso"`
}

func (v *Vehicle) Kind() Kind {
	return KindVehicle
}

func (v *Vehicle) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("name is required")
	}

	switch v.Type {
	case VehicleCar:
		if !v.Power.Valid() {
			return fmt.Errorf("power is required for cars")
		}
	case VehicleMotorcycle, VehicleMoped:
	default:
		return fmt.Errorf("unknown vehicle type %q", string(v.Type))
	}

	switch v.Energy {
	case EnergyFuel, EnergyElectric, EnergyHybrid:
	default:
		return fmt.Errorf("unknown energy %q", string(v.Energy))
	}

	if v.MileagePro < 0 || v.MileagePerso < 0 {
		return fmt.Errorf("mileage counters must not be negative")
	}

	return nil
}

func (v *Vehicle) IsElectric() bool {
	return v.Energy == EnergyElectric
}
