package record

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type TripType string

const (
	TripProfessional TripType = "professional"
	TripPersonal     TripType = "personal"
)

type GeoPoint struct {
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Time time.Time `json:"time"`
}

// Trip - поездка
type Trip struct {
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	StartAddress string     `json:"start_address,omitempty"`
	EndAddress   string     `json:"end_address,omitempty"`
	DistanceKm   float64    `json:"distance_km"`
	Type         TripType   `json:"type"`
	VehicleID    string     `json:"vehicle_id,omitempty"`
	Validated    bool       `json:"validated"`
	Notes        string     `json:"notes,omitempty"`
	Trace        []GeoPoint `json:"trace,omitempty"`
}

func (t *Trip) Kind() Kind {
	return KindTrip
}

func (t *Trip) Validate() error {
	if t.StartTime.IsZero() {
		return fmt.Errorf("start_time is required")
	}
	if t.EndTime.Before(t.StartTime) {
		return fmt.Errorf("end_time must not be before start_time")
	}
	if t.DistanceKm < 0 || math.IsNaN(t.DistanceKm) {
		return fmt.Errorf("distance_km must not be negative")
	}

	switch t.Type {
	case TripProfessional, TripPersonal:
	default:
		return fmt.Errorf("type must be %q or %q", TripProfessional, TripPersonal)
	}

	for i, p := range t.Trace {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("trace point %d out of range", i)
		}
	}

	if len(strings.TrimSpace(t.Notes)) > 2000 {
		return fmt.Errorf("notes are too long")
	}

	return nil
}

func (t *Trip) Duration() time.Duration {
	if t.EndTime.IsZero() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}
