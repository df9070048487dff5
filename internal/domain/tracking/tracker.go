package tracking

import (
	"errors"
	"fmt"
	"math"
	"time"

	"motium/internal/domain/record"

	"golang.org/x/exp/slog"
)

type Activity string

const (
	ActivityInVehicle Activity = "IN_VEHICLE"
	ActivityOnBicycle Activity = "ON_BICYCLE"
	ActivityOnFoot    Activity = "ON_FOOT"
	ActivityWalking   Activity = "WALKING"
	ActivityRunning   Activity = "RUNNING"
	ActivityStill     Activity = "STILL"
	ActivityUnknown   Activity = "UNKNOWN"
)

func (a Activity) stopsTrip() bool {
	switch a {
	case ActivityStill, ActivityOnFoot, ActivityWalking:
		return true
	}
	return false
}

type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

var (
	ErrTripRejected = errors.New("trip rejected")
	ErrNotRecording = errors.New("no trip in progress")
)

type Config struct {
	MinConfidence     int
	MaxAccuracyM      float64
	StopConfirmations int
	MinDistanceKm     float64
	MinDuration       time.Duration
	MinPoints         int
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:     75,
		MaxAccuracyM:      50,
		StopConfirmations: 3,
		MinDistanceKm:     1,
		MinDuration:       time.Minute,
		MinPoints:         2,
	}
}

// Trip - завершенная поездка до сохранения
type Trip struct {
	StartTime  time.Time
	EndTime    time.Time
	DistanceKm float64
	Points     []Point
}

func (t Trip) Duration() time.Duration {
	return t.EndTime.Sub(t.StartTime)
}

// Record превращает поездку в запись для локального хранилища
func (t Trip) Record(tripType record.TripType, vehicleID string) *record.Trip {
	trace := make([]record.GeoPoint, 0, len(t.Points))
	for _, p := range t.Points {
		trace = append(trace, record.GeoPoint{Lat: p.Lat, Lon: p.Lon, Time: p.Time})
	}
	return &record.Trip{
		StartTime:  t.StartTime,
		EndTime:    t.EndTime,
		DistanceKm: math.Round(t.DistanceKm*100) / 100,
		Type:       tripType,
		VehicleID:  vehicleID,
		Trace:      trace,
	}
}

// Tracker - конечный автомат записи поездки. Не потокобезопасен.
type Tracker struct {
	cfg    Config
	state  State
	points []Point
	stops  int
	log    *slog.Logger
}

func NewTracker(cfg Config, log *slog.Logger) *Tracker {
	return &Tracker{
		cfg: cfg,
		log: log.With("component", "tracker"),
	}
}

func (t *Tracker) State() State {
	return t.state
}

// HandleActivity обрабатывает сигнал активности. Возвращает поездку,
// если сигнал закрыл ее.
func (t *Tracker) HandleActivity(activity Activity, confidence int) (*Trip, error) {
	if confidence < t.cfg.MinConfidence {
		return nil, nil
	}

	switch t.state {
	case StateIdle:
		if activity == ActivityInVehicle {
			t.state = StateRecording
			t.points = nil
			t.stops = 0
			t.log.Debug("trip started")
		}
	case StateRecording:
		if activity.stopsTrip() {
			t.state = StateStopping
			t.stops = 1
			return t.maybeClose()
		}
	case StateStopping:
		switch {
		case activity == ActivityInVehicle:
			t.state = StateRecording
			t.stops = 0
			t.log.Debug("trip resumed")
		case activity.stopsTrip():
			t.stops++
			return t.maybeClose()
		}
	}
	return nil, nil
}

// HandleLocation добавляет точку к текущей поездке. Возвращает false,
// если точка отброшена.
func (t *Tracker) HandleLocation(p Point) bool {
	if t.state == StateIdle {
		return false
	}
	if p.AccuracyM > t.cfg.MaxAccuracyM {
		t.log.Debug("point dropped", "accuracy_m", p.AccuracyM)
		return false
	}
	if n := len(t.points); n > 0 && p.Time.Before(t.points[n-1].Time) {
		return false
	}
	t.points = append(t.points, p)
	return true
}

// Finish закрывает поездку принудительно
func (t *Tracker) Finish() (*Trip, error) {
	if t.state == StateIdle {
		return nil, ErrNotRecording
	}
	return t.close()
}

func (t *Tracker) maybeClose() (*Trip, error) {
	if t.stops < t.cfg.StopConfirmations {
		return nil, nil
	}
	return t.close()
}

func (t *Tracker) close() (*Trip, error) {
	points := t.points
	t.state = StateIdle
	t.points = nil
	t.stops = 0

	trip, err := t.validate(points)
	if err != nil {
		t.log.Info("trip rejected", "error", err)
		return nil, err
	}

	t.log.Info("trip finished", "distance_km", trip.DistanceKm, "duration", trip.Duration())
	return trip, nil
}

func (t *Tracker) validate(points []Point) (*Trip, error) {
	if len(points) < t.cfg.MinPoints {
		return nil, fmt.Errorf("%w: %d points, need at least %d", ErrTripRejected, len(points), t.cfg.MinPoints)
	}

	trip := &Trip{
		StartTime:  points[0].Time,
		EndTime:    points[len(points)-1].Time,
		DistanceKm: PathDistance(points),
		Points:     points,
	}

	if trip.DistanceKm < t.cfg.MinDistanceKm {
		return nil, fmt.Errorf("%w: distance %.2f km is below %.2f km", ErrTripRejected, trip.DistanceKm, t.cfg.MinDistanceKm)
	}
	if trip.Duration() < t.cfg.MinDuration {
		return nil, fmt.Errorf("%w: duration %s is below %s", ErrTripRejected, trip.Duration(), t.cfg.MinDuration)
	}
	return trip, nil
}
