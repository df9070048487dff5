package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"motium/internal/app/client/config"
	"motium/internal/domain/mileage"
	"motium/internal/domain/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		ServerAddress:    "127.0.0.1:1",
		ConfigDir:        dir,
		DBPath:           filepath.Join(dir, "motium.db"),
		TokenPath:        filepath.Join(dir, "tokens.json"),
		DeviceIDPath:     filepath.Join(dir, "device_id"),
		ConflictStrategy: config.StrategyNewer,
	}

	app, err := New(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestApp_LocalFirstRecords(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)

	car, err := app.Add(ctx, &record.Vehicle{Name: "Clio", Type: record.VehicleCar, Power: mileage.Power5CV, Energy: record.EnergyFuel})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, car.SyncStatus)

	_, err = app.Add(ctx, &record.Vehicle{Name: "", Type: record.VehicleCar})
	assert.ErrorIs(t, err, record.ErrInvalidData)

	_, err = app.Edit(ctx, car.ID, &record.Expense{Date: time.Now(), Type: record.ExpenseToll, Amount: 3})
	assert.ErrorIs(t, err, record.ErrInvalidData, "kind cannot change")

	_, err = app.Edit(ctx, car.ID, &record.Vehicle{Name: "Clio V", Type: record.VehicleCar, Power: mileage.Power5CV, Energy: record.EnergyHybrid})
	require.NoError(t, err)

	vehicles, err := ListOf[record.Vehicle](ctx, app, record.KindVehicle)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "Clio V", vehicles[0].Data.Name)
	assert.Equal(t, record.EnergyHybrid, vehicles[0].Data.Energy)

	st, err := app.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending)
	assert.Nil(t, st.Server, "not logged in")

	require.NoError(t, app.Delete(ctx, car.ID))
	_, err = app.Get(ctx, car.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = app.Sync(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestApp_SimulateTripAndReport(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t)

	_, err := app.Add(ctx, &record.Vehicle{Name: "Clio", Type: record.VehicleCar, Power: mileage.Power4CV, Energy: record.EnergyFuel, IsDefault: true})
	require.NoError(t, err)

	rec, trip, err := app.SimulateTrip(ctx, "lyon-aix", 60, 20*time.Second, record.TripProfessional, "")
	require.NoError(t, err)
	assert.Equal(t, record.KindTrip, rec.Kind)
	assert.Greater(t, trip.DistanceKm, 80.0)

	trips, err := ListOf[record.Trip](ctx, app, record.KindTrip)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "Lyon", trips[0].Data.StartAddress)
	assert.Equal(t, "Aix-les-Bains", trips[0].Data.EndAddress)

	year := trips[0].Data.StartTime.Year()
	rep, err := app.Report(ctx, year)
	require.NoError(t, err)
	require.Len(t, rep.Vehicles, 1)
	assert.Zero(t, rep.Vehicles[0].Trips, "unvalidated trips are not reported")

	validated := trips[0].Data
	validated.Validated = true
	_, err = app.Edit(ctx, rec.ID, &validated)
	require.NoError(t, err)

	rep, err = app.Report(ctx, year)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Vehicles[0].Trips)
	require.NotNil(t, rep.Vehicles[0].Allowance)
	assert.Greater(t, rep.AllowanceTotal, 0.0)

	_, _, err = app.SimulateTrip(ctx, "nowhere", 60, time.Second, record.TripPersonal, "")
	assert.Error(t, err)
}
