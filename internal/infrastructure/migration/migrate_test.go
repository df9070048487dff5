package migration

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

// MockMigrator — мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func newMigration(m Migrator, engineErr error) (*Migration, *string) {
	var source string
	engine := func(src, db string) (Migrator, error) {
		source = src
		if engineErr != nil {
			return nil, engineErr
		}
		return m, nil
	}
	return NewMigration("migrations", "postgres://localhost/motium", engine, slog.Default()), &source
}

func TestMigration_Up_Success(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Version").Return(uint(3), false, nil)
	mockM.On("Close").Return(nil, nil)

	mg, source := newMigration(mockM, nil)
	err := mg.Up()

	assert.NoError(t, err)
	assert.Equal(t, "file://migrations", *source)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_NoChange(t *testing.T) {
	mockM := new(MockMigrator)

	// ErrNoChange не должна считаться ошибкой
	mockM.On("Up").Return(migrate.ErrNoChange)
	mockM.On("Version").Return(uint(3), false, nil)
	mockM.On("Close").Return(nil, nil)

	mg, _ := newMigration(mockM, nil)
	assert.NoError(t, mg.Up())
}

func TestMigration_Up_Dirty(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Version").Return(uint(2), true, nil)
	mockM.On("Close").Return(nil, nil)

	mg, _ := newMigration(mockM, nil)
	err := mg.Up()

	assert.ErrorContains(t, err, "dirty at version 2")
}

func TestMigration_Up_Failure(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(errors.New("syntax error"))
	mockM.On("Close").Return(nil, errors.New("conn closed"))

	mg, _ := newMigration(mockM, nil)
	err := mg.Up()

	assert.ErrorContains(t, err, "migration up: syntax error")
	assert.ErrorContains(t, err, "migration database: conn closed")
}

func TestMigration_Up_EngineError(t *testing.T) {
	// ошибка на этапе создания мигратора (например, неверный драйвер)
	mg, _ := newMigration(nil, errors.New("engine crash"))
	err := mg.Up()

	assert.Error(t, err)
	assert.Equal(t, "engine crash", err.Error())
}
