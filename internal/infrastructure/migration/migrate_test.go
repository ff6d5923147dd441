package migration

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockMigrator — мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func TestMigration_Up_Success(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(nil, nil)

	var gotSource, gotDB string
	engine := func(source, db string) (Migrator, error) {
		gotSource, gotDB = source, db
		return mockM, nil
	}

	mg := NewMigration("migrations/server", "postgres://localhost/chatsync", engine)
	err := mg.Up()

	assert.NoError(t, err)
	assert.Equal(t, "file://migrations/server", gotSource)
	assert.Equal(t, "postgres://localhost/chatsync", gotDB)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_NoChange(t *testing.T) {
	mockM := new(MockMigrator)

	// ErrNoChange не должна считаться ошибкой в методе Up()
	mockM.On("Up").Return(migrate.ErrNoChange)
	mockM.On("Close").Return(nil, nil)

	engine := func(source, db string) (Migrator, error) {
		return mockM, nil
	}

	err := NewMigration("", "", engine).Up()

	assert.NoError(t, err)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_EngineError(t *testing.T) {
	engine := func(source, db string) (Migrator, error) {
		return nil, errors.New("connection refused")
	}

	err := NewMigration("", "", engine).Up()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMigration_Up_CloseErrors(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(errors.New("dirty database"))
	mockM.On("Close").Return(errors.New("source closed"), errors.New("db closed"))

	engine := func(source, db string) (Migrator, error) {
		return mockM, nil
	}

	err := NewMigration("", "", engine).Up()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dirty database")
	assert.Contains(t, err.Error(), "source closed")
	assert.Contains(t, err.Error(), "db closed")
}
