package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URI", "postgres://u:p@localhost:5432/chatsync?sslmode=disable")
	t.Setenv("APP_ENV", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, ":8080", cfg.Server.RunAddress)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "migrations/server", cfg.DB.Migrations)
	assert.Equal(t, "info", cfg.Logger.LogLevel)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"DATABASE_URI=postgres://file\nRUN_ADDRESS=:9090\nAPP_ENV=prod\n"), 0o600))

	t.Setenv("DATABASE_URI", "")
	t.Setenv("RUN_ADDRESS", "")
	t.Setenv("APP_ENV", "")
	// godotenv не перезаписывает уже заданные переменные
	require.NoError(t, os.Unsetenv("DATABASE_URI"))
	require.NoError(t, os.Unsetenv("RUN_ADDRESS"))
	require.NoError(t, os.Unsetenv("APP_ENV"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://file", cfg.DB.DatabaseURI)
	assert.Equal(t, ":9090", cfg.Server.RunAddress)
	assert.Equal(t, EnvProd, cfg.Env)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		t.Setenv("DATABASE_URI", "")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("unknown env", func(t *testing.T) {
		t.Setenv("DATABASE_URI", "postgres://x")
		t.Setenv("APP_ENV", "staging")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing env file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
		assert.Error(t, err)
	})
}
