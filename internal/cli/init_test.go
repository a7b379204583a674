package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"granttrack/internal/config"
	applog "granttrack/internal/log"
	"granttrack/internal/storage"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestStorageConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: "/tmp/g.db", TitleCaseNames: true}
	got := StorageConfig(cfg)
	assert.Equal(t, storage.DialectSQLite, got.Dialect)
	assert.Equal(t, "/tmp/g.db", got.SQLitePath)
	assert.True(t, got.Normalizer.TitleCase)

	cfg = &config.Config{DataBackend: "postgres", DatabaseURL: "postgres://u@localhost/grants"}
	got = StorageConfig(cfg)
	assert.Equal(t, storage.DialectPostgres, got.Dialect)
	assert.Equal(t, "postgres://u@localhost/grants", got.DatabaseURL)
	assert.False(t, got.Normalizer.TitleCase)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "GRANTTRACK_CLI_TEST_VALUE"
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { os.Unsetenv(key) })

	LoadEnvFile(path)
	assert.Equal(t, "from-file", os.Getenv(key))

	t.Setenv(key, "from-env")
	LoadEnvFile(path)
	assert.Equal(t, "from-env", os.Getenv(key), "existing variables win over .env")

	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestOpenEventsDisabledWithoutURL(t *testing.T) {
	client, pub, err := OpenEvents(quietLogger(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.Nil(t, pub)
}

func TestOpenSheetsDisabledWithoutSpreadsheet(t *testing.T) {
	w, err := OpenSheets(context.Background(), quietLogger(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestOpenStoreAppliesMigrations(t *testing.T) {
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: filepath.Join(t.TempDir(), "data", "g.db")}
	store := OpenStore(context.Background(), quietLogger(), cfg)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))
}
