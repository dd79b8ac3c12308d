package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearStoreEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "DATA_FILE"} {
		t.Setenv(key, "")
	}
}

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.AdminPassword)
	assert.Equal(t, "admin", cfg.AdminUsername)
}

func TestLoadInfersStoreDriver(t *testing.T) {
	clearStoreEnv(t)
	assert.Equal(t, DriverMemory, Load().StoreDriver)

	t.Setenv("DATA_FILE", "/tmp/smartpdv.json")
	assert.Equal(t, DriverFile, Load().StoreDriver)

	t.Setenv("SQLITE_PATH", "/tmp/smartpdv.db")
	assert.Equal(t, DriverSQLite, Load().StoreDriver)

	t.Setenv("DATABASE_URL", "postgres://localhost/smartpdv")
	assert.Equal(t, DriverPostgres, Load().StoreDriver)

	t.Setenv("STORE_DRIVER", "File")
	assert.Equal(t, DriverFile, Load().StoreDriver)
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("DASHBOARD_CACHE_TTL_SECONDS", "-4")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "soon")
	t.Setenv("SEED_DEMO", "yes please")

	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.DashboardCacheTTL())
	assert.Equal(t, 480*time.Minute, cfg.AccessTokenTTL())
	assert.False(t, cfg.SeedDemo)
}

func TestLocation(t *testing.T) {
	cfg := Config{ReportTimezone: "America/Sao_Paulo"}
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())

	cfg.ReportTimezone = ""
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.ReportTimezone = "Mars/Olympus"
	_, err = cfg.Location()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SMARTPDV_CONFIG_TEST_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SMARTPDV_CONFIG_TEST_KEY") })

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("SMARTPDV_CONFIG_TEST_KEY"))
}
