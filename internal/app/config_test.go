package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no config.yaml or .env
// from the repository is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("STOREFRONT_DATABASE_URL", "postgres://localhost/storefront")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, "postgres://localhost/storefront", cfg.DatabaseURL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "storefront.orders", cfg.Kafka.Topic)
	assert.Equal(t, 10, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_MissingDatabaseURL(t *testing.T) {
	inTempDir(t)
	t.Setenv("STOREFRONT_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig([]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("STOREFRONT_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("STOREFRONT_DATABASE_URL=postgres://dotenv/db\nSTOREFRONT_REDIS_ADDR=localhost:6379\n"), 0o600))
	t.Setenv("STOREFRONT_DATABASE_URL", "")
	t.Setenv("STOREFRONT_REDIS_ADDR", "")
	// godotenv never overrides variables that are already set, so unset them.
	require.NoError(t, os.Unsetenv("STOREFRONT_DATABASE_URL"))
	require.NoError(t, os.Unsetenv("STOREFRONT_REDIS_ADDR"))

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/db", cfg.DatabaseURL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	t.Cleanup(func() {
		_ = os.Unsetenv("STOREFRONT_DATABASE_URL")
		_ = os.Unsetenv("STOREFRONT_REDIS_ADDR")
	})
}

func TestLoadConfig_Flags(t *testing.T) {
	inTempDir(t)
	t.Setenv("STOREFRONT_DATABASE_URL", "postgres://env/db")

	cfg, err := LoadConfig([]string{"-database-url=postgres://flag/db"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/db", cfg.DatabaseURL)
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
addr: 127.0.0.1:7000
database_url: postgres://yaml/db
rate_limit:
  max: 3
  window: 30s
`), 0o600))

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, "postgres://yaml/db", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.RateLimit.Max)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}
