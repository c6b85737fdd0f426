package config

import (
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args ...string) *Config {
	t.Helper()

	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default&^flags.PrintErrors)
	parser.NamespaceDelimiter = "-"

	_, err := parser.ParseArgs(args)
	require.NoError(t, err)

	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := parseArgs(t, "-t", "secret")

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "gamestatus.db", cfg.Storage.Path)
	assert.Equal(t, 3*time.Second, cfg.Query.Timeout)
	assert.Equal(t, uint16(1400), cfg.Query.BufferSize)
	assert.Equal(t, 772, cfg.Query.JavaProtocol)
	assert.Equal(t, 8, cfg.Query.SplitLimit)
	assert.Equal(t, 2*time.Second, cfg.FiveM.Timeout)
	assert.Equal(t, "https://api.gameservertracker.io", cfg.FiveM.URL)
	assert.False(t, cfg.Storage.Maintenance())
	assert.NoError(t, cfg.Validate())
}

func TestNamespacedFlags(t *testing.T) {
	cfg := parseArgs(t,
		"--db-check-all",
		"--query-timeout", "750ms",
		"--fivem-url", "http://localhost:9000",
		"--log-level", "debug",
	)

	assert.Equal(t, AnyProtocol, cfg.Storage.CheckAll)
	assert.True(t, cfg.Storage.Maintenance())
	assert.Equal(t, 750*time.Millisecond, cfg.Query.Timeout)
	assert.Equal(t, "http://localhost:9000", cfg.FiveM.URL)
	assert.Equal(t, "debug", cfg.Logger.Level)

	// maintenance runs do not need the admin token
	assert.NoError(t, cfg.Validate())
}

func TestEnvironment(t *testing.T) {
	t.Setenv("GAMESTATUS_QUERY_WORKERS", "6")
	t.Setenv("GAMESTATUS_AUTH_TOKEN", "from-env")

	cfg := parseArgs(t)
	assert.Equal(t, 6, cfg.Query.Workers)
	assert.Equal(t, "from-env", cfg.Server.AuthToken)
}

func TestValidate(t *testing.T) {
	cfg := parseArgs(t)
	assert.Error(t, cfg.Validate())

	cfg = parseArgs(t, "-t", "x", "--query-workers", "0")
	assert.Error(t, cfg.Validate())

	cfg = parseArgs(t, "-t", "x", "--query-buffer-size", "100")
	assert.Error(t, cfg.Validate())
}
