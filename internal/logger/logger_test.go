package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer

	l := New("json", &buf)
	l.Info().Str("addr", "127.0.0.1:27015").Msg("server online")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "server online", entry["message"])
	assert.Equal(t, "127.0.0.1:27015", entry["addr"])
	assert.Contains(t, entry, "time")
}

func TestNewConsoleWithoutColor(t *testing.T) {
	var buf bytes.Buffer

	l := New("console", &buf)
	l.Warn().Msg("send while not ready")

	assert.Contains(t, buf.String(), "send while not ready")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestSetupFileOutput(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "app.log")
	Setup(Config{Level: "DEBUG", Format: "json", Output: path})

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	log.Debug().Msg("written to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestSetupBadLevelFallsBackToInfo(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	Setup(Config{Level: "loud", Output: "stderr"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
