// Package logger initializes and configures the global zerolog instance.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds configuration options for the application logger.
type Config struct {
	Level  string `long:"level" env:"LEVEL" description:"Log level (trace, debug, info, warn, error)" default:"info" json:"level"`
	Format string `long:"format" env:"FORMAT" description:"Log format (console or json)" default:"console" json:"format"`
	Output string `long:"output" env:"OUTPUT" description:"Log output (stdout, stderr or file path)" default:"stderr" json:"output"`
}

// Setup initializes the global logger based on the provided configuration options.
func Setup(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writer, err := openOutput(cfg.Output)
	if err != nil {
		fallback := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		fallback.Error().Err(err).Str("path", cfg.Output).Msg("failed to open log file, falling back to stderr")
		writer = os.Stderr
	}

	log.Logger = New(cfg.Format, writer)
}

// New builds a logger writing to w in the given format. Console output is
// colored only when w is a terminal and NO_COLOR is unset.
func New(format string, w io.Writer) zerolog.Logger {
	if strings.EqualFold(format, "json") {
		return zerolog.New(w).With().Timestamp().Logger()
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	if f, ok := w.(*os.File); ok && os.Getenv("NO_COLOR") == "" && isTerminal(f) {
		console.NoColor = false
	}

	return zerolog.New(console).With().Timestamp().Logger()
}

// openOutput resolves stdout, stderr or a file path opened for append.
func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}

	return os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// isTerminal checks if the provided file descriptor refers to a character device (terminal).
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}

	return (stat.Mode() & os.ModeCharDevice) != 0
}
