// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/woozymasta/gamestatus/internal/logger"
	"github.com/woozymasta/gamestatus/internal/vars"
)

const (
	// AnyProtocol marks maintenance tasks that apply to every stored record.
	AnyProtocol = "any"

	// DefaultQueryTimeout bounds one request/response round trip.
	DefaultQueryTimeout = 3 * time.Second
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"GAMESTATUS"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"GAMESTATUS_DB"`
	Query     Query         `group:"Query Options" namespace:"query" env-namespace:"GAMESTATUS_QUERY"`
	FiveM     FiveM         `group:"FiveM Options" namespace:"fivem" env-namespace:"GAMESTATUS_FIVEM"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"GAMESTATUS_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"GAMESTATUS_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"GAMESTATUS_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address     string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken   string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin token for record changes"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"4096"`
	TrustProxy  bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Storage holds database configuration and one-shot maintenance tasks.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"gamestatus.db"`
	CheckAll      string `long:"check-all" description:"Re-query stored servers and persist detected protocols. Optional arg: protocol." optional:"true" optional-value:"any"`
	Query         string `long:"query" description:"Query one server and print its status, e.g. mc://host:port"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
}

// Maintenance reports whether a one-shot task was requested instead of the server.
func (s Storage) Maintenance() bool {
	return s.CheckAll != "" || s.Query != "" || s.GenerateCount > 0
}

// Query holds game query protocol configuration.
type Query struct {
	// betteralign:ignore

	Timeout      time.Duration `long:"timeout" env:"TIMEOUT" description:"Timeout of one request/response round trip" default:"3s"`
	BufferSize   uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"UDP receive buffer size" default:"1400"`
	SplitLimit   int           `long:"split-limit" env:"SPLIT_LIMIT" description:"Max incomplete split packet sets kept per session" default:"8"`
	JavaProtocol int           `long:"java-protocol" env:"JAVA_PROTOCOL" description:"Protocol version sent in the Minecraft Java handshake" default:"772"`
	Workers      int           `long:"workers" env:"WORKERS" description:"Background protocol detection workers" default:"2"`
	QueueSize    int           `long:"queue-size" env:"QUEUE_SIZE" description:"Background detection queue size" default:"256"`
}

// FiveM holds FiveM HTTP API configuration.
type FiveM struct {
	// betteralign:ignore

	URL     string        `long:"url" env:"URL" description:"Server tracker API base URL" default:"https://api.gameservertracker.io"`
	CfxURL  string        `long:"cfx-url" env:"CFX_URL" description:"cfx.re single server lookup URL" default:"https://servers-frontend.fivem.net/api/servers/single"`
	IconURL string        `long:"icon-url" env:"ICON_URL" description:"cfx.re server icon base URL" default:"https://servers-live.fivem.net/servers/icon"`
	Timeout time.Duration `long:"timeout" env:"TIMEOUT" description:"HTTP request timeout" default:"2s"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup" default:"gamestatus.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Ad-hoc query limit per IP: requests count" default:"30"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Ad-hoc query limit per IP: window duration" default:"1m"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return &cfg
}

// Validate checks values go-flags cannot express.
func (c *Config) Validate() error {
	if c.Server.AuthToken == "" && !c.Storage.Maintenance() {
		return fmt.Errorf("required flag `-t, --auth-token' or environment variable `GAMESTATUS_AUTH_TOKEN` was not specified")
	}
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.Query.Timeout)
	}
	if c.Query.Workers < 1 {
		return fmt.Errorf("query workers must be at least 1, got %d", c.Query.Workers)
	}
	if c.Query.BufferSize < 576 {
		return fmt.Errorf("query buffer size %d is below the minimum datagram size", c.Query.BufferSize)
	}
	return nil
}
