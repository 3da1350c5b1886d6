package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/pair-relay/logging"
	"github.com/wricardo/pair-relay/transport/websocket"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete relay configuration.
type Config struct {
	Host      string
	// Port 0 listens on an ephemeral port.
	Port      int
	Debug     bool
	LogFormat string

	WebSocket websocket.Options

	// APIURL is the relay the mcp command proxies to.
	APIURL string

	Ngrok Ngrok
}

// Ngrok configures the optional public tunnel.
type Ngrok struct {
	Enabled   bool
	AuthToken string
	Domain    string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Host:      "localhost",
		Port:      8080,
		LogFormat: logging.FormatConsole,
		WebSocket: websocket.DefaultOptions(),
		APIURL:    "http://localhost:8080",
	}
}

// Addr returns the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LogLevel returns the minimum level to log.
func (c Config) LogLevel() string {
	if c.Debug {
		return "debug"
	}
	return "info"
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.LogFormat != logging.FormatConsole && c.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log format %q must be %q or %q", c.LogFormat, logging.FormatConsole, logging.FormatJSON))
	}

	ws := c.WebSocket
	if ws.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("max message size must be positive, got %d", ws.MaxMessageSize))
	}
	if ws.SendBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("send buffer must be positive, got %d", ws.SendBufferSize))
	}
	if ws.WriteWait <= 0 {
		errs = append(errs, fmt.Errorf("write wait must be positive, got %s", ws.WriteWait))
	}
	if ws.PongWait <= ws.WriteWait {
		errs = append(errs, fmt.Errorf("pong wait (%s) must exceed write wait (%s)", ws.PongWait, ws.WriteWait))
	}

	if c.Ngrok.Enabled && c.Ngrok.AuthToken == "" {
		errs = append(errs, errors.New("ngrok enabled but no auth token provided"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// LoadDotEnv loads .env files into the environment. Missing files are not an
// error; variables already set are kept.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// Flags returns the command-line flags, each backed by an environment variable.
func Flags() []cli.Flag {
	def := Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   def.Host,
			Usage:   "HTTP server host",
			Sources: cli.EnvVars("RELAY_HOST"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   def.Port,
			Usage:   "HTTP server port (0 picks a free port)",
			Sources: cli.EnvVars("RELAY_PORT", "PORT"),
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			Sources: cli.EnvVars("RELAY_DEBUG"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   def.LogFormat,
			Usage:   "Log output format (console or json)",
			Sources: cli.EnvVars("RELAY_LOG_FORMAT"),
		},
		&cli.IntFlag{
			Name:    "max-message-size",
			Value:   int(def.WebSocket.MaxMessageSize),
			Usage:   "Maximum inbound frame size in bytes",
			Sources: cli.EnvVars("RELAY_MAX_MESSAGE_SIZE"),
		},
		&cli.IntFlag{
			Name:    "send-buffer",
			Value:   def.WebSocket.SendBufferSize,
			Usage:   "Outbound frames buffered per connection",
			Sources: cli.EnvVars("RELAY_SEND_BUFFER"),
		},
		&cli.DurationFlag{
			Name:    "write-wait",
			Value:   def.WebSocket.WriteWait,
			Usage:   "Time allowed to write a frame to a peer",
			Sources: cli.EnvVars("RELAY_WRITE_WAIT"),
		},
		&cli.DurationFlag{
			Name:    "pong-wait",
			Value:   def.WebSocket.PongWait,
			Usage:   "Time allowed between pongs before a connection is dropped",
			Sources: cli.EnvVars("RELAY_PONG_WAIT"),
		},
		&cli.StringSliceFlag{
			Name:    "allowed-origin",
			Usage:   "Allowed Origin header value (repeatable, empty allows all)",
			Sources: cli.EnvVars("RELAY_ALLOWED_ORIGINS"),
		},
		&cli.StringFlag{
			Name:    "api-url",
			Value:   def.APIURL,
			Usage:   "Relay REST API the mcp command proxies to",
			Sources: cli.EnvVars("RELAY_API_URL"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "Enable ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "Ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "Custom ngrok domain (optional)",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

// FromCommand reads the configuration from parsed flags.
func FromCommand(cmd *cli.Command) Config {
	return Config{
		Host:      cmd.String("host"),
		Port:      cmd.Int("port"),
		Debug:     cmd.Bool("debug"),
		LogFormat: cmd.String("log-format"),
		WebSocket: websocket.Options{
			WriteWait:      cmd.Duration("write-wait"),
			PongWait:       cmd.Duration("pong-wait"),
			MaxMessageSize: int64(cmd.Int("max-message-size")),
			SendBufferSize: cmd.Int("send-buffer"),
			AllowedOrigins: cmd.StringSlice("allowed-origin"),
		},
		APIURL: cmd.String("api-url"),
		Ngrok: Ngrok{
			Enabled:   cmd.Bool("ngrok"),
			AuthToken: cmd.String("ngrok-auth"),
			Domain:    cmd.String("ngrok-domain"),
		},
	}
}
