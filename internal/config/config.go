// Package config builds the immutable runtime configuration of the bridge.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the UDP port the command server tries first
	DefaultPort = 33333

	// Exclusive bounds for the command port
	minPort = 1024
	maxPort = 63335
)

// ErrInvalidPort is returned when the port is outside (1024, 63335)
var ErrInvalidPort = errors.New("invalid port number")

// Config holds the application configuration. It is built once by Load and
// passed around by value.
type Config struct {
	// Port is the first UDP port the command server tries to bind
	Port int `yaml:"port" default:"33333" validate:"gt=1024,lt=63335"`

	// Action is accepted for bar compatibility and otherwise ignored
	Action string `yaml:"-"`

	Player PlayerConfig `yaml:"player"`
	Icons  Icons        `yaml:"icons"`
	Poller PollerConfig `yaml:"poller"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// PlayerConfig locates the MPRIS player on the session bus
type PlayerConfig struct {
	BusName     string        `yaml:"bus_name" default:"org.mpris.MediaPlayer2.spotify" validate:"required"`
	ObjectPath  string        `yaml:"object_path" default:"/org/mpris/MediaPlayer2" validate:"required,startswith=/"`
	Interface   string        `yaml:"interface" default:"org.mpris.MediaPlayer2.Player" validate:"required"`
	CallTimeout time.Duration `yaml:"call_timeout" default:"5s" validate:"gt=0"`
}

// Icons are the glyphs written to the bar
type Icons struct {
	App      string `yaml:"app"`
	Note     string `yaml:"note"`
	Playing  string `yaml:"playing"`
	Paused   string `yaml:"paused"`
	Stopped  string `yaml:"stopped"`
	Previous string `yaml:"previous"`
	Next     string `yaml:"next"`
}

// SetDefaults fills unset icons with the Nerd Font glyphs
func (i *Icons) SetDefaults() {
	set := func(field *string, glyph string) {
		if *field == "" {
			*field = glyph
		}
	}
	set(&i.App, "\uf1bc")
	set(&i.Note, "\uf1bc")
	set(&i.Playing, "\uf04b")
	set(&i.Paused, "\uf04c")
	set(&i.Stopped, "\uf04d")
	set(&i.Previous, "\uf04a")
	set(&i.Next, "\uf04e")
}

// PollerConfig tunes the status loop
type PollerConfig struct {
	Interval      time.Duration `yaml:"interval" default:"3500ms" validate:"gt=0"`
	ParseFallback string        `yaml:"parse_fallback" default:"An error occured while parsing"`
}

// ServerConfig tunes the command server
type ServerConfig struct {
	Host               string        `yaml:"host" default:"127.0.0.1" validate:"required,ip"`
	BindRetryDelay     time.Duration `yaml:"bind_retry_delay" default:"1s" validate:"gt=0"`
	ReconnectDelay     time.Duration `yaml:"reconnect_delay" default:"3500ms" validate:"gte=0"`
	MaxDatagramSize    int           `yaml:"max_datagram_size" default:"2048" validate:"gt=0,lte=65535"`
	FatalCommandErrors bool          `yaml:"fatal_command_errors"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Options carries values coming from the command line.
// Zero values mean "not given".
type Options struct {
	Path               string
	Port               int
	Action             string
	FatalCommandErrors bool
	Verbose            bool
}

// Load builds the configuration from, in increasing precedence: defaults,
// the optional YAML file, SPOTBAR_* environment variables and flags.
func Load(opts Options) (Config, error) {
	var cfg Config

	if opts.Path != "" {
		data, err := os.ReadFile(expandPath(opts.Path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to set defaults: %w", err)
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return Config{}, err
	}

	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	cfg.Action = opts.Action
	if opts.FatalCommandErrors {
		cfg.Server.FatalCommandErrors = true
	}
	if opts.Verbose {
		cfg.Log.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field. A bad port is reported as ErrInvalidPort.
func (c Config) Validate() error {
	if c.Port <= minPort || c.Port >= maxPort {
		return fmt.Errorf("%w: %d, expected %d < port < %d", ErrInvalidPort, c.Port, minPort, maxPort)
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Addr returns the first address the command server tries
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Port))
}

func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("SPOTBAR_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SPOTBAR_PORT=%q", ErrInvalidPort, v)
		}
		c.Port = port
	}
	if v := os.Getenv("SPOTBAR_PLAYER"); v != "" {
		c.Player.BusName = v
	}
	return nil
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
