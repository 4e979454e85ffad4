package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for unusable settings
var ErrInvalid = errors.New("invalid config")

// Config holds every setting of the tournament server.
type Config struct {
	ListenAddr     string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	AdminAddr      string        `yaml:"admin_addr" env:"ADMIN_ADDR"`
	ReadBufferSize int           `yaml:"read_buffer_size" env:"READ_BUFFER_SIZE"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`

	Liveness LivenessConfig `yaml:"liveness" envPrefix:"LIVENESS_"`
	Round    RoundConfig    `yaml:"round" envPrefix:"ROUND_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	NATS     NATSConfig     `yaml:"nats" envPrefix:"NATS_"`
}

// LivenessConfig controls when a silent client stops counting as active
type LivenessConfig struct {
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// RoundConfig controls round pacing
type RoundConfig struct {
	CollectTimeout time.Duration `yaml:"collect_timeout" env:"COLLECT_TIMEOUT"`
	Interval       time.Duration `yaml:"interval" env:"INTERVAL"`
	MaxRounds      int           `yaml:"max_rounds" env:"MAX_ROUNDS"` // 0 means unlimited
}

// LogConfig selects zerolog level and output format
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // console or json
}

// NATSConfig enables the JetStream event publisher when URL is set
type NATSConfig struct {
	URL           string        `yaml:"url" env:"URL"`
	Stream        string        `yaml:"stream" env:"STREAM"`
	SubjectPrefix string        `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
	MaxReconnects int           `yaml:"max_reconnects" env:"MAX_RECONNECTS"`
	ReconnectWait time.Duration `yaml:"reconnect_wait" env:"RECONNECT_WAIT"`
}

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "TOURNEY_"

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		AdminAddr:      ":8082",
		ReadBufferSize: 1024,
		ReadTimeout:    time.Second,
		Liveness: LivenessConfig{
			Timeout:       10 * time.Second,
			SweepInterval: 3 * time.Second,
		},
		Round: RoundConfig{
			CollectTimeout: 15 * time.Second,
			Interval:       time.Second,
			MaxRounds:      100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		NATS: NATSConfig{
			Stream:        "TOURNAMENT_EVENTS",
			SubjectPrefix: "tournament.events",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
	}
}

// Load layers defaults, the optional YAML file at path, then TOURNEY_*
// environment variables, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("%w: listen_addr is required", ErrInvalid))
	}
	if c.ReadBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: read_buffer_size must be positive", ErrInvalid))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: read_timeout must be positive", ErrInvalid))
	}
	if c.Liveness.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: liveness.timeout must be positive", ErrInvalid))
	}
	if c.Liveness.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: liveness.sweep_interval must be positive", ErrInvalid))
	}
	if c.Round.CollectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: round.collect_timeout must be positive", ErrInvalid))
	}
	if c.Round.Interval < 0 {
		errs = append(errs, fmt.Errorf("%w: round.interval must not be negative", ErrInvalid))
	}
	if c.Round.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("%w: round.max_rounds must not be negative", ErrInvalid))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: log.format must be console or json, got %q", ErrInvalid, c.Log.Format))
	}
	return errors.Join(errs...)
}

// NATSEnabled reports whether domain events should go to JetStream
func (c Config) NATSEnabled() bool {
	return c.NATS.URL != ""
}
