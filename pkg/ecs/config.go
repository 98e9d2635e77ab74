package ecs

import (
	"os"

	"github.com/argus-labs/lattice/pkg/ecs/internal/stage"
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// worldConfig holds the configuration for a World instance.
// Configuration can be set via environment variables with the specified defaults.
type worldConfig struct {
	// Minimum level of the world logger.
	LogLevel string `env:"ECS_LOG_LEVEL" envDefault:"info"`

	// Log encoding, json or pretty.
	LogFormat string `env:"ECS_LOG_FORMAT" envDefault:"pretty"`

	// Number of entities the registry and value stores are sized for up front.
	EntityCapacity int `env:"ECS_ENTITY_CAPACITY" envDefault:"1024"`

	// Degree of the B-tree backing the command stage.
	StageDegree int `env:"ECS_STAGE_DEGREE" envDefault:"16"`
}

// loadWorldConfig loads the world configuration from environment variables.
func loadWorldConfig() (worldConfig, error) {
	cfg := worldConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse world config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

// validate performs validation on the loaded configuration.
func (cfg *worldConfig) validate() error {
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return eris.Wrapf(err, "invalid log level %q", cfg.LogLevel)
	}
	if cfg.LogFormat != logFormatJSON && cfg.LogFormat != logFormatPretty {
		return eris.Errorf("log format must be %q or %q, got %q", logFormatJSON, logFormatPretty, cfg.LogFormat)
	}
	if cfg.EntityCapacity <= 0 {
		return eris.New("entity capacity must be positive")
	}
	if cfg.StageDegree < 2 {
		return eris.New("stage degree must be at least 2")
	}
	return nil
}

// applyToOptions applies the configuration values to the given WorldOptions.
func (cfg *worldConfig) applyToOptions(opt *WorldOptions) {
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := newLogger(cfg.LogFormat, level)
	opt.Logger = &logger
	opt.EntityCapacity = cfg.EntityCapacity
	opt.StageDegree = cfg.StageDegree
}

const (
	logFormatJSON   = "json"
	logFormatPretty = "pretty"
)

func newLogger(format string, level zerolog.Level) zerolog.Logger {
	var logger zerolog.Logger
	if format == logFormatJSON {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

type WorldOptions struct {
	Logger         *zerolog.Logger // Logger to use, built from ECS_LOG_* when nil
	EntityCapacity int             // Initial entity capacity
	StageDegree    int             // B-tree degree of the command stage
}

// newDefaultWorldOptions creates WorldOptions with default values.
func newDefaultWorldOptions() WorldOptions {
	logger := zerolog.Nop()
	return WorldOptions{
		Logger:         &logger,
		EntityCapacity: 1024,
		StageDegree:    stage.DefaultDegree,
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *WorldOptions) apply(newOpt WorldOptions) {
	if newOpt.Logger != nil {
		opt.Logger = newOpt.Logger
	}
	if newOpt.EntityCapacity != 0 {
		opt.EntityCapacity = newOpt.EntityCapacity
	}
	if newOpt.StageDegree != 0 {
		opt.StageDegree = newOpt.StageDegree
	}
}

// validate checks that all required options are set and valid.
func (opt *WorldOptions) validate() error {
	if opt.Logger == nil {
		return eris.New("logger cannot be nil")
	}
	if opt.EntityCapacity <= 0 {
		return eris.New("entity capacity must be positive")
	}
	if opt.StageDegree < 2 {
		return eris.New("stage degree must be at least 2")
	}
	return nil
}
