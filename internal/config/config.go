// Package config loads linkengine configuration from a YAML file and
// LINKENGINE_* environment variables.
//
// Precedence, highest first: flags bound by the caller, environment,
// config file, defaults. Nested keys map to env names with underscores,
// e.g. engine.workers -> LINKENGINE_ENGINE_WORKERS.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/rf-link-engine/core"
	"github.com/signalsfoundry/rf-link-engine/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LINKENGINE"

// Config is the root configuration of the linkengine binary.
type Config struct {
	// Scenario is the YAML topology to load.
	Scenario string `mapstructure:"scenario"`

	// Watch reloads the scenario when the file changes.
	Watch bool `mapstructure:"watch"`

	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Interval forces a pass on a wall-clock ticker even without
	// topology changes. Zero disables it.
	Interval time.Duration `mapstructure:"interval"`

	Engine  core.Config   `mapstructure:"engine"`
	Clock   ClockConfig   `mapstructure:"clock"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ClockConfig drives the simulation clock that propagates orbits.
type ClockConfig struct {
	// Start is an RFC 3339 timestamp, quoted or not. The zero time means
	// the scenario epoch, or now when the scenario has none.
	Start time.Time     `mapstructure:"start"`
	Tick  time.Duration `mapstructure:"tick"`
	Mode  string        `mapstructure:"mode"` // realtime | accelerated
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Logger builds the configured logger writing to w (stdout when nil).
func (c LoggingConfig) Logger(w io.Writer) logging.Logger {
	return logging.New(logging.Config{
		Level:     c.Level,
		Format:    c.Format,
		AddSource: true,
		Writer:    w,
	})
}

// New returns a viper instance with defaults and env overrides installed.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads cfgFile (or searches ./ and ./configs for linkengine.yaml
// when empty) into v and decodes the result.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("linkengine")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case cfgFile == "" && errors.As(err, &notFound):
		case cfgFile != "" && errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config file %q: %w", cfgFile, err)
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// decodeHook extends viper's default hooks with RFC 3339 timestamps. YAML
// timestamps may arrive already decoded as time.Time; those pass through.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToTimeHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func setDefaults(v *viper.Viper) {
	def := core.DefaultConfig()

	v.SetDefault("scenario", "configs/scenario.yaml")
	v.SetDefault("watch", false)
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("interval", "0s")

	v.SetDefault("engine.workers", def.Workers)
	v.SetDefault("engine.chunk_size", def.ChunkSize)

	v.SetDefault("clock.start", "")
	v.SetDefault("clock.tick", "10s")
	v.SetDefault("clock.mode", "realtime")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func validate(cfg *Config) error {
	if cfg.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.ChunkSize < 0 {
		return fmt.Errorf("engine.chunk_size must be >= 0, got %d", cfg.Engine.ChunkSize)
	}
	if cfg.Clock.Tick <= 0 {
		return fmt.Errorf("clock.tick must be positive, got %s", cfg.Clock.Tick)
	}
	switch cfg.Clock.Mode {
	case "realtime", "accelerated":
	default:
		return fmt.Errorf("clock.mode must be realtime or accelerated, got %q", cfg.Clock.Mode)
	}
	if cfg.Interval < 0 {
		return fmt.Errorf("interval must be >= 0, got %s", cfg.Interval)
	}
	return nil
}
