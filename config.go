package formula

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ============================================================
// Configuration
// ============================================================

// Config is the file/env configuration of the engine and its server.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// EngineConfig bounds canonicalization.
type EngineConfig struct {
	MaxPasses      int `yaml:"max_passes" validate:"gte=1,lte=1024"`
	MaxSteps       int `yaml:"max_steps" validate:"gte=1"`
	PowerPrecision int `yaml:"power_precision" validate:"gte=-18,lte=-1"`
}

// ServerConfig configures cmd/formula-server.
type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	RateLimit    float64       `yaml:"rate_limit" validate:"gt=0"`
	Burst        int           `yaml:"burst" validate:"gte=1"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"gte=1024"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

var validate = validator.New()

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			MaxPasses:      DefaultMaxPasses,
			MaxSteps:       DefaultMaxSteps,
			PowerPrecision: DefaultPowerPrecision,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			RateLimit:    50,
			Burst:        100,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if
// path is non-empty and the file exists), then FORMULA_* environment
// variables, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults
		case err != nil:
			return cfg, fmt.Errorf("load config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FORMULA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FORMULA_MAX_PASSES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Engine.MaxPasses = i
		}
	}
	if v := os.Getenv("FORMULA_MAX_STEPS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Engine.MaxSteps = i
		}
	}
	if v := os.Getenv("FORMULA_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Server.RateLimit = f
		}
	}
	if v := os.Getenv("FORMULA_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("FORMULA_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
}

// Validate checks the configuration against its field constraints.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Options converts the engine section into Formula options.
func (c Config) Options(logger *slog.Logger) Options {
	return Options{
		MaxPasses:      c.Engine.MaxPasses,
		MaxSteps:       c.Engine.MaxSteps,
		PowerPrecision: c.Engine.PowerPrecision,
		Logger:         logger,
	}
}

// NewLogger builds the slog logger described by the log section.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
