package config

import (
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/momentum/internal/errors"
	"github.com/copyleftdev/momentum/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		WorkerCount    int           `env:"OPT_WORKER_COUNT" envDefault:"10"`
		DefaultAlpha   float64       `env:"OPT_DEFAULT_ALPHA" envDefault:"0.01"`
		DefaultBeta    float64       `env:"OPT_DEFAULT_BETA" envDefault:"0.9"`
		DefaultEpsilon float64       `env:"OPT_DEFAULT_EPSILON" envDefault:"1e-6"`
		DefaultMaxIter int           `env:"OPT_DEFAULT_MAX_ITER" envDefault:"1000"`
		MaxMaxIter     int           `env:"OPT_MAX_MAX_ITER" envDefault:"1000000"`
		MaxDimension   int           `env:"OPT_MAX_DIMENSION" envDefault:"10000"`
		// MaxTraceValues caps the float64 values one trace may hold,
		// (max_iter+1)*dim, doubled for methods recording a look-ahead.
		MaxTraceValues int64         `env:"OPT_MAX_TRACE_VALUES" envDefault:"10000000"`
		JobTTL         time.Duration `env:"OPT_JOB_TTL" envDefault:"1h"`
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment").WithComponent("config")
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env.Parse cannot.
func (c *Config) Validate() error {
	if c.Optimization.WorkerCount < 1 {
		return errors.Errorf("OPT_WORKER_COUNT must be at least 1, got %d", c.Optimization.WorkerCount).
			WithComponent("config")
	}
	if c.Optimization.MaxDimension < 1 {
		return errors.Errorf("OPT_MAX_DIMENSION must be at least 1, got %d", c.Optimization.MaxDimension).
			WithComponent("config")
	}
	if c.Optimization.MaxTraceValues < 1 {
		return errors.Errorf("OPT_MAX_TRACE_VALUES must be at least 1, got %d", c.Optimization.MaxTraceValues).
			WithComponent("config")
	}
	if c.Optimization.DefaultMaxIter > c.Optimization.MaxMaxIter {
		return errors.Errorf("OPT_DEFAULT_MAX_ITER (%d) exceeds OPT_MAX_MAX_ITER (%d)",
			c.Optimization.DefaultMaxIter, c.Optimization.MaxMaxIter).WithComponent("config")
	}
	if err := c.DefaultSettings().Validate(); err != nil {
		return errors.Wrap(err, "invalid optimization defaults").WithComponent("config")
	}
	return nil
}

// DefaultSettings returns the step parameters used when a request omits them.
func (c *Config) DefaultSettings() optimization.Settings {
	return optimization.Settings{
		Alpha:         c.Optimization.DefaultAlpha,
		Beta:          c.Optimization.DefaultBeta,
		Epsilon:       c.Optimization.DefaultEpsilon,
		MaxIterations: c.Optimization.DefaultMaxIter,
	}
}
