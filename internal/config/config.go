package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/pairlobby/internal/logging"
)

// Storage backends
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Config is the server configuration, read from the environment
type Config struct {
	Host      string `env:"HOST"`
	Port      int    `env:"PORT" envDefault:"8080"`
	StaticDir string `env:"STATIC_DIR" envDefault:"./public"`

	StorageType    string        `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL       string        `env:"REDIS_URL"`
	RedisPlayerTTL time.Duration `env:"REDIS_PLAYER_TTL" envDefault:"24h"`

	MembershipQueryTimeout time.Duration `env:"MEMBERSHIP_QUERY_TIMEOUT" envDefault:"5s"`
	CommandQueueSize       int           `env:"COMMAND_QUEUE_SIZE" envDefault:"1024"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`
	LogBroadcast bool   `env:"LOG_BROADCAST" envDefault:"true"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads Config from the process environment and validates it
func Load() (Config, error) {
	return LoadFrom(os.Environ())
}

// LoadFrom reads Config from a list of KEY=value pairs
func LoadFrom(environ []string) (Config, error) {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that env parsing cannot
func (c Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.StorageType {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL required when STORAGE_TYPE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE_TYPE %q: must be 'memory' or 'redis'", c.StorageType))
	}
	if c.MembershipQueryTimeout <= 0 {
		errs = append(errs, errors.New("MEMBERSHIP_QUERY_TIMEOUT must be positive"))
	}
	if c.CommandQueueSize <= 0 {
		errs = append(errs, errors.New("COMMAND_QUEUE_SIZE must be positive"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case logging.FormatJSON, logging.FormatText:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
