package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the genqueue server.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Generator GeneratorConfig
}

type ServerConfig struct {
	Port     int
	Env      string
	LogLevel slog.Level
}

type StoreConfig struct {
	Backend       string
	Retention     time.Duration
	SweepInterval time.Duration
}

type RedisConfig struct {
	URL string
}

// DatabaseConfig configures the optional job archive. An empty URL disables it.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type GeneratorConfig struct {
	Kind         string
	BaseURL      string
	Timeout      time.Duration // per job; zero means unbounded
	DefaultModel string
}

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"

	GeneratorRemote = "remote"
	GeneratorMock   = "mock"
)

var validBackends = map[string]bool{
	StoreBackendMemory: true,
	StoreBackendRedis:  true,
}

var validGenerators = map[string]bool{
	GeneratorRemote: true,
	GeneratorMock:   true,
}

// Load reads configuration from the environment (and .env files, if present)
// and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	// Missing files are fine; real environment variables always win, then
	// .env.local, then .env.
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     envInt("PORT", 3000),
			Env:      envString("GENQUEUE_ENV", "development"),
			LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
		},
		Store: StoreConfig{
			Backend:       envString("STORE_BACKEND", StoreBackendMemory),
			Retention:     envDuration("RETENTION", time.Hour),
			SweepInterval: envDuration("SWEEP_INTERVAL", time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
		},
		Generator: GeneratorConfig{
			Kind:         envString("GENERATOR", GeneratorRemote),
			BaseURL:      envString("GENERATOR_URL", "http://localhost:4000"),
			Timeout:      envDurationSecs("GENERATOR_TIMEOUT_SECS", 0),
			DefaultModel: envString("DEFAULT_MODEL", "ideogram-v3-quality"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("STORE_BACKEND must be one of memory, redis; got %q", c.Store.Backend)
	}
	if c.Store.Retention <= 0 {
		return fmt.Errorf("RETENTION must be positive, got %s", c.Store.Retention)
	}
	if c.Store.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.Store.SweepInterval)
	}
	if c.Store.Backend == StoreBackendRedis && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is redis")
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DATABASE_MAX_OPEN_CONNS must be at least 1, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DATABASE_MAX_IDLE_CONNS must be between 0 and DATABASE_MAX_OPEN_CONNS (%d), got %d",
			c.Database.MaxOpenConns, c.Database.MaxIdleConns)
	}
	if c.Database.ConnMaxLifetime <= 0 {
		return fmt.Errorf("DATABASE_CONN_MAX_LIFETIME must be positive, got %s", c.Database.ConnMaxLifetime)
	}

	if !validGenerators[c.Generator.Kind] {
		return fmt.Errorf("GENERATOR must be one of remote, mock; got %q", c.Generator.Kind)
	}
	if c.Generator.Kind == GeneratorRemote {
		if !strings.HasPrefix(c.Generator.BaseURL, "http://") && !strings.HasPrefix(c.Generator.BaseURL, "https://") {
			return fmt.Errorf("GENERATOR_URL must start with http:// or https://, got %q", c.Generator.BaseURL)
		}
	}
	if c.Generator.Timeout < 0 {
		return fmt.Errorf("GENERATOR_TIMEOUT_SECS must not be negative")
	}
	if strings.TrimSpace(c.Generator.DefaultModel) == "" {
		return fmt.Errorf("DEFAULT_MODEL must not be blank")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return l
}
