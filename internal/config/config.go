package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends selectable with store.backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Store    StoreConfig    `yaml:"store"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Engine   EngineConfig   `yaml:"engine"`
	Identity IdentityConfig `yaml:"identity"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"POSTGRES_URL"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI"`
	Database string `yaml:"database" env:"MONGO_DATABASE"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model   string `yaml:"model" env:"GEMINI_MODEL"`
	Timeout string `yaml:"timeout" env:"GEMINI_TIMEOUT"`
}

type EngineConfig struct {
	LockTimeout       string   `yaml:"lock_timeout" env:"ENGINE_LOCK_TIMEOUT"`
	LockTTL           string   `yaml:"lock_ttl" env:"ENGINE_LOCK_TTL"`
	EndingThreshold   int      `yaml:"ending_threshold" env:"ENGINE_ENDING_THRESHOLD"`
	EndingProbability *float64 `yaml:"ending_probability" env:"ENGINE_ENDING_PROBABILITY"`
	LeaderboardSize   int      `yaml:"leaderboard_size" env:"ENGINE_LEADERBOARD_SIZE"`
	Seed              int64    `yaml:"seed" env:"ENGINE_SEED"`
}

// IdentityConfig seeds the display-name directory used when callers send no name.
type IdentityConfig struct {
	TTL   string            `yaml:"ttl" env:"IDENTITY_TTL"`
	Names map[string]string `yaml:"names"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error; everything can come from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// StoreBackend is the configured backend, defaulting to the first one whose
// connection settings are present.
func (c Config) StoreBackend() string {
	if c.Store.Backend != "" {
		return strings.ToLower(c.Store.Backend)
	}
	switch {
	case c.Postgres.URL != "":
		return BackendPostgres
	case c.Redis.Addr != "":
		return BackendRedis
	case c.Mongo.URI != "":
		return BackendMongo
	}
	return BackendMemory
}

func (c Config) validate() error {
	switch c.StoreBackend() {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("store backend redis needs redis.addr")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("store backend postgres needs postgres.url")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return errors.New("store backend mongo needs mongo.uri")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if p := c.Engine.EndingProbability; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("engine.ending_probability %v outside [0,1]", *p)
	}
	return nil
}

// LogLevel maps log.level to a slog level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
