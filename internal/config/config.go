// Package config loads process settings from the environment.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	// Storage drivers.
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	// Broker kinds.
	BrokerRedis = "redis"
	BrokerNATS  = "nats"
	BrokerLocal = "local"
)

// Donor list pagination.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type Config struct {
	HTTP struct {
		Addr         string        `env:"HTTP_ADDR" env-default:":8080"`
		ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
		ShutdownWait time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
	}

	StorageDriver string `env:"STORAGE_DRIVER" env-default:"postgres"`
	PostgresDSN   string `env:"POSTGRES_DSN" env-default:"host=localhost user=user password=password dbname=bloodlink port=5432 sslmode=disable"`

	Broker string `env:"BROKER" env-default:"redis"`
	Redis  struct {
		Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" env-default:"0"`
		Channel  string `env:"REDIS_CHANNEL" env-default:"chat:broadcast"`
	}
	NATS struct {
		URL     string `env:"NATS_URL" env-default:"nats://localhost:4222"`
		Subject string `env:"NATS_SUBJECT" env-default:"chat.broadcast"`
	}

	JWT struct {
		Secret string        `env:"JWT_SECRET" env-required:"true"`
		Issuer string        `env:"JWT_ISSUER" env-default:"bloodlink"`
		TTL    time.Duration `env:"JWT_TTL" env-default:"72h"`
	}

	Chat struct {
		RestrictJoin      bool `env:"CHAT_RESTRICT_JOIN" env-default:"false"`
		ConversationLimit int  `env:"CHAT_CONVERSATION_LIMIT" env-default:"200"`
	}

	Log struct {
		Level       string `env:"LOG_LEVEL" env-default:"info"`
		Development bool   `env:"LOG_DEVELOPMENT" env-default:"false"`
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return errors.New("config: STORAGE_DRIVER must be postgres or memory")
	}
	switch c.Broker {
	case BrokerRedis, BrokerNATS, BrokerLocal:
	default:
		return errors.New("config: BROKER must be redis, nats or local")
	}
	if c.Chat.ConversationLimit <= 0 {
		return errors.New("config: CHAT_CONVERSATION_LIMIT must be positive")
	}
	return nil
}
