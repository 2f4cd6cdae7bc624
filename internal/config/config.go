// Package config loads this server's environment-driven configuration,
// grounded on abrar71-auctionbidgo's internal/config: caarlos0/env for
// parsing, go-playground/validator for bounds checking, godotenv for an
// optional local .env file.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is this server's full environment surface. Load validates the
// fields that carry a validate tag (the time and interval bounds).
type Config struct {
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":3001"`
	InitialSeconds    int           `env:"INITIAL_SECONDS" envDefault:"600" validate:"min=1"`
	ByoyomiSeconds    int           `env:"BYOYOMI_SECONDS" envDefault:"30" validate:"min=1"`
	GCInterval        time.Duration `env:"GC_INTERVAL" envDefault:"1h" validate:"min=1m"`
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"24h" validate:"min=1m"`
	StorePath         string        `env:"STORE_PATH" envDefault:"rooms.db"`
	CORSOpen          bool          `env:"CORS_OPEN" envDefault:"true"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if present), parses the environment into a Config, and
// validates it.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
