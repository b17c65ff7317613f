package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the venue and gateway configuration, loaded from the
// environment with an optional .env overlay.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Symbol    string `env:"SYMBOL" envDefault:"SIM"`
	TickSize  int64  `env:"TICK_SIZE" envDefault:"1"` // cents
	OpeningPx int64  `env:"OPENING_PX" envDefault:"10000"`
	Currency  string `env:"CURRENCY" envDefault:"USD"`

	NumAutoMakers int           `env:"NUM_AUTO_MAKERS" envDefault:"1"`
	MakerQty      int64         `env:"MAKER_QTY" envDefault:"10"`
	MakerWidth    int64         `env:"MAKER_WIDTH" envDefault:"4"` // ticks
	QuoteInterval time.Duration `env:"QUOTE_INTERVAL" envDefault:"1s"`

	AutoOpen bool `env:"AUTO_OPEN" envDefault:"true"` // send the security definition at startup
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TickSize <= 0 {
		return fmt.Errorf("config: TICK_SIZE must be positive, got %d", c.TickSize)
	}
	if c.OpeningPx <= 0 {
		return fmt.Errorf("config: OPENING_PX must be positive, got %d", c.OpeningPx)
	}
	if c.NumAutoMakers < 0 {
		return fmt.Errorf("config: NUM_AUTO_MAKERS must not be negative, got %d", c.NumAutoMakers)
	}
	if c.QuoteInterval <= 0 {
		return fmt.Errorf("config: QUOTE_INTERVAL must be positive, got %s", c.QuoteInterval)
	}
	return nil
}
