package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port               int    `env:"PORT" envDefault:"8080"`
	DatabaseURL        string `env:"DATABASE_URL,required"`
	RedisURL           string `env:"REDIS_URL,required"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	VotingTimerSeconds int    `env:"DEFAULT_VOTING_TIMER_SECONDS" envDefault:"60"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.VotingTimerSeconds <= 0 {
		return fmt.Errorf("DEFAULT_VOTING_TIMER_SECONDS must be positive, got %d", c.VotingTimerSeconds)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
