package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("Validate rejects non-positive timer", func(t *testing.T) {
		cfg := &Config{VotingTimerSeconds: 0}
		assert.Error(t, cfg.Validate())
	})

	t.Run("Validate accepts positive timer", func(t *testing.T) {
		cfg := &Config{VotingTimerSeconds: 60}
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                         os.Getenv("PORT"),
		"DATABASE_URL":                 os.Getenv("DATABASE_URL"),
		"REDIS_URL":                    os.Getenv("REDIS_URL"),
		"LOG_LEVEL":                    os.Getenv("LOG_LEVEL"),
		"DEFAULT_VOTING_TIMER_SECONDS": os.Getenv("DEFAULT_VOTING_TIMER_SECONDS"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads defaults with required vars set", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/estimation_test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("DEFAULT_VOTING_TIMER_SECONDS")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 60, cfg.VotingTimerSeconds)
	})

	t.Run("fails without DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("overrides from environment", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/estimation_test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "9000")
		os.Setenv("DEFAULT_VOTING_TIMER_SECONDS", "90")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Port)
		assert.Equal(t, 90, cfg.VotingTimerSeconds)
	})
}
