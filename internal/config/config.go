// Package config provides configuration for the casino server.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/stickntrade/casino/internal/domain"
)

// Config holds all configuration for the server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Game     GameConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// RedisConfig holds the outcome-history store configuration. An empty
// Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// GameConfig holds round timing and credit policy.
type GameConfig struct {
	BettingSeconds  int
	SettleDelay     time.Duration
	ResetDelay      time.Duration
	StartingCredits domain.Credits
	MinStake        domain.Credits
	MaxStake        domain.Credits
	// Baccarat runs as the high-stakes table with its own minimum.
	BaccaratMinStake domain.Credits
	RewardBase       domain.Credits
	RewardStep       domain.Credits
	RewardCap        domain.Credits
}

// Load loads configuration from environment with defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("CASINO_PORT", "8080"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: getEnv("CASINO_DB_DRIVER", "postgres"),
			DSN:    getEnv("CASINO_DB_DSN", "host=localhost dbname=casino sslmode=disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("CASINO_REDIS_ADDR", ""),
			Password: getEnv("CASINO_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CASINO_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("CASINO_JWT_SECRET", "casino-dev-secret-change-in-production"),
			TokenExpiry: 24 * time.Hour,
		},
		Game: GameConfig{
			BettingSeconds:   getEnvInt("CASINO_BETTING_SECONDS", 15),
			SettleDelay:      2 * time.Second,
			ResetDelay:       5 * time.Second,
			StartingCredits:  domain.Credits(getEnvInt("CASINO_STARTING_CREDITS", 1000)),
			MinStake:         1,
			MaxStake:         domain.Credits(getEnvInt("CASINO_MAX_STAKE", 100000)),
			BaccaratMinStake: domain.Credits(getEnvInt("CASINO_BACCARAT_MIN_STAKE", 10)),
			RewardBase:       100,
			RewardStep:       50,
			RewardCap:        500,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
