package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Game    GameConfig
	Storage StorageConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port    string // HTTP and WebSocket
	TCPPort string
	Host    string
	Env     string // "development" or "production"

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// GameConfig holds match-related configuration
type GameConfig struct {
	CountdownSeconds int
	StartingHealth   int
	WordListPath     string // empty selects the built-in list
}

// StorageConfig holds match history configuration
type StorageConfig struct {
	DBPath string // empty disables match history
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads configuration from environment variables with defaults. Values
// from a .env file in the working directory are applied first unless already
// set in the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			TCPPort:            getEnv("TCP_PORT", "8888"),
			Host:               getEnv("HOST", "0.0.0.0"),
			Env:                getEnv("ENV", "development"),
			RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 30),
			RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 60),
		},
		Game: GameConfig{
			CountdownSeconds: getEnvInt("COUNTDOWN_SECONDS", 10),
			StartingHealth:   getEnvInt("STARTING_HEALTH", 5),
			WordListPath:     getEnv("WORD_LIST_PATH", ""),
		},
		Storage: StorageConfig{
			DBPath: getEnv("DB_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the HTTP server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// GetTCPAddr returns the TCP game server address in host:port format
func (c *Config) GetTCPAddr() string {
	return c.Server.Host + ":" + c.Server.TCPPort
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat returns an environment variable as a float or a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
