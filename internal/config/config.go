// Package config reads runtime settings from the environment, after loading
// an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr       string
	DataDir    string
	CitiesFile string

	StoreBackend     string
	StoreDSN         string
	GeometryEncoding string

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	AnthropicAPIKey string
	AnthropicModel  string

	LogLevel  string
	LogPretty bool

	OTLPEndpoint string
	ChromePath   string

	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables. Values in a .env file
// in the working directory are used when the variable is not already set.
// Callers apply their flag overrides and then call Validate.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:             getEnv("ROIMAP_ADDR", ":8080"),
		DataDir:          getEnv("ROIMAP_DATA_DIR", "./data"),
		CitiesFile:       getEnv("ROIMAP_CITIES_FILE", ""),
		StoreBackend:     getEnv("STORE_BACKEND", "none"),
		StoreDSN:         getEnv("STORE_DSN", ""),
		GeometryEncoding: getEnv("STORE_GEOMETRY_ENCODING", ""),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisUsername:    getEnv("REDIS_USERNAME", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		RedisPrefix:      getEnv("REDIS_PREFIX", "roimap:"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", false),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ChromePath:       getEnv("CHROME_PATH", ""),
		CORSOrigins:      getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ShutdownTimeout:  getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	return cfg, nil
}

// Validate checks that the selected store backend has what it needs.
func (c *Config) Validate() error {
	switch strings.ToLower(c.StoreBackend) {
	case "", "none", "memory":
	case "sqlite", "postgres":
		if c.StoreDSN == "" {
			return fmt.Errorf("STORE_DSN is required for the %s backend", c.StoreBackend)
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q is not one of none, memory, sqlite, postgres, redis", c.StoreBackend)
	}
	switch c.GeometryEncoding {
	case "", "nested", "string":
	default:
		return fmt.Errorf("STORE_GEOMETRY_ENCODING %q is not one of nested, string", c.GeometryEncoding)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
