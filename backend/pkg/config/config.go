package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "social-backend/backend/pkg/errors"
)

// Store drivers accepted by STORE_DRIVER
const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	// App
	Port       string
	Env        string
	CORSOrigin string

	// Document store
	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	StoreTimeout  time.Duration

	// Neo4j friendship projection (optional)
	Neo4jEnabled  bool
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Auth
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		Env:           getEnv("ENV", "development"),
		CORSOrigin:    getEnv("CORS_ORIGIN", "http://localhost:5173"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMongo)),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "social"),
		StoreTimeout:  getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		Neo4jEnabled:  getEnvBool("NEO4J_ENABLED", false),
		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTIssuer:     getEnv("JWT_ISSUER", "social-backend"),
		TokenTTL:      getEnvDuration("TOKEN_TTL", 24*time.Hour),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = "development-secret"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return apperrors.NewConfigMissingRequired("MONGO_URI")
		}
		if c.MongoDatabase == "" {
			return apperrors.NewConfigMissingRequired("MONGO_DATABASE")
		}
	case StoreDriverMemory:
	default:
		return apperrors.NewConfigValidationFailed("STORE_DRIVER", fmt.Sprintf("unknown driver %q", c.StoreDriver))
	}

	if c.Neo4jEnabled {
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
	}

	if c.JWTSecret == "" {
		return apperrors.NewConfigMissingRequired("JWT_SECRET")
	}
	if c.TokenTTL <= 0 {
		return apperrors.NewConfigValidationFailed("TOKEN_TTL", "must be positive")
	}
	if c.StoreTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("STORE_TIMEOUT", "must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
