package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "social-backend/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TOKEN_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMongo, cfg.StoreDriver)
	assert.Equal(t, "development-secret", cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestLoad_StagingRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "staging")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestValidate_UnknownStoreDriver(t *testing.T) {
	cfg := &Config{
		StoreDriver:  "postgres",
		JWTSecret:    "x",
		TokenTTL:     time.Hour,
		StoreTimeout: time.Second,
	}

	err := cfg.Validate()
	require.Error(t, err)

	var invalid *apperrors.ErrConfigValidationFailed
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "STORE_DRIVER", invalid.Field)
}

func TestValidate_Neo4jEnabledNeedsURI(t *testing.T) {
	cfg := &Config{
		StoreDriver:  StoreDriverMemory,
		Neo4jEnabled: true,
		Neo4jUser:    "neo4j",
		JWTSecret:    "x",
		TokenTTL:     time.Hour,
		StoreTimeout: time.Second,
	}

	err := cfg.Validate()
	var missing *apperrors.ErrConfigMissingRequired
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "NEO4J_URI", missing.Field)
}

func TestGetEnvDuration_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))

	t.Setenv("SOME_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("SOME_DURATION", time.Minute))
}
