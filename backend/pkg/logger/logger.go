package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every entry written through the global logger
const ServiceName = "social-backend"

// Logger is shared by every package once Init has run
var Logger *zap.Logger

// Init replaces the global logger with one built for env
func Init(env string) error {
	built, err := configFor(env).Build()
	if err != nil {
		return err
	}
	Logger = built
	return nil
}

// configFor emits JSON at info in production and colored console lines at debug elsewhere
func configFor(env string) zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]interface{}{"service": ServiceName}
	return cfg
}

// Sync flushes buffered entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Get returns the global logger, or a no-op one before Init
func Get() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}

// Named scopes the global logger to one component
func Named(component string) *zap.Logger {
	return Get().Named(component)
}
