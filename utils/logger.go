package utils

import (
	"log"

	"rwandabill/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger, built on first use.
var Logger *zap.Logger

// NewLogger builds a JSON logger for production and a colored console
// logger otherwise. level overrides the environment's default level when it
// parses.
func NewLogger(production bool, level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	fallback := zapcore.DebugLevel
	if production {
		cfg = zap.NewProductionConfig()
		fallback = zapcore.InfoLevel
	} else {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level, fallback))
	cfg.InitialFields = map[string]any{"app": "rwandabill"}
	return cfg.Build()
}

func parseLevel(s string, fallback zapcore.Level) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if s == "" || err != nil {
		return fallback
	}
	return lvl
}

// GetLogger returns the process-wide logger and installs it as zap's global.
func GetLogger() *zap.Logger {
	if Logger != nil {
		return Logger
	}
	logger, err := NewLogger(config.IsProduction(), config.AppConfig.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	Logger = logger.With(zap.String("mode", config.AppConfig.AppMode))
	zap.ReplaceGlobals(Logger)
	return Logger
}
