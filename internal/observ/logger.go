// Package observ holds the process-wide logging setup.
package observ

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the root logger: console output in development, JSON
// in production. An unrecognized level falls back to info, and the
// fallback is logged so a typo in LOG_LEVEL is visible rather than
// silently swallowed.
func NewLogger(env, level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if env == "production" {
		cfg = zap.NewProductionConfig()
	}

	parsed, parseErr := zapcore.ParseLevel(level)
	if parseErr != nil {
		parsed = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if parseErr != nil {
		logger.Warn("unknown log level, falling back to info",
			zap.String("level", level))
	}
	return logger, nil
}
