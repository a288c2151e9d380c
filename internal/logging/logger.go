// Package logging builds the process-wide zap.Logger, adapted from the
// teacher's internal/utils/logger.go (kept here without its package-level
// init()/global-var singleton, since this service wires the logger through
// google/wire instead).
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stackvity/loan-verify/internal/config"
)

// New builds a *zap.Logger from cfg: zap's production config (unsampled)
// when Environment is "production", its development config with colorized
// levels otherwise. Encoding is JSON when LogFormat is "json" and console
// otherwise; timestamps are ISO8601 in both.
func New(cfg config.Config) (*zap.Logger, error) {
	var loggerConfig zap.Config

	if cfg.Environment == "production" {
		loggerConfig = zap.NewProductionConfig()
		loggerConfig.Sampling = nil
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
		loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	loggerConfig.Level = zap.NewAtomicLevelAt(level)

	loggerConfig.EncoderConfig.TimeKey = "timestamp"
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.LogFormat == "json" {
		loggerConfig.Encoding = "json"
	} else {
		loggerConfig.Encoding = "console"
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
