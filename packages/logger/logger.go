// Package logger builds the zap loggers used by the store, ticker, TUI and CLI
package logger

import (
	"fmt"

	"github.com/vogtb/go-gridcalc/packages/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for the given environment. production logs JSON at
// cfg.Level, development logs to the console at debug level. when cfg.File
// is set all output goes there instead of stderr.
func New(cfg config.Log, env config.Environment) (*zap.Logger, error) {
	var zc zap.Config
	switch env {
	case config.Development:
		zc = zap.NewDevelopmentConfig()
	case config.Production, "":
		zc = zap.NewProductionConfig()
		level := zapcore.InfoLevel
		if cfg.Level != "" {
			if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
				return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
			}
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	default:
		return nil, fmt.Errorf("invalid environment: %q", env)
	}

	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// SetVerbose lowers an existing config's level to debug
func SetVerbose(cfg *config.Log) {
	cfg.Level = zapcore.DebugLevel.String()
}

// Nop returns a logger that discards everything
func Nop() *zap.Logger {
	return zap.NewNop()
}
