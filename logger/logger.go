// Package logger - process-wide zap logger shared by the binaries and the server.
package logger

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Mode selects the encoder and level defaults.
type Mode string

const (
	// ModeProduction logs JSON at info level.
	ModeProduction Mode = "production"
	// ModeDevelopment logs colored console output at debug level.
	ModeDevelopment Mode = "development"
)

// Init initializes the logger for the given mode.
func Init(mode Mode) error {
	switch mode {
	case ModeProduction, "":
		return InitProduction()
	case ModeDevelopment:
		return InitDevelopment()
	default:
		return errors.Errorf("unknown log mode %q", mode)
	}
}

// InitProduction initializes a production logger.
func InitProduction() error {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "build production logger")
	}
	Set(l)
	return nil
}

// InitDevelopment initializes a development logger with friendlier console output.
func InitDevelopment() error {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	l, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "build development logger")
	}
	Set(l)
	return nil
}

// Set replaces the package logger and the zap globals, so zap.L() and zap.S()
// return the same instance.
func Set(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log returns the *zap.Logger. Never nil.
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	// Not initialized yet: zap's global, which may be a no-op.
	return zap.L()
}

// S returns the *zap.SugaredLogger. Never nil.
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync flushes buffered logs.
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
