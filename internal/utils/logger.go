// Package utils provides logging and CSV import helpers for the back office.
package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every log entry written under Lambda.
const ServiceName = "finance-backoffice"

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// InitLogger builds the process logger. Under Lambda it writes JSON to stdout
// tagged with the service and function names; elsewhere it writes colored
// console lines. Unknown levels fall back to info.
func InitLogger(level string) error {
	lvl := ParseLevel(level)

	var cfg zap.Config
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		cfg = zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.InitialFields = map[string]interface{}{
			"service":  ServiceName,
			"function": fn,
		}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	global = built
	mu.Unlock()
	return nil
}

// ParseLevel maps LOG_LEVEL values to zap levels, accepting "warning" as warn.
func ParseLevel(level string) zapcore.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || level == "" {
		return zapcore.InfoLevel
	}
	return lvl
}

// GetLogger returns the process logger, building an info logger on first use.
func GetLogger() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	if err := InitLogger("info"); err != nil {
		return zap.NewNop()
	}
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Named returns a child of the process logger for one component.
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if global != nil {
		_ = global.Sync()
	}
}

var (
	String = zap.String
	Int    = zap.Int
	Bool   = zap.Bool
	Error  = zap.Error
)
