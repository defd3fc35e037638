// Package log is the process-wide logger used by the service entry points.
// Engine components log through their own named hclog loggers.
package log

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/indigo423/kuwaiba-sub029/internal/appcontext"
	"github.com/indigo423/kuwaiba-sub029/internal/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.SugaredLogger = zap.NewNop().Sugar()
	level                     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	once   sync.Once
)

// Init builds the global logger. Production profile logs JSON, everything else logs to console.
func Init() {
	once.Do(func() {
		var cfg zap.Config
		if profile.Current == profile.PROD {
			cfg = zap.NewProductionConfig()
		} else {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.Level = level
		cfg.DisableStacktrace = true
		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			panic(fmt.Sprintf("failed to initialize logger: %s", err))
		}
		logger = l.Sugar()
	})
}

// SetLevel changes the level of the global logger, unknown levels are ignored.
func SetLevel(lvl string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
		return
	}
	level.SetLevel(l)
}

func Sync() {
	_ = logger.Sync()
}

func Debug(format string, args ...any) {
	logger.Debugf(format, args...)
}

func Info(format string, args ...any) {
	logger.Infof(format, args...)
}

func Warn(format string, args ...any) {
	logger.Warnf(format, args...)
}

func Error(format string, args ...any) {
	logger.Errorf(format, args...)
}

// Infof logs with the correlation id stored in ctx, when there is one.
func Infof(ctx context.Context, format string, args ...any) {
	withContext(ctx).Infof(format, args...)
}

// Errorf logs with the correlation id stored in ctx, when there is one.
func Errorf(ctx context.Context, format string, args ...any) {
	withContext(ctx).Errorf(format, args...)
}

func withContext(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return logger
	}
	l := logger
	if correlationId, ok := appcontext.GetCorrelationId(ctx); ok {
		l = l.With("correlationId", correlationId)
	}
	if key, ok := appcontext.GetExecutionKey(ctx); ok {
		l = l.With("executionKey", key)
	}
	return l
}
