// Package rtlog provides the structured logging facade used throughout the
// fault-and-interrupt core. Call sites use the Debugf/Infof/Warningf/Errorf
// shape regardless of backend.
package rtlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

func init() {
	logger = mustBuild(zapcore.InfoLevel)
}

func mustBuild(level zapcore.Level) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// The logger itself failing to construct is not something this
		// package can recover from; fall back to a no-op logger rather
		// than crash an embedder that merely imported us.
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetLevel adjusts the minimum level emitted by the package logger. It is
// safe to call concurrently with logging calls.
func SetLevel(level zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = mustBuild(level)
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) { get().Debugf(format, args...) }

// Infof logs at info level.
func Infof(format string, args ...any) { get().Infof(format, args...) }

// Warningf logs at warning level.
func Warningf(format string, args ...any) { get().Warnf(format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...any) { get().Errorf(format, args...) }

// Fatalf logs at error level, flushes the logger, and terminates the process.
//
// This is reserved for non-recoverable conditions: a failed mprotect, a
// second SIGINT observed before the first was consumed, or an unwind begun
// with no active unwind frame. The contract is to abort with a diagnostic.
func Fatalf(format string, args ...any) {
	l := get()
	l.Errorf(format, args...)
	_ = l.Desugar().Sync()
	os.Exit(2)
}
