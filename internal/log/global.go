package log

import (
	"sync"
)

var (
	defaultLogger *Logger
	loggerMu      sync.RWMutex
)

// SetDefaultLogger installs the process-wide default logger. The CLI calls
// this once after loading the deployment configuration.
func SetDefaultLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// DefaultLogger returns the process-wide default logger, creating one with
// standard defaults on first use.
func DefaultLogger() *Logger {
	loggerMu.RLock()
	logger := defaultLogger
	loggerMu.RUnlock()
	if logger != nil {
		return logger
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	// Re-check: another caller may have initialized it while we waited.
	if defaultLogger == nil {
		defaultLogger = Default()
	}
	return defaultLogger
}
