package lifetime

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var defaultLogger atomic.Pointer[zap.Logger]

func init() {
	defaultLogger.Store(zap.NewNop())
}

// SetDefaultLogger replaces logger used by Builders created without WithLogger.
// Passing nil restores the no-op logger.
func SetDefaultLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	defaultLogger.Store(logger)
}

func logger() *zap.Logger {
	return defaultLogger.Load()
}
