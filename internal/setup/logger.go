package setup

import (
	"log/slog"
	"sync/atomic"

	"github.com/cochaviz/sambalxc/internal/logging"
)

var packageLogger atomic.Pointer[slog.Logger]

// SetLogger routes preflight output to logger; nil restores the process default.
func SetLogger(logger *slog.Logger) {
	if logger == nil {
		packageLogger.Store(nil)
		return
	}
	packageLogger.Store(logger.With("component", "preflight"))
}

func getLogger() *slog.Logger {
	return logging.Ensure(packageLogger.Load())
}
