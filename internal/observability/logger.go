package observability

import (
	"log/slog"

	"github.com/couchcryptid/shake-monitor/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the service logger from LOG_LEVEL and LOG_FORMAT, tagged
// with the service name. It also becomes the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "shake-monitor")
	slog.SetDefault(logger)
	return logger
}
