package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/shake-monitor/internal/domain"
)

// ShakeTransformer implements Transformer by parsing the sample payload and
// applying it to the device's session.
type ShakeTransformer struct {
	sessions *SessionRegistry
	logger   *slog.Logger
}

// NewTransformer creates a ShakeTransformer backed by sessions.
func NewTransformer(sessions *SessionRegistry, logger *slog.Logger) *ShakeTransformer {
	return &ShakeTransformer{
		sessions: sessions,
		logger:   logger,
	}
}

func (t *ShakeTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Reading, error) {
	ev, err := domain.ParseSampleEvent(raw)
	if err != nil {
		return domain.Reading{}, err
	}

	reading, err := t.sessions.Apply(ev)
	if err != nil {
		return domain.Reading{}, err
	}

	t.logger.Debug("reading",
		"device_id", reading.DeviceID,
		"intensity", reading.DisplayIntensity,
		"shake_level", reading.Level.String(),
	)
	return reading, nil
}
