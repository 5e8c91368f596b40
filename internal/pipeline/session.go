package pipeline

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/shake-monitor/internal/domain"
	"github.com/couchcryptid/shake-monitor/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Session start reasons, used as the metrics label.
const (
	startNew       = "new"
	startIdle      = "idle"
	startRequested = "requested"
)

// session is one device's monitoring period.
type session struct {
	id          string
	deviceID    string
	state       domain.State
	startedAt   time.Time
	lastSample  time.Time
	lastSeen    time.Time
	samples     uint64
	rejected    uint64
	levelCounts [4]int64
	lastLevel   domain.Level
	window      *domain.IntensityWindow
}

func (s *session) summary() domain.SessionSummary {
	counts := make(map[string]int64, len(s.levelCounts))
	for _, lvl := range domain.Levels() {
		counts[lvl.String()] = s.levelCounts[lvl]
	}
	return domain.SessionSummary{
		DeviceID:    s.deviceID,
		SessionID:   s.id,
		StartedAt:   s.startedAt,
		LastSample:  s.lastSample,
		Samples:     s.samples,
		Rejected:    s.rejected,
		LevelCounts: counts,
		LastLevel:   s.lastLevel,
		Window:      s.window.Stats(),
	}
}

// SessionRegistry owns one tracker State per device and serializes updates
// into the Tracker. A device's session is discarded and re-initialized when
// the gap between two of its sample times exceeds the idle timeout, or when
// it asks for a fresh session. Stale state is never resumed, however quickly
// a backlog is consumed.
type SessionRegistry struct {
	tracker     *domain.Tracker
	idleTimeout time.Duration
	windowSize  int
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*session
}

// SessionOption customizes a SessionRegistry.
type SessionOption func(*SessionRegistry)

// WithClock sets the clock used for session start times and for evicting
// sessions in Expire. Defaults to the real clock.
func WithClock(c clockwork.Clock) SessionOption {
	return func(r *SessionRegistry) { r.clock = c }
}

// NewSessionRegistry creates a registry that tracks devices with tracker.
func NewSessionRegistry(tracker *domain.Tracker, idleTimeout time.Duration, windowSize int, logger *slog.Logger, metrics *observability.Metrics, opts ...SessionOption) *SessionRegistry {
	r := &SessionRegistry{
		tracker:     tracker,
		idleTimeout: idleTimeout,
		windowSize:  windowSize,
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		metrics:     metrics,
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply feeds one sample into the device's session and returns the reading.
// Samples for a device must be applied in arrival order.
func (r *SessionRegistry) Apply(ev domain.SampleEvent) (domain.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	s := r.sessionFor(ev, now)
	s.lastSeen = now

	state, res, err := r.tracker.Update(s.state, ev.Sample)
	if err != nil {
		s.rejected++
		return domain.Reading{}, err
	}

	s.state = state
	s.samples++
	s.lastSample = ev.SampleTime
	s.levelCounts[res.Level]++
	s.lastLevel = res.Level
	s.window.Add(res.Intensity)

	return domain.NewReading(ev, s.id, s.samples, res), nil
}

// sessionFor returns the open session for the device, starting a fresh one
// when none exists, the old one went idle, or the sample requests it.
func (r *SessionRegistry) sessionFor(ev domain.SampleEvent, now time.Time) *session {
	s, ok := r.sessions[ev.DeviceID]
	switch {
	case !ok:
		return r.start(ev.DeviceID, now, startNew)
	case ev.StartSession:
		r.end(s, "requested")
		return r.start(ev.DeviceID, now, startRequested)
	case r.paused(s, ev.SampleTime):
		r.end(s, "idle")
		return r.start(ev.DeviceID, now, startIdle)
	}
	return s
}

func (r *SessionRegistry) start(deviceID string, now time.Time, reason string) *session {
	s := &session{
		id:        uuid.NewString(),
		deviceID:  deviceID,
		state:     r.tracker.Initialize(),
		startedAt: now,
		lastSeen:  now,
		window:    domain.NewIntensityWindow(r.windowSize),
	}
	r.sessions[deviceID] = s

	r.metrics.SessionsStarted.WithLabelValues(reason).Inc()
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.Debug("session started", "device_id", deviceID, "session_id", s.id, "reason", reason)
	return s
}

// end logs the final summary of a session and forgets it.
func (r *SessionRegistry) end(s *session, reason string) {
	delete(r.sessions, s.deviceID)
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))

	sum := s.summary()
	r.logger.Info("session ended",
		"device_id", sum.DeviceID,
		"session_id", sum.SessionID,
		"reason", reason,
		"samples", sum.Samples,
		"rejected", sum.Rejected,
		"mean_intensity", sum.Window.Mean,
		"max_intensity", sum.Window.Max,
	)
}

// paused reports whether the sensor stopped between the session's last
// accepted sample and one taken at sampleTime.
func (r *SessionRegistry) paused(s *session, sampleTime time.Time) bool {
	if r.idleTimeout <= 0 || s.lastSample.IsZero() {
		return false
	}
	return sampleTime.Sub(s.lastSample) > r.idleTimeout
}

// stale reports whether nothing arrived for the session for longer than the
// idle timeout of wall-clock time.
func (r *SessionRegistry) stale(s *session, now time.Time) bool {
	return r.idleTimeout > 0 && now.Sub(s.lastSeen) > r.idleTimeout
}

// Expire ends every session that has received nothing for longer than the
// idle timeout and returns how many were ended.
func (r *SessionRegistry) Expire() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	ended := 0
	for _, s := range r.sessions {
		if r.stale(s, now) {
			r.end(s, "idle")
			ended++
		}
	}
	return ended
}

// Summaries returns a snapshot of every open session, sorted by device id.
func (r *SessionRegistry) Summaries() []domain.SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.SessionSummary, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Close ends all open sessions, logging their summaries.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		r.end(s, "shutdown")
	}
}
