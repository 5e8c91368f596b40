package domain

import "math"

// StandardGravity is the initial magnitude of a fresh session, in m/s².
// Starting from gravity rather than zero keeps the first reading of a device
// at rest from registering as a large jump.
const StandardGravity = 9.80665

// State is the per-session memory of a Tracker: the last two magnitudes and
// the intensity derived from them. After at least one update,
// Intensity == |CurrentMagnitude - PreviousMagnitude|.
//
// A State is a plain value owned by the caller. It must not be updated from
// more than one goroutine without external locking, and samples must be
// applied in arrival order.
type State struct {
	PreviousMagnitude float64 `json:"previous_magnitude"`
	CurrentMagnitude  float64 `json:"current_magnitude"`
	Intensity         float64 `json:"intensity"`
}

// Result is the (intensity, level) pair produced by one update.
type Result struct {
	Magnitude float64 `json:"magnitude"`
	Intensity float64 `json:"intensity"`
	Level     Level   `json:"level"`
}

// Tracker turns successive samples into shake intensities and levels.
// It holds only its threshold table, so a single Tracker can serve any number
// of independent sessions.
type Tracker struct {
	thresholds Thresholds
}

// NewTracker returns a Tracker classifying with th. It fails with
// ErrInvalidConfiguration when th is not strictly ascending and positive.
func NewTracker(th Thresholds) (*Tracker, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{thresholds: th}, nil
}

// Thresholds returns the table the tracker classifies with.
func (t *Tracker) Thresholds() Thresholds {
	return t.thresholds
}

// Initialize starts a new session.
func (t *Tracker) Initialize() State {
	return State{
		PreviousMagnitude: StandardGravity,
		CurrentMagnitude:  StandardGravity,
	}
}

// Update applies sample to state and returns the new state with the resulting
// intensity and level. On an invalid sample it returns the unchanged state and
// an error wrapping ErrInvalidSample.
func (t *Tracker) Update(state State, sample Sample) (State, Result, error) {
	if err := sample.Validate(); err != nil {
		return state, Result{}, err
	}

	magnitude := sample.Magnitude()
	next := State{
		PreviousMagnitude: state.CurrentMagnitude,
		CurrentMagnitude:  magnitude,
	}
	next.Intensity = math.Abs(next.CurrentMagnitude - next.PreviousMagnitude)

	return next, Result{
		Magnitude: magnitude,
		Intensity: next.Intensity,
		Level:     t.thresholds.Classify(next.Intensity),
	}, nil
}

// Classify maps an intensity to a level using the tracker's thresholds.
func (t *Tracker) Classify(intensity float64) Level {
	return t.thresholds.Classify(intensity)
}
