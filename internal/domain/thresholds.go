package domain

import (
	"fmt"
	"math"
	"sort"
)

// Thresholds are the three ascending intensity cut points of the level table:
//
//	intensity < T1        still
//	T1 <= intensity < T2  mild
//	T2 <= intensity < T3  moderate
//	intensity >= T3       strong
type Thresholds struct {
	T1 float64 `json:"t1" yaml:"t1"`
	T2 float64 `json:"t2" yaml:"t2"`
	T3 float64 `json:"t3" yaml:"t3"`
}

const (
	// DefaultProfile is the threshold profile used when none is configured.
	DefaultProfile = "default"
	// LegacyProfile is the tighter table of the earlier app revision.
	LegacyProfile = "legacy"
)

// DefaultThresholds returns the 1/3/6 table.
func DefaultThresholds() Thresholds {
	return Thresholds{T1: 1.0, T2: 3.0, T3: 6.0}
}

// LegacyThresholds returns the 1/2/4 table.
func LegacyThresholds() Thresholds {
	return Thresholds{T1: 1.0, T2: 2.0, T3: 4.0}
}

// BuiltinProfiles returns a fresh copy of the named built-in threshold tables.
func BuiltinProfiles() map[string]Thresholds {
	return map[string]Thresholds{
		DefaultProfile: DefaultThresholds(),
		LegacyProfile:  LegacyThresholds(),
	}
}

// ProfileNames returns the sorted keys of profiles.
func ProfileNames(profiles map[string]Thresholds) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewThresholds validates and returns a threshold table.
func NewThresholds(t1, t2, t3 float64) (Thresholds, error) {
	th := Thresholds{T1: t1, T2: t2, T3: t3}
	if err := th.Validate(); err != nil {
		return Thresholds{}, err
	}
	return th, nil
}

// Validate enforces 0 < T1 < T2 < T3 with all values finite.
func (th Thresholds) Validate() error {
	for _, v := range []float64{th.T1, th.T2, th.T3} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: thresholds must be finite, got %v/%v/%v", ErrInvalidConfiguration, th.T1, th.T2, th.T3)
		}
	}
	if !(th.T1 > 0 && th.T1 < th.T2 && th.T2 < th.T3) {
		return fmt.Errorf("%w: thresholds must satisfy 0 < t1 < t2 < t3, got %v/%v/%v", ErrInvalidConfiguration, th.T1, th.T2, th.T3)
	}
	return nil
}

// Classify maps an intensity to its Level. The bounds are half-open, so an
// intensity equal to a threshold falls into the higher level.
func (th Thresholds) Classify(intensity float64) Level {
	switch {
	case intensity < th.T1:
		return Still
	case intensity < th.T2:
		return Mild
	case intensity < th.T3:
		return Moderate
	default:
		return Strong
	}
}
