package domain

import (
	"fmt"
	"math"
)

// Sample is one 3-axis accelerometer reading, in the sensor's acceleration
// units (m/s² for phone sensors).
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the three axes. Hypot avoids
// overflowing the intermediate squares for large finite axes.
func (s Sample) Magnitude() float64 {
	return math.Hypot(math.Hypot(s.X, s.Y), s.Z)
}

// Validate reports ErrInvalidSample when any axis is NaN or infinite, or when
// the norm itself is too large to represent.
func (s Sample) Validate() error {
	for _, axis := range []struct {
		name string
		v    float64
	}{{"x", s.X}, {"y", s.Y}, {"z", s.Z}} {
		if math.IsNaN(axis.v) || math.IsInf(axis.v, 0) {
			return fmt.Errorf("%w: %s axis is %v", ErrInvalidSample, axis.name, axis.v)
		}
	}
	if m := s.Magnitude(); math.IsInf(m, 0) {
		return fmt.Errorf("%w: magnitude overflows float64", ErrInvalidSample)
	}
	return nil
}
