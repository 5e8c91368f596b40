package domain

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// IntensityWindow keeps the most recent intensities of a session in a fixed
// ring so summary statistics stay bounded in memory.
type IntensityWindow struct {
	buf  []float64
	next int
	full bool
}

// NewIntensityWindow returns a window holding up to size values. A size below
// one is treated as one.
func NewIntensityWindow(size int) *IntensityWindow {
	if size < 1 {
		size = 1
	}
	return &IntensityWindow{buf: make([]float64, size)}
}

// Add records an intensity, evicting the oldest when the window is full.
func (w *IntensityWindow) Add(v float64) {
	w.buf[w.next] = v
	w.next++
	if w.next == len(w.buf) {
		w.next = 0
		w.full = true
	}
}

// Len returns the number of values held.
func (w *IntensityWindow) Len() int {
	if w.full {
		return len(w.buf)
	}
	return w.next
}

// Stats computes mean, population standard deviation, 95th percentile and
// max over the held values. An empty window yields zero stats.
func (w *IntensityWindow) Stats() WindowStats {
	n := w.Len()
	if n == 0 {
		return WindowStats{}
	}

	values := slices.Clone(w.buf[:n])
	mean, stdDev := stat.PopMeanStdDev(values, nil)

	slices.Sort(values)
	return WindowStats{
		Count:  n,
		Mean:   mean,
		StdDev: stdDev,
		P95:    stat.Quantile(0.95, stat.Empirical, values, nil),
		Max:    floats.Max(values),
	}
}
