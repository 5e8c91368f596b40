package domain

import "errors"

var (
	// ErrInvalidConfiguration is returned when a threshold table is not
	// strictly ascending and positive.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidSample is returned by Update for a sample with a NaN or
	// infinite axis, or one whose magnitude overflows. The caller's state is
	// left untouched.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrSourceClosed is returned by a sample source that will never yield
	// another sample, such as a serial port that reached EOF.
	ErrSourceClosed = errors.New("sample source closed")
)
