// Package domain models accelerometer samples and the shake intensity
// derived from them.
//
// # Intensity
//
// Each sample is reduced to the Euclidean norm of its three axes:
//
//	|a| = sqrt(x² + y² + z²)
//
// A device at rest reads roughly standard gravity (9.80665 m/s²), so the
// absolute value is not interesting on its own. Intensity is the absolute
// change of the norm between two consecutive samples:
//
//	intensity = | |a(n)| - |a(n-1)| |
//
// A session starts with both remembered magnitudes at standard gravity, so
// the first sample from a device at rest yields an intensity near zero.
//
// # Levels
//
// Intensity is classified into four ordered levels with half-open bounds:
//
//	default profile:  <1 still | <3 mild | <6 moderate | >=6 strong
//	legacy profile:   <1 still | <2 mild | <4 moderate | >=4 strong
//
// Two revisions of the source app disagreed on the table, so both are
// available as named profiles and any strictly ascending positive table can
// be configured.
//
// # Sessions
//
// [Tracker] is stateless apart from its thresholds; per-session memory lives
// in a [State] value owned by the caller. Starting a new monitoring period
// means calling [Tracker.Initialize] again rather than resuming an old State.
//
// # Wire formats
//
// Source topic payload (all fields except the axes optional):
//
//	{"device_id":"phone-1","x":0.12,"y":-0.3,"z":9.79,"timestamp":"2024-04-26T15:10:00Z","session":"start"}
//
// Serial and capture files carry one "x,y,z" sample per line; '#' starts a
// comment line.
package domain
