package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDeviceID names the device of samples that carry no identity.
const DefaultDeviceID = "default"

const sessionStart = "start"

// ErrSkipLine is returned by ParseSampleLine for blank and comment lines.
var ErrSkipLine = errors.New("skip line")

// ParseSampleEvent decodes a RawEvent's JSON payload into a SampleEvent.
//
// The device id is taken from the message key, then the payload, then the
// device_id header, falling back to DefaultDeviceID. The sample time is the
// payload timestamp, then the broker timestamp, then the current clock time.
func ParseSampleEvent(raw RawEvent) (SampleEvent, error) {
	var msg SampleMessage
	if err := json.Unmarshal(raw.Value, &msg); err != nil {
		return SampleEvent{}, fmt.Errorf("parse sample message: %w", err)
	}

	return SampleEvent{
		DeviceID:     resolveDeviceID(raw, msg),
		Sample:       Sample{X: msg.X, Y: msg.Y, Z: msg.Z},
		SampleTime:   resolveSampleTime(raw, msg),
		StartSession: msg.Session == sessionStart || raw.Headers["session"] == sessionStart,
	}, nil
}

func resolveDeviceID(raw RawEvent, msg SampleMessage) string {
	if id := strings.TrimSpace(string(raw.Key)); id != "" {
		return id
	}
	if id := strings.TrimSpace(msg.DeviceID); id != "" {
		return id
	}
	if id := strings.TrimSpace(raw.Headers["device_id"]); id != "" {
		return id
	}
	return DefaultDeviceID
}

func resolveSampleTime(raw RawEvent, msg SampleMessage) time.Time {
	if !msg.Timestamp.IsZero() {
		return msg.Timestamp.UTC()
	}
	if !raw.Timestamp.IsZero() {
		return raw.Timestamp.UTC()
	}
	return clock.Now().UTC()
}

// ParseSampleLine parses an "x,y,z" text line as written by serial
// accelerometers and sample capture files. Blank lines and lines starting
// with '#' return ErrSkipLine. Non-finite values such as "NaN" parse
// successfully; rejecting them is left to Tracker.Update.
func ParseSampleLine(line string) (Sample, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Sample{}, ErrSkipLine
	}

	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return Sample{}, fmt.Errorf("parse sample line %q: want 3 fields, got %d", line, len(fields))
	}

	var axes [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("parse sample line %q: %w", line, err)
		}
		axes[i] = v
	}

	return Sample{X: axes[0], Y: axes[1], Z: axes[2]}, nil
}

// EncodeSampleMessage marshals a sample into the source topic payload format.
func EncodeSampleMessage(deviceID string, s Sample, ts time.Time, startSession bool) ([]byte, error) {
	msg := SampleMessage{DeviceID: deviceID, X: s.X, Y: s.Y, Z: s.Z, Timestamp: ts}
	if startSession {
		msg.Session = sessionStart
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode sample message: %w", err)
	}
	return data, nil
}

// FormatIntensity renders an intensity with two decimals for display.
func FormatIntensity(intensity float64) string {
	return strconv.FormatFloat(intensity, 'f', 2, 64)
}

// NewReading builds the outbound record for one tracker update.
func NewReading(ev SampleEvent, sessionID string, seq uint64, res Result) Reading {
	return Reading{
		DeviceID:         ev.DeviceID,
		SessionID:        sessionID,
		Sequence:         seq,
		Sample:           ev.Sample,
		Magnitude:        res.Magnitude,
		Intensity:        res.Intensity,
		DisplayIntensity: FormatIntensity(res.Intensity),
		Level:            res.Level,
		SampleTime:       ev.SampleTime,
		ProcessedAt:      clock.Now().UTC(),
	}
}
