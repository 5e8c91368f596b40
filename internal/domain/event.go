package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from a sample source.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// SampleMessage is the JSON payload published by sensor hosts to the
// source topic. Only the three axes are required.
type SampleMessage struct {
	DeviceID  string    `json:"device_id,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Session   string    `json:"session,omitempty"` // "start" forces a fresh session
}

// SampleEvent is a parsed inbound sample with its routing metadata resolved.
type SampleEvent struct {
	DeviceID     string
	Sample       Sample
	SampleTime   time.Time
	StartSession bool
}

// Reading is the per-sample output published to the sink topic.
type Reading struct {
	DeviceID         string    `json:"device_id"`
	SessionID        string    `json:"session_id"`
	Sequence         uint64    `json:"sequence"`
	Sample           Sample    `json:"sample"`
	Magnitude        float64   `json:"magnitude"`
	Intensity        float64   `json:"intensity"`
	DisplayIntensity string    `json:"display_intensity"`
	Level            Level     `json:"level"`
	SampleTime       time.Time `json:"sample_time"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// WindowStats summarizes the most recent intensities of a session.
type WindowStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// SessionSummary describes one monitoring session of a device.
type SessionSummary struct {
	DeviceID    string           `json:"device_id"`
	SessionID   string           `json:"session_id"`
	StartedAt   time.Time        `json:"started_at"`
	LastSample  time.Time        `json:"last_sample_at,omitzero"`
	Samples     uint64           `json:"samples"`
	Rejected    uint64           `json:"rejected"`
	LevelCounts map[string]int64 `json:"level_counts"`
	LastLevel   Level            `json:"last_level"`
	Window      WindowStats      `json:"window"`
}
