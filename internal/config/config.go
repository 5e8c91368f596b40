package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/shake-monitor/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sample sources.
const (
	SourceKafka  = "kafka"
	SourceSerial = "serial"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Sample source selection.
	SampleSource   string
	SerialPort     string
	SerialBaudRate int
	SerialDeviceID string

	// Shake classification.
	ThresholdProfile string
	Thresholds       domain.Thresholds

	// Session lifecycle.
	SessionIdleTimeout time.Duration
	SessionWindow      int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	idleTimeout, err := parsePositiveDuration("SESSION_IDLE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	window, err := parsePositiveInt("SESSION_WINDOW", 256)
	if err != nil {
		return nil, err
	}

	baudRate, err := parsePositiveInt("SERIAL_BAUD_RATE", 115200)
	if err != nil {
		return nil, err
	}

	profile := sharedcfg.EnvOrDefault("SHAKE_PROFILE", domain.DefaultProfile)
	thresholds, err := loadThresholds(profile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "accelerometer-samples"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "shake-readings"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "shake-monitor"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		SampleSource:   strings.ToLower(sharedcfg.EnvOrDefault("SAMPLE_SOURCE", SourceKafka)),
		SerialPort:     os.Getenv("SERIAL_PORT"),
		SerialBaudRate: baudRate,
		SerialDeviceID: sharedcfg.EnvOrDefault("SERIAL_DEVICE_ID", "serial"),

		ThresholdProfile: profile,
		Thresholds:       thresholds,

		SessionIdleTimeout: idleTimeout,
		SessionWindow:      window,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	switch cfg.SampleSource {
	case SourceKafka:
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
	case SourceSerial:
		if cfg.SerialPort == "" {
			return nil, errors.New("SAMPLE_SOURCE is serial but SERIAL_PORT is not set")
		}
	default:
		return nil, fmt.Errorf("invalid SAMPLE_SOURCE %q: want kafka or serial", cfg.SampleSource)
	}

	return cfg, nil
}

// loadThresholds resolves the named profile (built-in or from
// SHAKE_PROFILES_FILE) and applies SHAKE_T1..SHAKE_T3 overrides.
func loadThresholds(profile string) (domain.Thresholds, error) {
	profiles := domain.BuiltinProfiles()
	if path := os.Getenv("SHAKE_PROFILES_FILE"); path != "" {
		extra, err := LoadProfiles(path)
		if err != nil {
			return domain.Thresholds{}, err
		}
		for name, th := range extra {
			profiles[name] = th
		}
	}

	th, ok := profiles[profile]
	if !ok {
		return domain.Thresholds{}, fmt.Errorf("unknown SHAKE_PROFILE %q: want one of %s",
			profile, strings.Join(domain.ProfileNames(profiles), ", "))
	}

	for _, o := range []struct {
		key string
		dst *float64
	}{
		{"SHAKE_T1", &th.T1},
		{"SHAKE_T2", &th.T2},
		{"SHAKE_T3", &th.T3},
	} {
		s := os.Getenv(o.key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return domain.Thresholds{}, fmt.Errorf("invalid %s: %w", o.key, err)
		}
		*o.dst = v
	}

	if err := th.Validate(); err != nil {
		return domain.Thresholds{}, fmt.Errorf("shake thresholds (SHAKE_T1/SHAKE_T2/SHAKE_T3): %w", err)
	}
	return th, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
