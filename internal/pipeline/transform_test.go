package pipeline_test

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/shake-monitor/internal/domain"
	"github.com/couchcryptid/shake-monitor/internal/observability"
	"github.com/couchcryptid/shake-monitor/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransformer(t *testing.T, th domain.Thresholds) (*pipeline.ShakeTransformer, *pipeline.SessionRegistry) {
	t.Helper()
	tracker, err := domain.NewTracker(th)
	require.NoError(t, err)
	sessions := pipeline.NewSessionRegistry(tracker, time.Minute, 32, slog.Default(), observability.NewMetricsForTesting())
	return pipeline.NewTransformer(sessions, slog.Default()), sessions
}

func TestShakeTransformer_Transform(t *testing.T) {
	tfm, _ := newTestTransformer(t, domain.DefaultThresholds())
	ts := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)

	value, err := domain.EncodeSampleMessage("", domain.Sample{Z: 9.8}, ts, false)
	require.NoError(t, err)

	out, err := tfm.Transform(context.Background(), domain.RawEvent{Key: []byte("phone-1"), Value: value})
	require.NoError(t, err)
	assert.Equal(t, "phone-1", out.DeviceID)
	assert.Equal(t, domain.Still, out.Level)
	assert.Equal(t, "0.01", out.DisplayIntensity)
	assert.Equal(t, ts, out.SampleTime)
}

func TestShakeTransformer_InvalidPayload(t *testing.T) {
	tfm, sessions := newTestTransformer(t, domain.DefaultThresholds())

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrInvalidSample))
	assert.Empty(t, sessions.Summaries())
}

func TestShakeTransformer_CapturedSession(t *testing.T) {
	samples := readSampleFile(t, "pickup_and_shake.csv")
	require.Len(t, samples, 7)

	cases := []struct {
		name       string
		thresholds domain.Thresholds
		expected   []domain.Level
	}{
		{
			name:       "default profile",
			thresholds: domain.DefaultThresholds(),
			// intensities: 0.00 0.01 2.46 4.99 8.76 16.20 0.01
			expected: []domain.Level{
				domain.Still, domain.Still, domain.Mild, domain.Moderate,
				domain.Strong, domain.Strong, domain.Still,
			},
		},
		{
			name:       "legacy profile",
			thresholds: domain.LegacyThresholds(),
			expected: []domain.Level{
				domain.Still, domain.Still, domain.Moderate, domain.Strong,
				domain.Strong, domain.Strong, domain.Still,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tfm, _ := newTestTransformer(t, tc.thresholds)
			for i, s := range samples {
				value, err := domain.EncodeSampleMessage("phone-1", s, time.Time{}, false)
				require.NoError(t, err)

				out, err := tfm.Transform(context.Background(), domain.RawEvent{Value: value})
				require.NoError(t, err)
				assert.Equal(t, tc.expected[i], out.Level, "sample %d (%v), intensity %s", i, s, out.DisplayIntensity)
				assert.Equal(t, uint64(i+1), out.Sequence)
			}
		})
	}
}

func readSampleFile(t *testing.T, name string) []domain.Sample {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()

	var samples []domain.Sample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		s, err := domain.ParseSampleLine(scanner.Text())
		if errors.Is(err, domain.ErrSkipLine) {
			continue
		}
		require.NoError(t, err)
		samples = append(samples, s)
	}
	require.NoError(t, scanner.Err())
	return samples
}
