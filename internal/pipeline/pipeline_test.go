package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/shake-monitor/internal/domain"
	"github.com/couchcryptid/shake-monitor/internal/observability"
	"github.com/couchcryptid/shake-monitor/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Reading, error) {
	if m.err != nil {
		return domain.Reading{}, m.err
	}
	return domain.Reading{DeviceID: string(raw.Key), Intensity: 2, Level: domain.Mild}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.Reading
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, readings []domain.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, readings...)
	return nil
}

type countingExpirer struct {
	calls atomic.Int64
}

func (c *countingExpirer) Expire() int {
	c.calls.Add(1)
	return 0
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh, unregistered set to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{
		{Key: []byte("phone-1"), Value: []byte(`{}`)},
		{Key: []byte("phone-2"), Value: []byte(`{}`)},
	}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	expirer := &countingExpirer{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 50).WithExpirer(expirer)
	runFor(t, p, 500*time.Millisecond)

	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, "phone-1", ldr.loaded[0].DeviceID)
	assert.True(t, p.Ready())
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, int64(1), expirer.calls.Load())

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SamplesConsumed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ReadingsProduced), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Readings.WithLabelValues("mild")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(ctx))
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int64
	raw := domain.RawEvent{
		Key:    []byte("phone-1"),
		Topic:  "accelerometer-samples",
		Commit: func(context.Context) error { commits.Add(1); return nil },
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, slog.Default(), metrics, 50)
	runFor(t, p, 500*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.False(t, p.Ready())
	assert.Equal(t, int64(1), commits.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.InvalidSamples), 0)
}

func TestPipeline_Run_InvalidSampleCounted(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{{Key: []byte("phone-1")}}}}
	metrics := newTestMetrics()
	tfm := &mockTransformer{err: domain.ErrInvalidSample}

	p := pipeline.New(ext, tfm, &mockLoader{}, slog.Default(), metrics, 50)
	runFor(t, p, 300*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.InvalidSamples), 0)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commitCalled atomic.Bool
	raw := domain.RawEvent{
		Key:   []byte("phone-1"),
		Topic: "accelerometer-samples",
		Commit: func(context.Context) error {
			commitCalled.Store(true)
			return nil
		},
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 50)
	runFor(t, p, 500*time.Millisecond)

	assert.True(t, commitCalled.Load())
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	var commitCalled atomic.Bool
	raw := domain.RawEvent{
		Key:    []byte("phone-1"),
		Commit: func(context.Context) error { commitCalled.Store(true); return nil },
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{err: errors.New("broker down")}
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 50)
	runFor(t, p, 500*time.Millisecond)

	assert.False(t, commitCalled.Load())
	assert.False(t, p.Ready())
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("broker unreachable")}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 50)

	start := time.Now()
	runFor(t, p, 300*time.Millisecond)

	// The first retry sleeps 200ms, so Run cannot spin through the timeout.
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.False(t, p.Ready())
}

// exhaustedExtractor yields its batches once, then reports the source closed.
type exhaustedExtractor struct {
	batches [][]domain.RawEvent
	calls   atomic.Int64
}

func (e *exhaustedExtractor) ExtractBatch(_ context.Context, _ int) ([]domain.RawEvent, error) {
	i := int(e.calls.Add(1) - 1)
	if i < len(e.batches) {
		return e.batches[i], nil
	}
	return nil, fmt.Errorf("serial: %w", domain.ErrSourceClosed)
}

func TestPipeline_Run_SourceClosedStops(t *testing.T) {
	ext := &exhaustedExtractor{batches: [][]domain.RawEvent{{{Key: []byte("bench-imu")}}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := p.Run(ctx)
	require.ErrorIs(t, err, domain.ErrSourceClosed)

	// Stopped on the first closed extract, without backing off or retrying.
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(2), ext.calls.Load())
	require.Len(t, ldr.loaded, 1)
	assert.True(t, p.Ready())
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_EmptyBatchStillExpires(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{}, {}}}
	expirer := &countingExpirer{}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 50).WithExpirer(expirer)
	runFor(t, p, 200*time.Millisecond)

	assert.Equal(t, int64(2), expirer.calls.Load())
	assert.False(t, p.Ready())
}
