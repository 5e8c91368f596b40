package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/shake-monitor/internal/domain"
	"github.com/couchcryptid/shake-monitor/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// BatchExtractor reads up to batchSize raw sample messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw sample message into a reading.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Reading, error)
}

// BatchLoader writes multiple readings to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, readings []domain.Reading) error
}

// Expirer ends sessions that have gone idle. *SessionRegistry implements it.
type Expirer interface {
	Expire() int
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	expirer     Expirer
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// WithExpirer makes the pipeline end idle sessions after every batch.
func (p *Pipeline) WithExpirer(e Expirer) *Pipeline {
	p.expirer = e
	return p
}

// CheckReadiness returns nil if the pipeline has loaded at least one reading,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any samples yet")
	}
	return nil
}

// Ready reports whether at least one batch has been loaded.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run executes the batch loop until the context is cancelled or the source
// reports domain.ErrSourceClosed. Cancellation returns nil; a closed source
// returns its error so the caller can shut down.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	b := newBackoff()
	for ctx.Err() == nil {
		rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, domain.ErrSourceClosed):
			p.logger.Warn("sample source closed, stopping pipeline", "error", err)
			return err
		case err != nil:
			p.logger.Error("extract batch failed", "error", err)
			b.wait(ctx)
		default:
			p.expireSessions()
			if len(rawBatch) > 0 {
				b.reset()
				p.processBatch(ctx, rawBatch, b)
			}
		}
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// expireSessions ends idle sessions. It runs once per extract, including
// empty ones, so quiet devices are still closed out.
func (p *Pipeline) expireSessions() {
	if p.expirer == nil {
		return
	}
	if n := p.expirer.Expire(); n > 0 {
		p.logger.Debug("expired idle sessions", "count", n)
	}
}

// processBatch transforms and loads one non-empty batch, then commits its
// offsets. A message that cannot be transformed is committed and skipped so
// it does not block the partition. A failed load commits nothing, so the
// batch is redelivered.
func (p *Pipeline) processBatch(ctx context.Context, rawBatch []domain.RawEvent, b *backoff) {
	start := time.Now()
	p.metrics.SamplesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))

	readings, accepted := p.transformAll(ctx, rawBatch)
	if len(readings) == 0 {
		return
	}

	if err := p.loader.LoadBatch(ctx, readings); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(readings))
		b.wait(ctx)
		return
	}
	for _, raw := range accepted {
		p.commitOffset(ctx, raw)
	}

	p.recordReadings(readings)
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
}

// transformAll returns the readings of the batch alongside the raw events
// that produced them. Rejected messages are committed immediately.
func (p *Pipeline) transformAll(ctx context.Context, rawBatch []domain.RawEvent) ([]domain.Reading, []domain.RawEvent) {
	readings := make([]domain.Reading, 0, len(rawBatch))
	accepted := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		reading, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.reject(ctx, raw, err)
			continue
		}
		readings = append(readings, reading)
		accepted = append(accepted, raw)
	}
	return readings, accepted
}

func (p *Pipeline) reject(ctx context.Context, raw domain.RawEvent, err error) {
	p.logger.Warn("transform failed, skipping sample",
		"error", err,
		"key", string(raw.Key),
		"topic", raw.Topic,
		"partition", raw.Partition,
		"offset", raw.Offset,
	)
	if errors.Is(err, domain.ErrInvalidSample) {
		p.metrics.InvalidSamples.Inc()
	}
	p.metrics.TransformErrors.Inc()
	p.commitOffset(ctx, raw)
}

// recordReadings accounts published readings by level and intensity.
func (p *Pipeline) recordReadings(readings []domain.Reading) {
	p.metrics.ReadingsProduced.Add(float64(len(readings)))
	for _, r := range readings {
		p.metrics.Readings.WithLabelValues(r.Level.String()).Inc()
		p.metrics.Intensity.Observe(r.Intensity)
	}
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// backoff is the retry delay for failed extracts and loads, doubling up to
// maxBackoff and reset by the next non-empty batch.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: initialBackoff}
}

func (b *backoff) reset() {
	b.current = initialBackoff
}

// wait sleeps for the current delay unless ctx is cancelled, then grows it.
func (b *backoff) wait(ctx context.Context) {
	if retry.SleepWithContext(ctx, b.current) {
		b.current = retry.NextBackoff(b.current, maxBackoff)
	}
}
