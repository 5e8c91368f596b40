package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/shake-monitor/internal/config"
	"github.com/couchcryptid/shake-monitor/internal/domain"
	"go.bug.st/serial"
)

// ErrClosed is returned by ExtractBatch once the port has been drained. It
// wraps domain.ErrSourceClosed, which stops the pipeline.
var ErrClosed = fmt.Errorf("serial: %w", domain.ErrSourceClosed)

// Reader turns "x,y,z" lines from a serial accelerometer into raw sample
// messages. It implements pipeline.BatchExtractor. The first sample after the
// port is opened starts a fresh session for the device.
type Reader struct {
	port          io.ReadCloser
	name          string
	deviceID      string
	flushInterval time.Duration
	logger        *slog.Logger

	events chan domain.RawEvent
	done   chan struct{}

	mu        sync.Mutex
	readErr   error
	closeOnce sync.Once
}

// Open opens the configured serial port and starts reading from it.
func Open(cfg *config.Config, logger *slog.Logger) (*Reader, error) {
	port, err := serial.Open(cfg.SerialPort, &serial.Mode{
		BaudRate: cfg.SerialBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.SerialPort, err)
	}
	logger.Info("serial source opened", "port", cfg.SerialPort, "baud_rate", cfg.SerialBaudRate, "device_id", cfg.SerialDeviceID)
	return NewReader(port, cfg.SerialPort, cfg.SerialDeviceID, cfg.BatchFlushInterval, logger), nil
}

// NewReader starts reading sample lines from port in the background.
func NewReader(port io.ReadCloser, name, deviceID string, flushInterval time.Duration, logger *slog.Logger) *Reader {
	r := &Reader{
		port:          port,
		name:          name,
		deviceID:      deviceID,
		flushInterval: flushInterval,
		logger:        logger,
		events:        make(chan domain.RawEvent, 512),
		done:          make(chan struct{}),
	}
	go r.scan()
	return r
}

func (r *Reader) scan() {
	defer close(r.events)

	var offset int64
	scanner := bufio.NewScanner(r.port)
	for scanner.Scan() {
		line := scanner.Text()
		sample, err := domain.ParseSampleLine(line)
		if errors.Is(err, domain.ErrSkipLine) {
			continue
		}
		if err == nil {
			err = sample.Validate()
		}
		if err != nil {
			r.logger.Warn("skipping serial line", "error", err, "port", r.name)
			continue
		}

		now := domain.Now().UTC()
		value, err := domain.EncodeSampleMessage(r.deviceID, sample, now, offset == 0)
		if err != nil {
			r.logger.Warn("skipping serial sample", "error", err, "port", r.name)
			continue
		}
		ev := domain.RawEvent{
			Key:       []byte(r.deviceID),
			Value:     value,
			Topic:     r.name,
			Offset:    offset,
			Timestamp: now,
		}
		select {
		case r.events <- ev:
		case <-r.done:
			return
		}
		offset++
	}

	r.mu.Lock()
	r.readErr = scanner.Err()
	r.mu.Unlock()
}

// ExtractBatch waits up to the flush interval for the first sample, then
// drains whatever else is already buffered, up to batchSize.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	var timeout <-chan time.Time
	if r.flushInterval > 0 {
		timer := time.NewTimer(r.flushInterval)
		defer timer.Stop()
		timeout = timer.C
	}

	batch := make([]domain.RawEvent, 0, batchSize)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return batch, nil
	case ev, ok := <-r.events:
		if !ok {
			return nil, r.closedErr()
		}
		batch = append(batch, ev)
	}

	for len(batch) < batchSize {
		select {
		case ev, ok := <-r.events:
			if !ok {
				return batch, nil
			}
			batch = append(batch, ev)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (r *Reader) closedErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return fmt.Errorf("%w: %w", ErrClosed, r.readErr)
	}
	return ErrClosed
}

// Close closes the underlying port and ends the background scan, even when
// it is blocked on a full buffer.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.port.Close()
	})
	return err
}
