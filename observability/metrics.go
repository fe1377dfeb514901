package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/kbukum/monitkit"

// Spawn outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeConfig     = "configuration"
	OutcomeChildSetup = "child_setup"
	OutcomeExhausted  = "resource_exhausted"
)

// ProcessMetrics holds the instruments recorded by the process and stream
// packages.
type ProcessMetrics struct {
	spawnTotal      metric.Int64Counter
	handlerDuration metric.Float64Histogram
	timeoutTotal    metric.Int64Counter
	bytesWritten    metric.Int64Counter
	streamClosed    metric.Int64Counter
}

// NewProcessMetrics creates the instruments on meter.
func NewProcessMetrics(meter metric.Meter) (*ProcessMetrics, error) {
	spawnTotal, err := meter.Int64Counter("process.spawn.total",
		metric.WithDescription("Processes spawned, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	handlerDuration, err := meter.Float64Histogram("process.handler.duration",
		metric.WithDescription("Time the parent spent blocked in an event handler"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	timeoutTotal, err := meter.Int64Counter("process.timeout.total",
		metric.WithDescription("Children still running when their timeout expired"),
	)
	if err != nil {
		return nil, err
	}

	bytesWritten, err := meter.Int64Counter("stream.bytes.written",
		metric.WithDescription("Bytes flushed by output streams"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	streamClosed, err := meter.Int64Counter("stream.closed.total",
		metric.WithDescription("Streams closed by an I/O error or end of file"),
	)
	if err != nil {
		return nil, err
	}

	return &ProcessMetrics{
		spawnTotal:      spawnTotal,
		handlerDuration: handlerDuration,
		timeoutTotal:    timeoutTotal,
		bytesWritten:    bytesWritten,
		streamClosed:    streamClosed,
	}, nil
}

// RecordSpawn counts one spawn attempt.
func (m *ProcessMetrics) RecordSpawn(ctx context.Context, outcome string) {
	m.spawnTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordHandler records how long a handler blocked the parent.
func (m *ProcessMetrics) RecordHandler(ctx context.Context, handler string, d time.Duration) {
	m.handlerDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("handler", handler)))
}

// RecordTimeout counts one expired timeout.
func (m *ProcessMetrics) RecordTimeout(ctx context.Context) {
	m.timeoutTotal.Add(ctx, 1)
}

// RecordBytesWritten adds n flushed bytes.
func (m *ProcessMetrics) RecordBytesWritten(ctx context.Context, n int) {
	m.bytesWritten.Add(ctx, int64(n))
}

// RecordStreamClosed counts one stream closed by error or EOF.
func (m *ProcessMetrics) RecordStreamClosed(ctx context.Context, direction string) {
	m.streamClosed.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}

var (
	defaultMu      sync.Mutex
	defaultMetrics *ProcessMetrics
)

// Default returns the shared instruments, created on first use from the
// global meter. If instrument creation fails the error is dropped and
// no-op instruments are used.
func Default() *ProcessMetrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMetrics == nil {
		m, err := NewProcessMetrics(Meter(instrumentationName))
		if err != nil {
			m, _ = NewProcessMetrics(noop.NewMeterProvider().Meter(instrumentationName))
		}
		defaultMetrics = m
	}
	return defaultMetrics
}

// SetDefault replaces the shared instruments. Tests use it with a
// manual-reader provider.
func SetDefault(m *ProcessMetrics) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultMetrics = m
}
