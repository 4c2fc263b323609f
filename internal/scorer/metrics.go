package scorer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const scorerInstrumentationName = "github.com/fyrsmithlabs/rerankd/internal/scorer"

// Metrics holds scoring-related metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for scoring calls.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(scorerInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"rerankd.scorer.rank_duration_seconds",
		metric.WithDescription("Duration of one scoring call in seconds, labeled by model variant. Use histogram_quantile for P50/P95/P99 latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.batchSize, err = m.meter.Int64Histogram(
		"rerankd.scorer.batch_size",
		metric.WithDescription("Number of passages per scoring call. Large batches dominate model latency."),
		metric.WithUnit("{passage}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		m.logger.Warn("failed to create batch size histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"rerankd.scorer.errors_total",
		metric.WithDescription("Total scoring failures by model variant, including model runtime errors and remote collaborator failures."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordRank records metrics for one scoring call.
func (m *Metrics) RecordRank(ctx context.Context, model string, duration time.Duration, batchSize int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if batchSize > 0 && m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batchSize), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// WithMetrics wraps a Model so every Rank call is recorded.
func WithMetrics(model Model, metrics *Metrics) Model {
	return &instrumentedModel{model: model, metrics: metrics}
}

type instrumentedModel struct {
	model   Model
	metrics *Metrics
}

func (m *instrumentedModel) Name() string {
	return m.model.Name()
}

func (m *instrumentedModel) Rank(ctx context.Context, query string, passages []string) (Ranking, error) {
	start := time.Now()
	ranked, err := m.model.Rank(ctx, query, passages)
	m.metrics.RecordRank(ctx, m.model.Name(), time.Since(start), len(passages), err)
	return ranked, err
}

func (m *instrumentedModel) Close() error {
	return m.model.Close()
}
