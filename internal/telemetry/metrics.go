package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GenerationMetrics holds the instruments recorded during a generation run.
type GenerationMetrics struct {
	RoutesAccepted    metric.Int64Counter
	ThresholdsSkipped metric.Int64Counter
	RunDuration       metric.Float64Histogram
}

// NewGenerationMetrics registers the generation instruments on a meter.
func NewGenerationMetrics(meter metric.Meter) (*GenerationMetrics, error) {
	routesAccepted, err := meter.Int64Counter("routes_accepted_total",
		metric.WithDescription("Routes accepted into the retained set"))
	if err != nil {
		return nil, err
	}

	thresholdsSkipped, err := meter.Int64Counter("thresholds_skipped_total",
		metric.WithDescription("Thresholds that ended a run with zero routes"))
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram("generation_run_duration_seconds",
		metric.WithDescription("Wall time of a full generation run"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &GenerationMetrics{
		RoutesAccepted:    routesAccepted,
		ThresholdsSkipped: thresholdsSkipped,
		RunDuration:       runDuration,
	}, nil
}

// RecordRun records the result of a finished run.
func (m *GenerationMetrics) RecordRun(ctx context.Context, city string, accepted, skipped int, seconds float64) {
	cityAttr := metric.WithAttributes(attribute.String("city", city))
	m.RoutesAccepted.Add(ctx, int64(accepted), cityAttr)
	m.ThresholdsSkipped.Add(ctx, int64(skipped), cityAttr)
	m.RunDuration.Record(ctx, seconds, cityAttr)
}
