package ingestion

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/poiesic/imgfeat/ingestion"

// pipelineMetrics holds the instruments recorded during a run.
type pipelineMetrics struct {
	loaded          metric.Int64Counter
	loadFailed      metric.Int64Counter
	featurized      metric.Int64Counter
	featurizeFailed metric.Int64Counter
	stored          metric.Int64Counter
	duration        metric.Float64Histogram
	attrs           metric.MeasurementOption
}

func newPipelineMetrics(mp metric.MeterProvider, backend string) (*pipelineMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	m := &pipelineMetrics{
		attrs: metric.WithAttributes(attribute.String("backend", backend)),
	}
	var err error
	if m.loaded, err = meter.Int64Counter("imgfeat.images.loaded",
		metric.WithDescription("Images decoded by loader workers")); err != nil {
		return nil, err
	}
	if m.loadFailed, err = meter.Int64Counter("imgfeat.images.load_failed",
		metric.WithDescription("Images that could not be fetched or decoded")); err != nil {
		return nil, err
	}
	if m.featurized, err = meter.Int64Counter("imgfeat.images.featurized",
		metric.WithDescription("Images featurized without error")); err != nil {
		return nil, err
	}
	if m.featurizeFailed, err = meter.Int64Counter("imgfeat.images.featurize_failed",
		metric.WithDescription("Images whose featurization failed")); err != nil {
		return nil, err
	}
	if m.stored, err = meter.Int64Counter("imgfeat.artifacts.stored",
		metric.WithDescription("Artifacts accepted by the sink")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("imgfeat.featurize.duration",
		metric.WithDescription("Time spent in a single featurize call"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *pipelineMetrics) recordLoad(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.loaded.Add(ctx, 1, m.attrs)
	} else {
		m.loadFailed.Add(ctx, 1, m.attrs)
	}
}

func (m *pipelineMetrics) recordFeaturize(ctx context.Context, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, elapsed.Seconds(), m.attrs)
	if ok {
		m.featurized.Add(ctx, 1, m.attrs)
	} else {
		m.featurizeFailed.Add(ctx, 1, m.attrs)
	}
}

func (m *pipelineMetrics) recordStored(ctx context.Context) {
	if m == nil {
		return
	}
	m.stored.Add(ctx, 1, m.attrs)
}
