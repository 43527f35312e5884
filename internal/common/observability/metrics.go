package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"invoice-workers/internal/common/logger"
)

// Observability records job and document counters through an OpenTelemetry
// meter exported on the Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	documents     otelmetric.Int64Counter
}

func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter, OpenTelemetry metrics disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	documents, _ := meter.Int64Counter(
		"documents.enriched",
		otelmetric.WithDescription("Extraction results enriched with a supplier match"),
	)

	return &Observability{
		meterProvider: provider,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
		documents:     documents,
	}
}

func (o *Observability) RecordJob(ctx context.Context, taskType, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// RecordDocumentEnriched counts one enriched document, tagged by whether a
// supplier was accepted.
func (o *Observability) RecordDocumentEnriched(ctx context.Context, documentClass string, matched bool) {
	if o == nil || o.documents == nil {
		return
	}
	o.documents.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("document_class", documentClass),
		attribute.Bool("supplier_matched", matched),
	))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
