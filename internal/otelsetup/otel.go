package otelsetup

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"          // API
	mSdk "go.opentelemetry.io/otel/sdk/metric" // SDK
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"

	"flightrecorder/internal/config"
	"flightrecorder/internal/version"
)

const serviceName = "flightrecorder"

// Telemetry holds the instruments the rest of the process records against.
type Telemetry struct {
	JobsCreated metric.Int64Counter

	shutdown func(context.Context) error
}

// Init installs the tracer and meter providers when OTel is enabled. When it is
// disabled the instruments come from the global no-op providers.
func Init(ctx context.Context, cfg config.OTel, log logrus.FieldLogger) (*Telemetry, error) {
	if !cfg.Enabled {
		counter, err := newJobsCreated(otel.Meter(serviceName))
		if err != nil {
			return nil, err
		}
		return &Telemetry{JobsCreated: counter, shutdown: func(context.Context) error { return nil }}, nil
	}

	// ---------- RESOURCE ----------
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	// ---------- TRACING (stdout only) ----------
	traceExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	// ---------- METRICS (OTLP HTTP) ----------
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, errors.Join(err, tracerProvider.Shutdown(ctx))
	}
	meterProvider := mSdk.NewMeterProvider(
		mSdk.WithReader(mSdk.NewPeriodicReader(metricExp)),
		mSdk.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	counter, err := newJobsCreated(meterProvider.Meter(serviceName))
	if err != nil {
		return nil, err
	}

	log.WithField("component", "otel").Info("tracing and metrics initialized")

	// ---------- SHUTDOWN ----------
	return &Telemetry{
		JobsCreated: counter,
		shutdown: func(ctx context.Context) error {
			return errors.Join(tracerProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
		},
	}, nil
}

// Shutdown flushes and stops the providers installed by Init.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

func newJobsCreated(m metric.Meter) (metric.Int64Counter, error) {
	return m.Int64Counter("jobs_created_total",
		metric.WithDescription("Export and report jobs accepted onto a background queue."))
}
