package app

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AntonStoeckl/library-lending-go/internal/config"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

// telemetry holds the OpenTelemetry adapters handed to the components.
// The providers are registered globally without exporters; logs are still written
// to the process logger as well.
type telemetry struct {
	enabled bool
	logger  lending.ContextualLogger
	metrics lending.MetricsCollector
	tracing lending.TracingCollector

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
}

func newTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) telemetry {
	if !cfg.Enabled {
		return telemetry{}
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	loggerProvider := sdklog.NewLoggerProvider(sdklog.WithResource(res))

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	global.SetLoggerProvider(loggerProvider)

	return telemetry{
		enabled:        true,
		logger:         oteladapters.NewSlogBridgeLogger(cfg.ServiceName, loggerProvider, logger.Handler()),
		metrics:        oteladapters.NewMetricsCollector(meterProvider.Meter(cfg.ServiceName)),
		tracing:        oteladapters.NewTracingCollector(tracerProvider.Tracer(cfg.ServiceName)),
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		loggerProvider: loggerProvider,
	}
}

func (t telemetry) shutdown(ctx context.Context) error {
	if !t.enabled {
		return nil
	}

	return errors.Join(
		t.tracerProvider.Shutdown(ctx),
		t.meterProvider.Shutdown(ctx),
		t.loggerProvider.Shutdown(ctx),
	)
}
