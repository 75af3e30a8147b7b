package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/MrEthical07/goGate/internal/config"
	"github.com/MrEthical07/goGate/internal/logger"
	otelexport "github.com/MrEthical07/goGate/metrics/export/otel"
)

const meterName = "github.com/MrEthical07/goGate"

// startTelemetry pushes engine metrics over OTLP/gRPC when cfg names an
// endpoint. The returned func flushes and stops the export.
func startTelemetry(ctx context.Context, cfg config.OTel, source otelexport.Source, log *logger.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled() {
		log.Debug("OpenTelemetry export disabled")
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exporter, err := otlpmetricgrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))
	stop, err := newTelemetry(ctx, reader, cfg.ServiceName, source)
	if err != nil {
		return nil, err
	}
	log.Info("OpenTelemetry export enabled", "endpoint", cfg.Endpoint, "interval", cfg.Interval)
	return stop, nil
}

// newTelemetry builds a MeterProvider over reader and registers the goGate
// instruments on it.
func newTelemetry(ctx context.Context, reader sdkmetric.Reader, service string, source otelexport.Source) (func(context.Context) error, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
		sdkmetric.WithReader(reader),
	)

	exp, err := otelexport.NewExporter(provider.Meter(meterName), source)
	if err != nil {
		return nil, errors.Join(err, provider.Shutdown(ctx))
	}

	return func(ctx context.Context) error {
		// Shutdown runs a final collection, so the callback must still be registered.
		return errors.Join(provider.Shutdown(ctx), exp.Close())
	}, nil
}
