// Package telemetry exposes engine activity as OpenTelemetry metrics served
// in Prometheus format.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "github.com/leonardotrapani/hyprscribe"

type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	results        metric.Int64Counter
	sourceErrors   metric.Int64Counter
	dumps          metric.Int64Counter
	dumpedWords    metric.Int64Counter
	updates        metric.Int64Counter
	sessions       metric.Int64UpDownCounter
	dumpedWordHist metric.Int64Histogram
}

// New creates metrics backed by a private Prometheus registry.
func New(serviceName string) (*Metrics, error) {
	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return newMetrics(serviceName, exporter, handler)
}

func newMetrics(serviceName string, reader sdkmetric.Reader, handler http.Handler) (*Metrics, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(meterName)
	m := &Metrics{provider: provider, handler: handler}

	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	m.results, err = meter.Int64Counter("hyprscribe.results", metric.WithDescription("Recognition results received"))
	add(err)
	m.sourceErrors, err = meter.Int64Counter("hyprscribe.source.errors", metric.WithDescription("Non-fatal source errors"))
	add(err)
	m.dumps, err = meter.Int64Counter("hyprscribe.dumps", metric.WithDescription("Working buffer dumps"))
	add(err)
	m.dumpedWords, err = meter.Int64Counter("hyprscribe.dumped.words", metric.WithDescription("Words moved to long-term storage"))
	add(err)
	m.updates, err = meter.Int64Counter("hyprscribe.working.updates", metric.WithDescription("Working buffer updates"))
	add(err)
	m.sessions, err = meter.Int64UpDownCounter("hyprscribe.sessions.active", metric.WithDescription("Running transcription sessions"))
	add(err)
	m.dumpedWordHist, err = meter.Int64Histogram("hyprscribe.dump.size",
		metric.WithDescription("Words per dump"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500))
	add(err)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	return m, nil
}

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	if m.handler == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

func (m *Metrics) RecordResult(ctx context.Context, isFinal bool) {
	m.results.Add(ctx, 1, metric.WithAttributes(attribute.Bool("final", isFinal)))
}

func (m *Metrics) RecordSourceError(ctx context.Context) {
	m.sourceErrors.Add(ctx, 1)
}

// RecordDump counts a dump and its size. forced marks flushes on stop.
func (m *Metrics) RecordDump(ctx context.Context, words int, forced bool) {
	attrs := metric.WithAttributes(attribute.Bool("forced", forced))
	m.dumps.Add(ctx, 1, attrs)
	m.dumpedWords.Add(ctx, int64(words))
	m.dumpedWordHist.Record(ctx, int64(words))
}

func (m *Metrics) RecordUpdate(ctx context.Context) {
	m.updates.Add(ctx, 1)
}

func (m *Metrics) SessionStarted(ctx context.Context) { m.sessions.Add(ctx, 1) }
func (m *Metrics) SessionEnded(ctx context.Context)   { m.sessions.Add(ctx, -1) }

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("telemetry: serving metrics on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
