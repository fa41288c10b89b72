package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds tracing and metrics settings.
type Config struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName    string  `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	ServiceVersion string  `json:"service_version" yaml:"service_version" mapstructure:"service_version"`
	PrometheusPort int     `json:"prometheus_port" yaml:"prometheus_port" mapstructure:"prometheus_port"`
	JaegerEndpoint string  `json:"jaeger_endpoint" yaml:"jaeger_endpoint" mapstructure:"jaeger_endpoint"`
	SampleRate     float64 `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
}

// DefaultConfig enables metrics on port 9091 without tracing export.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		ServiceName:    "performance-monitoring",
		ServiceVersion: "0.3.0",
		PrometheusPort: 9091,
		SampleRate:     1.0,
	}
}

// Telemetry wires OpenTelemetry tracing and Prometheus-exported metrics.
type Telemetry struct {
	config         Config
	logger         *zap.Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	server         *http.Server

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
	histograms map[string]metric.Float64Histogram
}

// New builds a telemetry instance. A disabled config yields an instance whose
// methods are all no-ops.
func New(config Config, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{
		config:     config,
		logger:     logger,
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
		histograms: make(map[string]metric.Float64Histogram),
	}
	if !config.Enabled {
		return t, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry resource: %w", err)
	}

	if err := t.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := t.initMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return t, nil
}

func (t *Telemetry) initTracing(res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if t.config.JaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(t.config.JaegerEndpoint)))
		if err != nil {
			return fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}
		sampleRate := t.config.SampleRate
		if sampleRate == 0 {
			sampleRate = 1.0
		}
		opts = append(opts,
			sdktrace.WithBatcher(exporter),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRate)),
		)
	}

	t.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.tracer = otel.Tracer(t.config.ServiceName)
	return nil
}

func (t *Telemetry) initMetrics(res *resource.Resource) error {
	exporter, err := otelprom.New()
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(t.meterProvider)
	t.meter = otel.Meter(t.config.ServiceName)
	return nil
}

// Start serves the Prometheus scrape endpoint when a port is configured.
func (t *Telemetry) Start(_ context.Context) error {
	if !t.config.Enabled || t.config.PrometheusPort <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	t.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", t.config.PrometheusPort),
		Handler: mux,
	}

	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts down the scrape endpoint and flushes providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	if !t.config.Enabled {
		return nil
	}

	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
	}
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down tracer provider: %w", err)
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down meter provider: %w", err)
		}
	}
	return nil
}

// StartSpan starts a span, or passes the context through unchanged when
// telemetry is disabled.
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !t.config.Enabled || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, opts...)
}

// IncrementCounter adds one to the named counter.
func (t *Telemetry) IncrementCounter(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	counter, ok := t.counters[name]
	if !ok {
		var err error
		counter, err = t.meter.Int64Counter(name)
		if err != nil {
			t.mu.Unlock()
			t.logger.Warn("failed to create counter", zap.String("name", name), zap.Error(err))
			return
		}
		t.counters[name] = counter
	}
	t.mu.Unlock()

	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// SetGauge records the current value of the named gauge.
func (t *Telemetry) SetGauge(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	gauge, ok := t.gauges[name]
	if !ok {
		var err error
		gauge, err = t.meter.Float64Gauge(name)
		if err != nil {
			t.mu.Unlock()
			t.logger.Warn("failed to create gauge", zap.String("name", name), zap.Error(err))
			return
		}
		t.gauges[name] = gauge
	}
	t.mu.Unlock()

	gauge.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordHistogram records a value in the named histogram.
func (t *Telemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	histogram, ok := t.histograms[name]
	if !ok {
		var err error
		histogram, err = t.meter.Float64Histogram(name)
		if err != nil {
			t.mu.Unlock()
			t.logger.Warn("failed to create histogram", zap.String("name", name), zap.Error(err))
			return
		}
		t.histograms[name] = histogram
	}
	t.mu.Unlock()

	histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordDuration records the elapsed seconds since start in a histogram
// suffixed with _duration_seconds.
func (t *Telemetry) RecordDuration(ctx context.Context, name string, start time.Time, attrs ...attribute.KeyValue) {
	t.RecordHistogram(ctx, name+"_duration_seconds", time.Since(start).Seconds(), attrs...)
}
