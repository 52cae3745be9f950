// Package telemetry wires structured logging, Prometheus metrics, and
// distributed tracing for the gateway: an atomic.Pointer[zap.Logger]
// global-logger pattern for the zap setup, and a handleHealth/metrics
// mounting idiom for the HTTP surface.
package telemetry

import (
	"context"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var globalLogger atomic.Pointer[zap.Logger]

func init() {
	globalLogger.Store(zap.NewNop())
}

// L returns the current global logger. Safe to call before Init; returns a
// no-op logger until Init runs.
func L() *zap.Logger { return globalLogger.Load() }

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Development enables human-readable console output instead of JSON.
	Development bool
	// FilePath, if set, rotates file output through lumberjack in addition
	// to stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// InitLogger builds and installs the global zap logger.
func InitLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil && cfg.Level != "" {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)
	if cfg.Development {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}
	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	globalLogger.Store(logger)
	return logger, nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

// Metrics holds the Prometheus collectors the gateway exposes on /metrics.
type Metrics struct {
	ToolCalls        *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     prometheus.Histogram
	LoggingFailures  *prometheus.CounterVec
	StoreErrors      *prometheus.CounterVec
}

// NewMetrics registers and returns the gateway's metric collectors against
// the given registry (pass prometheus.DefaultRegisterer in production,
// a fresh registry in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "redwire_tool_calls_total",
			Help: "Total MCP tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redwire_tool_call_duration_seconds",
			Help:    "Tool call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "redwire_http_requests_total",
			Help: "Outbound HTTP requests executed by the HTTP Executor, by result.",
		}, []string{"result"}),
		HTTPDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "redwire_http_request_duration_seconds",
			Help:    "Outbound HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		LoggingFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "redwire_logging_pipeline_failures_total",
			Help: "Swallowed Logging Pipeline step failures, by step.",
		}, []string{"step"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "redwire_store_errors_total",
			Help: "Store operation failures, by repository.",
		}, []string{"repo"}),
	}
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InitTracer builds an OTLP/gRPC tracer provider. When endpoint is empty,
// tracing degrades to a no-op provider so the gateway runs without a
// collector present.
func InitTracer(ctx context.Context, serviceName, endpoint string) (trace.TracerProvider, func(context.Context) error, error) {
	if endpoint == "" {
		return otel.GetTracerProvider(), func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	shutdown := func(shutdownCtx context.Context) error {
		sctx, cancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(sctx)
	}
	_ = serviceName // not attached to the provider; spans carry the SDK's default resource
	return tp, shutdown, nil
}

// Tracer returns a tracer named for the given component.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
