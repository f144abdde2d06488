// Package zaplogger adapts go.uber.org/zap into the observability
// facade, for callers that want a local-development or CLI provider
// instead of the OpenTelemetry-exported one in observability/otel. It
// reuses observability/noop for tracing and metrics, since zap itself
// has no tracer/meter concept — only Logger is backed by zap.
package zaplogger

import (
	"context"
	"os"

	"github.com/JailtonJunior94/fabric/observability"
	"github.com/JailtonJunior94/fabric/observability/noop"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Provider is an observability.Observability backed by zap for logging
// and by no-op implementations for tracing/metrics.
type Provider struct {
	logger  *zapLogger
	tracer  observability.Tracer
	metrics observability.Metrics
}

// NewProvider builds a zap-backed Observability facade. format selects
// "json" (production) or "console" (local development); anything else
// defaults to "json".
func NewProvider(serviceName, format string) (*Provider, error) {
	hostname, _ := os.Hostname()

	encoding := "json"
	if format == "console" {
		encoding = "console"
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]interface{}{
			"host.name":           hostname,
			"service.name":        serviceName,
			"service.instance.id": uuid.NewString(),
		},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:   "message",
			TimeKey:      "time",
			LevelKey:     "severity",
			EncodeTime:   zapcore.ISO8601TimeEncoder,
			EncodeLevel:  zapcore.CapitalLevelEncoder,
			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	noopProvider := noop.NewProvider()

	return &Provider{
		logger:  &zapLogger{logger: logger},
		tracer:  noopProvider.Tracer(),
		metrics: noopProvider.Metrics(),
	}, nil
}

// Logger returns the zap-backed Logger.
func (p *Provider) Logger() observability.Logger { return p.logger }

// Tracer returns a no-op Tracer.
func (p *Provider) Tracer() observability.Tracer { return p.tracer }

// Metrics returns a no-op Metrics recorder.
func (p *Provider) Metrics() observability.Metrics { return p.metrics }

// Sync flushes any buffered log entries. Call it before process exit.
func (p *Provider) Sync() error {
	return p.logger.logger.Sync()
}

type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.logger.Debug(msg, toZapFields(fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.logger.Info(msg, toZapFields(fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.logger.Warn(msg, toZapFields(fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.logger.Error(msg, toZapFields(fields)...)
}

func (l *zapLogger) With(fields ...observability.Field) observability.Logger {
	return &zapLogger{logger: l.logger.With(toZapFields(fields)...)}
}

func toZapFields(fields []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
