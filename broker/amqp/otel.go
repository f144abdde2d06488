package amqp

import (
	"github.com/JailtonJunior94/fabric/envelope/tracecontext"
)

// injectTraceHeaders stamps a fresh root trace context onto an
// envelope's headers before publish, unless a traceparent header is
// already present, the transport-level equivalent of the teacher's
// otel_propagation.go InjectTraceContext.
func injectTraceHeaders(headers map[string]string) {
	if _, ok := headers["traceparent"]; ok {
		return
	}
	tracecontext.Inject(tracecontext.New(), headers)
}

// extractTraceContext recovers the producer's trace context from
// delivered headers, mirroring ExtractTraceContext. Callers that run an
// OpenTelemetry SDK can further bridge the returned Context into
// oteltrace.ContextWithRemoteSpanContext; the fabric core itself only
// needs the parsed ids for structured logging correlation.
func extractTraceContext(headers map[string]string) (tracecontext.Context, bool) {
	return tracecontext.Extract(headers)
}
