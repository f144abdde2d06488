package tracecontext_test

import (
	"testing"

	"github.com/JailtonJunior94/fabric/envelope/tracecontext"
	"github.com/stretchr/testify/require"
)

// TestInjectExtract_Roundtrip covers the "Trace-context inject-then-extract
// yields a remote context whose trace id and span id equal the source's"
// testable property.
func TestInjectExtract_Roundtrip(t *testing.T) {
	src := tracecontext.New()

	headers := make(map[string]string)
	tracecontext.Inject(src, headers)

	got, ok := tracecontext.Extract(headers)
	require.True(t, ok)
	require.Equal(t, src.TraceID, got.TraceID)
	require.Equal(t, src.SpanID, got.SpanID)
	require.Equal(t, src.Sampled, got.Sampled)
}

func TestChildSpan_KeepsTraceIDChangesSpanID(t *testing.T) {
	root := tracecontext.New()
	child := root.ChildSpan()

	require.Equal(t, root.TraceID, child.TraceID)
	require.NotEqual(t, root.SpanID, child.SpanID)
}

func TestExtract_MissingHeader(t *testing.T) {
	_, ok := tracecontext.Extract(map[string]string{})
	require.False(t, ok)
}

func TestExtract_MalformedTraceparent(t *testing.T) {
	_, ok := tracecontext.Extract(map[string]string{"traceparent": "not-a-traceparent"})
	require.False(t, ok)
}

func TestExtract_WrongVersion(t *testing.T) {
	headers := map[string]string{
		"traceparent": "01-0123456789abcdef0123456789abcdef-0123456789abcdef-01",
	}
	_, ok := tracecontext.Extract(headers)
	require.False(t, ok)
}

func TestInject_CarriesTracestate(t *testing.T) {
	src := tracecontext.New()
	src.TraceState = "vendor=value"

	headers := make(map[string]string)
	tracecontext.Inject(src, headers)

	require.Equal(t, "vendor=value", headers["tracestate"])
}
