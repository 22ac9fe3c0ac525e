package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

func TestStdoutExporterWritesSpans(t *testing.T) {
	out := &bytes.Buffer{}
	tp, err := NewTracerProvider(TracingConfig{ServiceName: "test", SamplingRate: 1, Exporter: "stdout", Output: out})
	require.NoError(t, err)

	_, span := tp.Tracer(InstrumentationName).Start(context.Background(), "copy.table")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, out.String(), "copy.table")
}

func TestSamplingRate(t *testing.T) {
	for _, tt := range []struct {
		name    string
		rate    float64
		sampled bool
	}{
		{"never", 0, false},
		{"always", 1, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := tracetest.NewSpanRecorder()
			tp, err := NewTracerProvider(TracingConfig{SamplingRate: tt.rate, Options: []sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(rec)}})
			require.NoError(t, err)
			_, span := tp.Tracer(InstrumentationName).Start(context.Background(), "op")
			span.End()
			assert.Equal(t, tt.sampled, len(rec.Ended()) == 1)
		})
	}
}

func TestUnknownExporter(t *testing.T) {
	_, err := NewTracerProvider(TracingConfig{Exporter: "jaeger"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
