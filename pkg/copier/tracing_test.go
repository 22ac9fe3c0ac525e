package copier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/copier"
	"github.com/ajitpratap0/quasar/pkg/testutil"
)

func newTracingListener(t *testing.T) (*copier.TracingListener, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(testutil.TestContext(t)) })
	return copier.NewTracingListener(tp.Tracer("test")), rec
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingListenerSpanPerTable(t *testing.T) {
	tests := []struct {
		name string
		wrap func(c *copier.DatasourceCopier) tableCopier
	}{
		{"sequential", func(c *copier.DatasourceCopier) tableCopier { return c }},
		{"multithreaded", func(c *copier.DatasourceCopier) tableCopier {
			return copier.NewMultithreadedCopier(c, copier.WithReaders(2))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			tl, rec := newTracingListener(t)
			src := memory.New("src")
			table := testutil.FixtureTable(src, "people", 6, 2)

			c := tt.wrap(copier.New(copier.WithListeners(tl), copier.WithLogger(testutil.TestLogger(t))))
			require.NoError(t, c.CopyTable(ctx, table, memory.New("dst"), "copy"))

			spans := rec.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "copy.table", spans[0].Name())
			assert.Equal(t, codes.Ok, spans[0].Status().Code)
			attrs := spanAttributes(spans[0])
			assert.Equal(t, "src.people", attrs["quasar.source"].AsString())
			assert.Equal(t, "copy", attrs["quasar.destination"].AsString())
			assert.Equal(t, int64(2), attrs["quasar.variables"].AsInt64())
			assert.Equal(t, int64(6), attrs["quasar.value_sets"].AsInt64())
		})
	}
}

func TestTracingListenerAbort(t *testing.T) {
	ctx := testutil.TestContext(t)
	tl, rec := newTracingListener(t)
	src := memory.New("src")
	table := &failingTable{ValueTable: testutil.FixtureTable(src, "people", 10, 2), failOn: testutil.Entity(5)}

	c := copier.New(copier.WithListeners(tl), copier.WithLogger(testutil.TestLogger(t)))
	err := c.CopyTable(ctx, table, memory.New("dst"), "people")
	require.Error(t, err)
	assert.Empty(t, rec.Ended(), "the span stays open until aborted")

	tl.Abort(err)
	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, int64(5), spanAttributes(spans[0])["quasar.value_sets"].AsInt64())

	tl.Abort(err)
	assert.Len(t, rec.Ended(), 1, "abort is idempotent")
}
