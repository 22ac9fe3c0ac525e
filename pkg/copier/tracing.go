package copier

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// TracingListener records one span per copied table. Variable and value set
// counts are attached to the span when the table is done.
type TracingListener struct {
	NopListener
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]*tableSpan
	order []string
}

type tableSpan struct {
	span      trace.Span
	variables int64
	valueSets int64
}

// NewTracingListener creates a listener starting spans with tracer.
func NewTracingListener(tracer trace.Tracer) *TracingListener {
	return &TracingListener{tracer: tracer, spans: make(map[string]*tableSpan)}
}

func (l *TracingListener) OnTableStart(ctx context.Context, table core.ValueTable, dst string) {
	_, span := l.tracer.Start(ctx, "copy.table", trace.WithAttributes(
		attribute.String("quasar.source", table.TableReference()),
		attribute.String("quasar.destination", dst),
		attribute.String("quasar.entity_type", table.EntityType()),
	))
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spans[dst] = &tableSpan{span: span}
	l.order = append(l.order, dst)
}

func (l *TracingListener) OnVariableDone(context.Context, model.Variable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ts := l.current(); ts != nil {
		ts.variables++
	}
}

func (l *TracingListener) OnValueSetDone(context.Context, core.ValueSet, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ts := l.current(); ts != nil {
		ts.valueSets++
	}
}

func (l *TracingListener) OnTableDone(_ context.Context, _ core.ValueTable, dst string) {
	l.mu.Lock()
	ts := l.remove(dst)
	l.mu.Unlock()
	if ts == nil {
		return
	}
	ts.end()
	ts.span.SetStatus(codes.Ok, "")
	ts.span.End()
}

// Abort ends every span still open with an error status. Call it when a
// copy returns an error, since no table done event follows.
func (l *TracingListener) Abort(err error) {
	l.mu.Lock()
	open := make([]*tableSpan, 0, len(l.order))
	for len(l.order) > 0 {
		if ts := l.remove(l.order[0]); ts != nil {
			open = append(open, ts)
		}
	}
	l.mu.Unlock()
	for _, ts := range open {
		ts.end()
		if err != nil {
			ts.span.RecordError(err)
			ts.span.SetStatus(codes.Error, err.Error())
		}
		ts.span.End()
	}
}

// current is the most recently started open span; l.mu must be held.
func (l *TracingListener) current() *tableSpan {
	if len(l.order) == 0 {
		return nil
	}
	return l.spans[l.order[len(l.order)-1]]
}

// remove forgets the span of dst; l.mu must be held.
func (l *TracingListener) remove(dst string) *tableSpan {
	ts, ok := l.spans[dst]
	if !ok {
		return nil
	}
	delete(l.spans, dst)
	for i, name := range l.order {
		if name == dst {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return ts
}

func (ts *tableSpan) end() {
	ts.span.SetAttributes(
		attribute.Int64("quasar.variables", ts.variables),
		attribute.Int64("quasar.value_sets", ts.valueSets),
	)
}
