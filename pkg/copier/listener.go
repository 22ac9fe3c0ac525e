package copier

import (
	"context"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/metrics"
	"github.com/ajitpratap0/quasar/pkg/model"
	"go.uber.org/zap"
)

// Listener is notified around every table, variable and value set copy.
// Notification is best effort and not transactional: a listener failure is
// not rolled back and a panicking listener aborts the copy unless it
// recovers itself.
type Listener interface {
	OnTableStart(ctx context.Context, table core.ValueTable, destination string)
	OnTableDone(ctx context.Context, table core.ValueTable, destination string)
	OnVariableStart(ctx context.Context, variable model.Variable)
	OnVariableDone(ctx context.Context, variable model.Variable)
	OnValueSetStart(ctx context.Context, vs core.ValueSet)
	// OnValueSetDone receives the destination tables the row was written to.
	OnValueSetDone(ctx context.Context, vs core.ValueSet, tables []string)
}

// NopListener implements Listener with no-ops, for embedding.
type NopListener struct{}

func (NopListener) OnTableStart(context.Context, core.ValueTable, string)   {}
func (NopListener) OnTableDone(context.Context, core.ValueTable, string)    {}
func (NopListener) OnVariableStart(context.Context, model.Variable)         {}
func (NopListener) OnVariableDone(context.Context, model.Variable)          {}
func (NopListener) OnValueSetStart(context.Context, core.ValueSet)          {}
func (NopListener) OnValueSetDone(context.Context, core.ValueSet, []string) {}

type listeners []Listener

func (ls listeners) tableStart(ctx context.Context, t core.ValueTable, dst string) {
	for _, l := range ls {
		l.OnTableStart(ctx, t, dst)
	}
}

func (ls listeners) tableDone(ctx context.Context, t core.ValueTable, dst string) {
	for _, l := range ls {
		l.OnTableDone(ctx, t, dst)
	}
}

func (ls listeners) variableStart(ctx context.Context, v model.Variable) {
	for _, l := range ls {
		l.OnVariableStart(ctx, v)
	}
}

func (ls listeners) variableDone(ctx context.Context, v model.Variable) {
	for _, l := range ls {
		l.OnVariableDone(ctx, v)
	}
}

func (ls listeners) valueSetStart(ctx context.Context, vs core.ValueSet) {
	for _, l := range ls {
		l.OnValueSetStart(ctx, vs)
	}
}

func (ls listeners) valueSetDone(ctx context.Context, vs core.ValueSet, tables []string) {
	for _, l := range ls {
		l.OnValueSetDone(ctx, vs, tables)
	}
}

// LoggingListener logs table copies at Info and value sets at Debug.
type LoggingListener struct {
	NopListener
	logger *zap.Logger
}

// NewLoggingListener creates a listener logging to l.
func NewLoggingListener(l *zap.Logger) *LoggingListener {
	return &LoggingListener{logger: l}
}

func (l *LoggingListener) OnTableStart(_ context.Context, t core.ValueTable, dst string) {
	l.logger.Info("copying table",
		zap.String("source", t.TableReference()),
		zap.String("destination", dst),
		zap.String("entity_type", t.EntityType()))
}

func (l *LoggingListener) OnTableDone(_ context.Context, t core.ValueTable, dst string) {
	l.logger.Info("table copied", zap.String("source", t.TableReference()), zap.String("destination", dst))
}

func (l *LoggingListener) OnValueSetDone(_ context.Context, vs core.ValueSet, tables []string) {
	l.logger.Debug("value set copied", zap.Stringer("entity", vs.Entity()), zap.Strings("tables", tables))
}

// ThroughputListener records copy duration and throughput per destination
// table in Prometheus and logs a summary when a table is done.
type ThroughputListener struct {
	NopListener
	logger *zap.Logger

	mu       sync.Mutex
	trackers map[string]*metrics.ThroughputTracker
	timers   map[string]*metrics.Timer
	current  string
}

// NewThroughputListener creates a throughput listener.
func NewThroughputListener(l *zap.Logger) *ThroughputListener {
	return &ThroughputListener{
		logger:   l,
		trackers: make(map[string]*metrics.ThroughputTracker),
		timers:   make(map[string]*metrics.Timer),
	}
}

func (l *ThroughputListener) OnTableStart(_ context.Context, _ core.ValueTable, dst string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = dst
	l.trackers[dst] = metrics.NewThroughputTracker(dst)
	l.timers[dst] = metrics.NewTimer(dst)
}

func (l *ThroughputListener) OnValueSetDone(context.Context, core.ValueSet, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tr, ok := l.trackers[l.current]; ok {
		tr.Increment(1)
	}
}

func (l *ThroughputListener) OnTableDone(_ context.Context, _ core.ValueTable, dst string) {
	l.mu.Lock()
	tr, timer := l.trackers[dst], l.timers[dst]
	delete(l.trackers, dst)
	delete(l.timers, dst)
	l.mu.Unlock()
	if tr == nil || timer == nil {
		return
	}
	elapsed := timer.Stop()
	total, rate := tr.Overall()
	tr.GetAndReset()
	metrics.CopyDuration.WithLabelValues(dst).Observe(elapsed.Seconds())
	l.logger.Info("copy throughput",
		zap.String("destination", dst),
		zap.Int64("value_sets", total),
		zap.Duration("elapsed", elapsed),
		zap.Float64("value_sets_per_second", rate))
}

// Total returns the value sets counted for the table being copied.
func (l *ThroughputListener) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tr, ok := l.trackers[l.current]; ok {
		total, _ := tr.Overall()
		return total
	}
	return 0
}
