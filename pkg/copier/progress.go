package copier

import (
	"context"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/core"
	"go.uber.org/zap"
)

// ProgressSink receives percent-complete updates for a table copy.
type ProgressSink interface {
	Status(table string, copied, total, percent int)
}

// ProgressSinkFunc adapts a function to ProgressSink.
type ProgressSinkFunc func(table string, copied, total, percent int)

// Status calls f.
func (f ProgressSinkFunc) Status(table string, copied, total, percent int) {
	f(table, copied, total, percent)
}

// LogProgressSink logs progress updates at Info.
func LogProgressSink(l *zap.Logger) ProgressSink {
	return ProgressSinkFunc(func(table string, copied, total, percent int) {
		l.Info("copy progress",
			zap.String("table", table),
			zap.Int("copied", copied),
			zap.Int("total", total),
			zap.Int("percent", percent))
	})
}

// ProgressListener reports the share of value sets copied to a sink, at
// most once per percentage point crossed. Failures and panics of the sink
// are logged and swallowed.
type ProgressListener struct {
	NopListener
	sink   ProgressSink
	logger *zap.Logger

	mu      sync.Mutex
	table   string
	total   int
	copied  int
	percent int
}

// NewProgressListener reports to sink.
func NewProgressListener(sink ProgressSink, l *zap.Logger) *ProgressListener {
	if l == nil {
		l = zap.NewNop()
	}
	return &ProgressListener{sink: sink, logger: l}
}

func (p *ProgressListener) OnTableStart(ctx context.Context, t core.ValueTable, dst string) {
	total, err := t.VariableEntityCount(ctx)
	if err != nil {
		p.logger.Warn("cannot count entities, progress disabled", zap.String("table", t.Name()), zap.Error(err))
		total = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table, p.total, p.copied, p.percent = t.Name(), total, 0, -1
}

func (p *ProgressListener) OnValueSetDone(context.Context, core.ValueSet, []string) {
	p.mu.Lock()
	p.copied++
	if p.total <= 0 {
		p.mu.Unlock()
		return
	}
	percent := p.copied * 100 / p.total
	if percent > 100 {
		percent = 100
	}
	if percent == p.percent {
		p.mu.Unlock()
		return
	}
	p.percent = percent
	table, copied, total := p.table, p.copied, p.total
	p.mu.Unlock()
	p.report(table, copied, total, percent)
}

func (p *ProgressListener) report(table string, copied, total, percent int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("progress sink failed", zap.String("table", table), zap.Any("panic", r))
		}
	}()
	p.sink.Status(table, copied, total, percent)
}
