package copier

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/metrics"
	"github.com/ajitpratap0/quasar/pkg/model"
)

const (
	// DefaultQueueCapacity bounds the write queue.
	DefaultQueueCapacity = 150
	// DefaultReaders is the number of reader goroutines.
	DefaultReaders = 4
	// DefaultPollTimeout is how long the writer waits on an empty queue
	// before checking on the readers.
	DefaultPollTimeout = 100 * time.Millisecond
)

// MultithreadedCopier reads value sets with a pool of reader goroutines and
// writes them from the calling goroutine. Readers push onto a bounded queue
// and block while it is full, so reading never runs ahead of writing by
// more than the queue capacity. Destination writes are never concurrent.
type MultithreadedCopier struct {
	copier        *DatasourceCopier
	readers       int
	queueCapacity int
	pollTimeout   time.Duration
	logger        *zap.Logger
}

// MultithreadedOption configures a MultithreadedCopier.
type MultithreadedOption func(*MultithreadedCopier)

// WithReaders sets the number of reader goroutines.
func WithReaders(n int) MultithreadedOption {
	return func(m *MultithreadedCopier) {
		if n > 0 {
			m.readers = n
		}
	}
}

// WithQueueCapacity sets the write queue capacity.
func WithQueueCapacity(n int) MultithreadedOption {
	return func(m *MultithreadedCopier) {
		if n > 0 {
			m.queueCapacity = n
		}
	}
}

// WithPollTimeout sets how long the writer waits for an item before
// checking reader completion and reporting the queue depth.
func WithPollTimeout(d time.Duration) MultithreadedOption {
	return func(m *MultithreadedCopier) {
		if d > 0 {
			m.pollTimeout = d
		}
	}
}

// NewMultithreadedCopier uses c for flags, transformer, strategy and
// listeners. A nil c is a default DatasourceCopier.
func NewMultithreadedCopier(c *DatasourceCopier, opts ...MultithreadedOption) *MultithreadedCopier {
	if c == nil {
		c = New()
	}
	m := &MultithreadedCopier{
		copier:        c,
		readers:       DefaultReaders,
		queueCapacity: DefaultQueueCapacity,
		pollTimeout:   DefaultPollTimeout,
		logger:        c.logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CopyDatasource copies every table of source into destination under the
// same names.
func (m *MultithreadedCopier) CopyDatasource(ctx context.Context, source, destination core.Datasource) error {
	for _, t := range source.ValueTables() {
		if err := m.CopyTable(ctx, t, destination, t.Name()); err != nil {
			return err
		}
	}
	return nil
}

type readItem struct {
	vs     core.ValueSet
	values []model.Value
}

// CopyTable copies table into the destination table named name. Variables
// are written before any value set is read. A reader failure is returned
// after every value set already queued has been written; a writer failure
// is returned at once.
func (m *MultithreadedCopier) CopyTable(ctx context.Context, table core.ValueTable, destination core.Datasource, name string) (err error) {
	c := m.copier
	if err := checkNotSelf(table, destination, name); err != nil {
		return err
	}
	ctx = logger.WithTable(ctx, name)
	log := logger.WithContext(ctx, m.logger)

	w, err := c.openWriter(ctx, table, destination, name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(ctx); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeWrite, "cannot close writer on table '"+name+"'")
		}
	}()

	c.listeners.tableStart(ctx, table, name)
	p := c.plan(table, name)
	if c.copyMetadata {
		if err := c.copyVariables(ctx, p, w); err != nil {
			return err
		}
	}
	if !c.copyValues {
		c.listeners.tableDone(ctx, table, name)
		return nil
	}

	entities, err := table.VariableEntities(ctx)
	if err != nil {
		return err
	}
	readQueue := make(chan model.VariableEntity, len(entities))
	for _, e := range entities {
		readQueue <- e
	}
	close(readQueue)

	readCtx, shutdown := context.WithCancel(ctx)
	writeQueue := make(chan readItem, m.queueCapacity)
	g, gctx := errgroup.WithContext(readCtx)
	for i := 0; i < m.readers; i++ {
		g.Go(func() error { return m.read(gctx, p, readQueue, writeQueue) })
	}

	var readErr error
	readersDone := make(chan struct{})
	go func() {
		readErr = g.Wait()
		close(readersDone)
	}()
	defer func() {
		shutdown()
		<-readersDone
		metrics.WriteQueueDepth.WithLabelValues(name).Set(0)
	}()

	log.Debug("copying value sets", zap.Int("entities", len(entities)), zap.Int("readers", m.readers))
	if err := m.write(ctx, p, w, writeQueue, readersDone, name); err != nil {
		return err
	}
	if readErr != nil {
		log.Error("reader failed", zap.Error(readErr))
		return errors.Runtime(readErr)
	}
	c.listeners.tableDone(ctx, table, name)
	return nil
}

// read polls the read queue until it is empty. Entities without a value
// set are skipped, and so are all-null rows when null copy is disabled.
func (m *MultithreadedCopier) read(ctx context.Context, p *plan, in <-chan model.VariableEntity, out chan<- readItem) error {
	for e := range in {
		if err := ctx.Err(); err != nil {
			return err
		}
		has, err := p.table.HasValueSet(ctx, e)
		if err != nil {
			return err
		}
		if !has {
			continue
		}
		vs, err := p.table.ValueSet(ctx, e)
		if err != nil {
			return err
		}
		values, skip, err := m.copier.readValues(ctx, p, vs)
		if err != nil {
			return err
		}
		if skip {
			valueSlices.Put(values)
			continue
		}
		select {
		case out <- readItem{vs: vs, values: values}:
		case <-ctx.Done():
			valueSlices.Put(values)
			return ctx.Err()
		}
	}
	return nil
}

// write drains the queue until every reader is done. Completion of the
// readers is only trusted after one more non-blocking drain, since items
// can be queued between the last poll and the done signal.
func (m *MultithreadedCopier) write(ctx context.Context, p *plan, w core.ValueTableWriter, queue chan readItem, readersDone <-chan struct{}, name string) error {
	ticker := time.NewTicker(m.pollTimeout)
	defer ticker.Stop()
	depth := metrics.WriteQueueDepth.WithLabelValues(name)
	for {
		select {
		case item := <-queue:
			if err := m.copier.writeValueSet(ctx, p, item.vs, item.values, w); err != nil {
				return err
			}
		case <-ticker.C:
			depth.Set(float64(len(queue)))
		case <-readersDone:
			for {
				select {
				case item := <-queue:
					if err := m.copier.writeValueSet(ctx, p, item.vs, item.values, w); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}
