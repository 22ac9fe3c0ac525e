// Package copier replicates value tables between datasources.
//
// # Overview
//
// DatasourceCopier copies tables one value set at a time on the calling
// goroutine. For every source table it opens a destination writer, or a
// MultiplexingWriter when a MultiplexingStrategy is configured, then:
//
//   - writes each variable, passed through the VariableTransformer, when
//     metadata copy is enabled
//   - writes each value of each value set when value copy is enabled,
//     skipping nulls when null copy is disabled
//
// Listeners are notified before and after each table, variable and value
// set. MultithreadedCopier reads value sets with several goroutines and
// writes them from a single one through a bounded queue.
//
// # Failure
//
// A copy either fully succeeds or returns the first fatal error. Rows
// already written are not rolled back.
//
// # Usage
//
//	c := copier.New(
//	    copier.WithCopyNullValues(false),
//	    copier.WithTransformer(copier.RenameTransformer("v1_", "")),
//	    copier.WithListeners(copier.NewProgressListener(copier.LogProgressSink(log), log)),
//	)
//	err := c.CopyTable(ctx, table, destination, "people")
package copier

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/metrics"
	"github.com/ajitpratap0/quasar/pkg/model"
	"github.com/ajitpratap0/quasar/pkg/pool"
	"go.uber.org/zap"
)

// DatasourceCopier copies tables sequentially.
type DatasourceCopier struct {
	copyMetadata   bool
	copyValues     bool
	copyNullValues bool
	transformer    VariableTransformer
	strategy       MultiplexingStrategy
	listeners      listeners
	logger         *zap.Logger
}

// Option configures a DatasourceCopier.
type Option func(*DatasourceCopier)

// WithCopyMetadata enables or disables variable copy. Enabled by default.
func WithCopyMetadata(enabled bool) Option {
	return func(c *DatasourceCopier) { c.copyMetadata = enabled }
}

// WithCopyValues enables or disables value copy. Enabled by default.
func WithCopyValues(enabled bool) Option {
	return func(c *DatasourceCopier) { c.copyValues = enabled }
}

// WithCopyNullValues enables or disables copying null values. When
// disabled, value sets holding only nulls are skipped entirely. Enabled by
// default.
func WithCopyNullValues(enabled bool) Option {
	return func(c *DatasourceCopier) { c.copyNullValues = enabled }
}

// WithTransformer rewrites variables before they are written.
func WithTransformer(t VariableTransformer) Option {
	return func(c *DatasourceCopier) {
		if t != nil {
			c.transformer = t
		}
	}
}

// WithMultiplexingStrategy fans writes out to several destination tables.
func WithMultiplexingStrategy(s MultiplexingStrategy) Option {
	return func(c *DatasourceCopier) { c.strategy = s }
}

// WithListeners adds listeners.
func WithListeners(ls ...Listener) Option {
	return func(c *DatasourceCopier) { c.listeners = append(c.listeners, ls...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *DatasourceCopier) { c.logger = l }
}

// New creates a copier copying metadata, values and nulls.
func New(opts ...Option) *DatasourceCopier {
	c := &DatasourceCopier{
		copyMetadata:   true,
		copyValues:     true,
		copyNullValues: true,
		transformer:    identityTransformer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Component("copier")
	}
	return c
}

// CopyDatasource copies every table of source into destination under the
// same names.
func (c *DatasourceCopier) CopyDatasource(ctx context.Context, source, destination core.Datasource) error {
	for _, t := range source.ValueTables() {
		if err := c.CopyTable(ctx, t, destination, t.Name()); err != nil {
			return err
		}
	}
	return nil
}

// CopyTable copies table into the destination table named name.
func (c *DatasourceCopier) CopyTable(ctx context.Context, table core.ValueTable, destination core.Datasource, name string) (err error) {
	if err := checkNotSelf(table, destination, name); err != nil {
		return err
	}
	ctx = logger.WithTable(ctx, name)
	log := logger.WithContext(ctx, c.logger)

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
	plan := c.plan(table, name)
	if c.copyMetadata {
		if err := c.copyVariables(ctx, plan, w); err != nil {
			return err
		}
	}
	if c.copyValues {
		entities, err := table.VariableEntities(ctx)
		if err != nil {
			return err
		}
		log.Debug("copying value sets", zap.Int("entities", len(entities)))
		for _, e := range entities {
			vs, err := table.ValueSet(ctx, e)
			if err != nil {
				return err
			}
			if err := c.copyValueSet(ctx, plan, vs, w); err != nil {
				return err
			}
		}
	}
	c.listeners.tableDone(ctx, table, name)
	return nil
}

// CopyValueSet copies one value set of table with a writer open on the
// destination table named destination.
func (c *DatasourceCopier) CopyValueSet(ctx context.Context, table core.ValueTable, vs core.ValueSet, destination string, w core.ValueTableWriter) error {
	return c.copyValueSet(ctx, c.plan(table, destination), vs, w)
}

func (c *DatasourceCopier) copyValueSet(ctx context.Context, p *plan, vs core.ValueSet, w core.ValueTableWriter) error {
	values, skip, err := c.readValues(ctx, p, vs)
	if err != nil {
		return err
	}
	if skip {
		valueSlices.Put(values)
		return nil
	}
	return c.writeValueSet(ctx, p, vs, values, w)
}

// plan pairs each source variable with the variable written for it.
type plan struct {
	table       core.ValueTable
	destination string
	sources     []model.Variable
	targets     []model.Variable
}

func (c *DatasourceCopier) plan(table core.ValueTable, destination string) *plan {
	vars := table.Variables()
	p := &plan{table: table, destination: destination, sources: vars, targets: make([]model.Variable, len(vars))}
	for i, v := range vars {
		p.targets[i] = c.transformer.Transform(v)
	}
	return p
}

func (c *DatasourceCopier) openWriter(ctx context.Context, table core.ValueTable, destination core.Datasource, name string) (core.ValueTableWriter, error) {
	if c.strategy != nil {
		return NewMultiplexingWriter(destination, table.EntityType(), c.strategy), nil
	}
	w, err := destination.CreateWriter(ctx, name, table.EntityType())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeWrite, "cannot open writer on table '"+name+"'")
	}
	return w, nil
}

func (c *DatasourceCopier) copyVariables(ctx context.Context, p *plan, w core.ValueTableWriter) (err error) {
	vw, err := w.WriteVariables(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot open variable writer")
	}
	defer func() {
		if cerr := vw.Close(ctx); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeWrite, "cannot close variable writer")
		}
	}()
	for _, v := range p.targets {
		c.listeners.variableStart(ctx, v)
		if err := vw.WriteVariable(ctx, v); err != nil {
			return errors.Wrap(err, errors.ErrorTypeWrite, "cannot write variable '"+v.Name()+"'")
		}
		c.listeners.variableDone(ctx, v)
	}
	return nil
}

// valueSlices recycles the per-row value slices handed from readValues to
// writeValueSet.
var valueSlices = pool.NewSlicePool[model.Value](32)

// readValues reads every planned variable of vs. skip is true when null
// copy is disabled and every value is null. The returned slice comes from
// valueSlices and is released by writeValueSet.
func (c *DatasourceCopier) readValues(ctx context.Context, p *plan, vs core.ValueSet) ([]model.Value, bool, error) {
	values := valueSlices.Get(len(p.sources))
	allNull := true
	for i, v := range p.sources {
		val, err := p.table.Value(ctx, v, vs)
		if err != nil {
			valueSlices.Put(values)
			return nil, false, err
		}
		values[i] = val
		if !val.IsNull() {
			allNull = false
		}
	}
	return values, allNull && !c.copyNullValues && len(values) > 0, nil
}

// writeValueSet writes pre-read values of one value set and releases values.
func (c *DatasourceCopier) writeValueSet(ctx context.Context, p *plan, vs core.ValueSet, values []model.Value, w core.ValueTableWriter) (err error) {
	defer valueSlices.Put(values)
	c.listeners.valueSetStart(ctx, vs)
	vsw, err := w.WriteValueSet(ctx, vs.Entity())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot open value set writer for "+vs.Entity().String())
	}
	closed := false
	defer func() {
		if closed {
			return
		}
		if cerr := vsw.Close(ctx); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeWrite, "cannot close value set writer")
		}
	}()

	written := 0
	for i, v := range p.targets {
		if values[i].IsNull() && !c.copyNullValues {
			continue
		}
		if err := vsw.WriteValue(ctx, v, values[i]); err != nil {
			return errors.Wrap(err, errors.ErrorTypeWrite, "cannot write value of '"+v.Name()+"' for "+vs.Entity().String())
		}
		written++
	}
	closed = true
	if err := vsw.Close(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot close value set writer")
	}

	tables := []string{p.destination}
	if t, ok := vsw.(interface{ TouchedTables() []string }); ok {
		tables = t.TouchedTables()
	}
	metrics.ValueSetsCopied.WithLabelValues(p.destination).Inc()
	metrics.ValuesCopied.WithLabelValues(p.destination).Add(float64(written))
	c.listeners.valueSetDone(ctx, vs, tables)
	return nil
}

func checkNotSelf(table core.ValueTable, destination core.Datasource, name string) error {
	if core.TableReference(destination.Name(), name) == table.TableReference() {
		return errors.Newf(errors.ErrorTypeWrite, "cannot copy table '%s' onto itself", table.TableReference())
	}
	return nil
}
