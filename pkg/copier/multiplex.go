package copier

import (
	"context"
	"sort"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// MultiplexingWriter is one write session that fans out to several
// destination tables. Every variable and every value is routed by a
// MultiplexingStrategy; a table writer is opened the first time its table
// name is seen and reused afterwards. Close closes every sub-writer once.
type MultiplexingWriter struct {
	ds         core.Datasource
	entityType string
	strategy   MultiplexingStrategy

	writers         map[string]core.ValueTableWriter
	order           []string
	variableWriters map[string]core.VariableWriter
	variableOrder   []string
	closed          bool
}

// NewMultiplexingWriter creates a writer opening tables of ds on demand.
func NewMultiplexingWriter(ds core.Datasource, entityType string, strategy MultiplexingStrategy) *MultiplexingWriter {
	return &MultiplexingWriter{
		ds:              ds,
		entityType:      entityType,
		strategy:        strategy,
		writers:         make(map[string]core.ValueTableWriter),
		variableWriters: make(map[string]core.VariableWriter),
	}
}

// Tables returns the destination tables opened so far, in opening order.
func (m *MultiplexingWriter) Tables() []string {
	return append([]string(nil), m.order...)
}

func (m *MultiplexingWriter) tableWriter(ctx context.Context, name string) (core.ValueTableWriter, error) {
	if w, ok := m.writers[name]; ok {
		return w, nil
	}
	if m.closed {
		return nil, errors.New(errors.ErrorTypeWrite, "multiplexing writer is closed")
	}
	w, err := m.ds.CreateWriter(ctx, name, m.entityType)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeWrite, "cannot open writer on table '"+name+"'")
	}
	m.writers[name] = w
	m.order = append(m.order, name)
	return w, nil
}

func (m *MultiplexingWriter) variableWriter(ctx context.Context, name string) (core.VariableWriter, error) {
	if vw, ok := m.variableWriters[name]; ok {
		return vw, nil
	}
	w, err := m.tableWriter(ctx, name)
	if err != nil {
		return nil, err
	}
	vw, err := w.WriteVariables(ctx)
	if err != nil {
		return nil, err
	}
	m.variableWriters[name] = vw
	m.variableOrder = append(m.variableOrder, name)
	return vw, nil
}

func (m *MultiplexingWriter) WriteVariables(ctx context.Context) (core.VariableWriter, error) {
	return &multiplexVariableWriter{m: m}, nil
}

func (m *MultiplexingWriter) WriteValueSet(ctx context.Context, entity model.VariableEntity) (core.ValueSetWriter, error) {
	return &multiplexValueSetWriter{m: m, entity: entity, writers: make(map[string]core.ValueSetWriter)}, nil
}

// Close closes any variable writer still open and then every table writer,
// each exactly once. All are closed even when some fail; the first failure
// is returned.
func (m *MultiplexingWriter) Close(ctx context.Context) error {
	if m.closed {
		return nil
	}
	m.closed = true
	var first error
	for _, name := range m.variableOrder {
		if err := m.variableWriters[name].Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	m.variableWriters = map[string]core.VariableWriter{}
	m.variableOrder = nil
	for _, name := range m.order {
		if err := m.writers[name].Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type multiplexVariableWriter struct {
	m *MultiplexingWriter
}

func (w *multiplexVariableWriter) WriteVariable(ctx context.Context, v model.Variable) error {
	vw, err := w.m.variableWriter(ctx, w.m.strategy.MultiplexVariable(v))
	if err != nil {
		return err
	}
	return vw.WriteVariable(ctx, v)
}

func (w *multiplexVariableWriter) RemoveVariable(ctx context.Context, v model.Variable) error {
	vw, err := w.m.variableWriter(ctx, w.m.strategy.MultiplexVariable(v))
	if err != nil {
		return err
	}
	return vw.RemoveVariable(ctx, v)
}

// Close closes the variable writers opened by this session.
func (w *multiplexVariableWriter) Close(ctx context.Context) error {
	var first error
	for _, name := range w.m.variableOrder {
		if err := w.m.variableWriters[name].Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	w.m.variableWriters = make(map[string]core.VariableWriter)
	w.m.variableOrder = nil
	return first
}

// multiplexValueSetWriter writes one entity across tables and remembers
// which tables it touched.
type multiplexValueSetWriter struct {
	m       *MultiplexingWriter
	entity  model.VariableEntity
	writers map[string]core.ValueSetWriter
	order   []string
	closed  bool
}

func (w *multiplexValueSetWriter) writer(ctx context.Context, name string) (core.ValueSetWriter, error) {
	if vsw, ok := w.writers[name]; ok {
		return vsw, nil
	}
	tw, err := w.m.tableWriter(ctx, name)
	if err != nil {
		return nil, err
	}
	vsw, err := tw.WriteValueSet(ctx, w.entity)
	if err != nil {
		return nil, err
	}
	w.writers[name] = vsw
	w.order = append(w.order, name)
	return vsw, nil
}

func (w *multiplexValueSetWriter) WriteValue(ctx context.Context, v model.Variable, value model.Value) error {
	vsw, err := w.writer(ctx, w.m.strategy.MultiplexValueSet(w.entity, v))
	if err != nil {
		return err
	}
	return vsw.WriteValue(ctx, v, value)
}

// Remove removes the entity from every table of the session.
func (w *multiplexValueSetWriter) Remove(ctx context.Context) error {
	for _, name := range w.m.order {
		vsw, err := w.writer(ctx, name)
		if err != nil {
			return err
		}
		if err := vsw.Remove(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TouchedTables returns the tables this value set was written to, sorted.
func (w *multiplexValueSetWriter) TouchedTables() []string {
	out := append([]string(nil), w.order...)
	sort.Strings(out)
	return out
}

func (w *multiplexValueSetWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	var first error
	for _, name := range w.order {
		if err := w.writers[name].Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
