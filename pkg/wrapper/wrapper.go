package wrapper

import (
	"context"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// ValueTableWrapper delegates every ValueTable method to the wrapped table.
// Views embed it and override what they change.
type ValueTableWrapper struct {
	core.ValueTable
}

// NewValueTableWrapper wraps t.
func NewValueTableWrapper(t core.ValueTable) *ValueTableWrapper {
	return &ValueTableWrapper{ValueTable: t}
}

// WrappedValueTable returns the direct delegate.
func (w *ValueTableWrapper) WrappedValueTable() core.ValueTable {
	return w.ValueTable
}

// InnermostWrappedValueTable returns the first non-wrapper in the chain.
func (w *ValueTableWrapper) InnermostWrappedValueTable() core.ValueTable {
	return core.Innermost(w.ValueTable)
}

// viewValueSet is a value set seen through a view. It remembers the value
// set of the wrapped table so reads can be forwarded without a lookup.
type viewValueSet struct {
	table  core.ValueTable
	entity model.VariableEntity
	inner  core.ValueSet
}

func (v *viewValueSet) ValueTable() core.ValueTable    { return v.table }
func (v *viewValueSet) Entity() model.VariableEntity   { return v.entity }
func (v *viewValueSet) Timestamps() core.Timestamps    { return v.inner.Timestamps() }
func (v *viewValueSet) WrappedValueSet() core.ValueSet { return v.inner }

// innerResolver maps a value set of a view to the value set of its delegate.
type innerResolver func(ctx context.Context, vs core.ValueSet) (core.ValueSet, error)

// viewValueSource forwards a column through a view.
type viewValueSource struct {
	inner   core.VariableValueSource
	resolve innerResolver
	unapply func(ctx context.Context, e model.VariableEntity) (model.VariableEntity, error)
}

func (s *viewValueSource) Variable() model.Variable   { return s.inner.Variable() }
func (s *viewValueSource) ValueType() model.ValueType { return s.inner.ValueType() }

func (s *viewValueSource) Value(ctx context.Context, vs core.ValueSet) (model.Value, error) {
	inner, err := s.resolve(ctx, vs)
	if err != nil {
		return model.Value{}, err
	}
	return s.inner.Value(ctx, inner)
}

func (s *viewValueSource) VectorSource() (core.VectorSource, bool) {
	vector, ok := s.inner.VectorSource()
	if !ok {
		return nil, false
	}
	if s.unapply == nil {
		return vector, true
	}
	return &viewVectorSource{inner: vector, unapply: s.unapply}, true
}

// viewVectorSource remaps the entities of a bulk read. The delegate is
// queried with its own entities in sorted order and the results are
// returned in the order of the outer entities.
type viewVectorSource struct {
	inner   core.VectorSource
	unapply func(ctx context.Context, e model.VariableEntity) (model.VariableEntity, error)
}

func (s *viewVectorSource) ValueType() model.ValueType { return s.inner.ValueType() }

func (s *viewVectorSource) Values(ctx context.Context, entities []model.VariableEntity) ([]model.Value, error) {
	innerEntities := make([]model.VariableEntity, len(entities))
	for i, e := range entities {
		inner, err := s.unapply(ctx, e)
		if err != nil {
			return nil, err
		}
		innerEntities[i] = inner
	}
	sorted := model.SortedEntities(innerEntities)
	values, err := s.inner.Values(ctx, sorted)
	if err != nil {
		return nil, err
	}
	byEntity := make(map[model.VariableEntity]model.Value, len(sorted))
	for i, e := range sorted {
		if i < len(values) {
			byEntity[e] = values[i]
		}
	}
	out := make([]model.Value, len(entities))
	for i, e := range innerEntities {
		out[i] = byEntity[e]
	}
	return out, nil
}

// TableTransform derives a view from a table.
type TableTransform func(core.ValueTable) core.ValueTable

// DatasourceWrapper presents every table of a datasource through a
// transform. Views are built once per table name and reused so stateful
// views keep their state across lookups.
type DatasourceWrapper struct {
	core.Datasource
	transform TableTransform

	mu    sync.Mutex
	views map[string]core.ValueTable
}

// NewDatasourceWrapper wraps ds; a nil transform exposes the tables as they are.
func NewDatasourceWrapper(ds core.Datasource, transform TableTransform) *DatasourceWrapper {
	if transform == nil {
		transform = func(t core.ValueTable) core.ValueTable { return t }
	}
	return &DatasourceWrapper{Datasource: ds, transform: transform, views: make(map[string]core.ValueTable)}
}

// WrappedDatasource returns the delegate.
func (d *DatasourceWrapper) WrappedDatasource() core.Datasource {
	return d.Datasource
}

func (d *DatasourceWrapper) ValueTable(name string) (core.ValueTable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.views[name]; ok {
		return v, nil
	}
	t, err := d.Datasource.ValueTable(name)
	if err != nil {
		return nil, err
	}
	v := d.transform(t)
	d.views[name] = v
	return v, nil
}

func (d *DatasourceWrapper) ValueTables() []core.ValueTable {
	names := d.Datasource.ValueTableNames()
	out := make([]core.ValueTable, 0, len(names))
	for _, n := range names {
		t, err := d.ValueTable(n)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (d *DatasourceWrapper) DropTable(ctx context.Context, name string) error {
	d.mu.Lock()
	delete(d.views, name)
	d.mu.Unlock()
	return d.Datasource.DropTable(ctx, name)
}
