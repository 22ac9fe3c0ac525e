package cache

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// ValueTable reads a table through a Cache.
type ValueTable struct {
	delegate core.ValueTable
	ds       core.Datasource
	cache    Cache
	dsName   string
	name     string
}

// NewValueTable wraps t directly, without a caching datasource.
func NewValueTable(t core.ValueTable, c Cache) *ValueTable {
	return newValueTable(t, t.Datasource(), c)
}

func newValueTable(t core.ValueTable, ds core.Datasource, c Cache) *ValueTable {
	dsName := ""
	if ds != nil {
		dsName = ds.Name()
	}
	return &ValueTable{delegate: t, ds: ds, cache: c, dsName: dsName, name: t.Name()}
}

func (t *ValueTable) key(accessor string, args ...string) string {
	parts := make([]string, 0, 4+len(args))
	parts = append(parts, layerTable, t.dsName, t.name, accessor)
	return Key(append(parts, args...)...)
}

// WrappedValueTable returns the delegate.
func (t *ValueTable) WrappedValueTable() core.ValueTable { return t.delegate }

func (t *ValueTable) Name() string                { return t.name }
func (t *ValueTable) Datasource() core.Datasource { return t.ds }
func (t *ValueTable) IsView() bool                { return t.delegate.IsView() }

func (t *ValueTable) EntityType() string {
	et, _ := readThrough(t.cache, "table.EntityType", t.key("EntityType"),
		func() (string, error) { return t.delegate.EntityType(), nil })
	return et
}

func (t *ValueTable) IsForEntityType(entityType string) bool {
	ok, _ := readThrough(t.cache, "table.IsForEntityType", t.key("IsForEntityType", entityType),
		func() (bool, error) { return t.delegate.IsForEntityType(entityType), nil })
	return ok
}

func (t *ValueTable) TableReference() string {
	ref, _ := readThrough(t.cache, "table.TableReference", t.key("TableReference"),
		func() (string, error) { return t.delegate.TableReference(), nil })
	return ref
}

func (t *ValueTable) Variables() []model.Variable {
	vars, _ := readThrough(t.cache, "table.Variables", t.key("Variables"),
		func() ([]model.Variable, error) { return t.delegate.Variables(), nil })
	return append([]model.Variable(nil), vars...)
}

func (t *ValueTable) Variable(name string) (model.Variable, error) {
	return readThrough(t.cache, "table.Variable", t.key("Variable", name),
		func() (model.Variable, error) { return t.delegate.Variable(name) })
}

func (t *ValueTable) HasVariable(name string) bool {
	ok, _ := readThrough(t.cache, "table.HasVariable", t.key("HasVariable", name),
		func() (bool, error) { return t.delegate.HasVariable(name), nil })
	return ok
}

// VariableValueSource returns a fresh caching source.
func (t *ValueTable) VariableValueSource(name string) (core.VariableValueSource, error) {
	inner, err := t.delegate.VariableValueSource(name)
	if err != nil {
		return nil, err
	}
	return &VariableValueSource{inner: inner, table: t, variable: name}, nil
}

func (t *ValueTable) VariableEntities(ctx context.Context) ([]model.VariableEntity, error) {
	entities, err := readThrough(t.cache, "table.VariableEntities", t.key("VariableEntities"),
		func() ([]model.VariableEntity, error) { return t.delegate.VariableEntities(ctx) })
	if err != nil {
		return nil, err
	}
	return append([]model.VariableEntity(nil), entities...), nil
}

func (t *ValueTable) VariableEntityCount(ctx context.Context) (int, error) {
	return readThrough(t.cache, "table.VariableEntityCount", t.key("VariableEntityCount"),
		func() (int, error) { return t.delegate.VariableEntityCount(ctx) })
}

func (t *ValueTable) HasValueSet(ctx context.Context, entity model.VariableEntity) (bool, error) {
	return readThrough(t.cache, "table.HasValueSet", t.key("HasValueSet", EntityKey(entity)),
		func() (bool, error) { return t.delegate.HasValueSet(ctx, entity) })
}

// ValueSet returns a fresh caching handle; the handle itself is not cached.
func (t *ValueTable) ValueSet(ctx context.Context, entity model.VariableEntity) (core.ValueSet, error) {
	vs, err := t.delegate.ValueSet(ctx, entity)
	if err != nil {
		return nil, err
	}
	return &ValueSet{inner: vs, table: t}, nil
}

func (t *ValueTable) ValueSets(ctx context.Context, entities []model.VariableEntity) ([]core.ValueSet, error) {
	inner, err := t.delegate.ValueSets(ctx, entities)
	if err != nil {
		return nil, err
	}
	out := make([]core.ValueSet, len(inner))
	for i, vs := range inner {
		out[i] = &ValueSet{inner: vs, table: t}
	}
	return out, nil
}

func (t *ValueTable) Value(ctx context.Context, variable model.Variable, vs core.ValueSet) (model.Value, error) {
	return readThrough(t.cache, "table.Value", t.key("Value", variable.Name(), EntityKey(vs.Entity())),
		func() (model.Value, error) { return t.delegate.Value(ctx, variable, t.unwrap(vs)) })
}

func (t *ValueTable) unwrap(vs core.ValueSet) core.ValueSet {
	if c, ok := vs.(*ValueSet); ok && c.table == t {
		return c.inner
	}
	return vs
}

// Timestamps returns the table's timestamps; the delegate is only asked
// when a timestamp is read and not cached.
func (t *ValueTable) Timestamps(ctx context.Context) (core.Timestamps, error) {
	return &Timestamps{
		cache:  t.cache,
		prefix: []string{layerTimestamps, t.dsName, t.name, "table"},
		load:   func(ctx context.Context) (core.Timestamps, error) { return t.delegate.Timestamps(ctx) },
	}, nil
}

// ValueSetTimestamps returns a fresh caching pair for one row. Unknown
// entities fail at once with a no-such-value-set error.
func (t *ValueTable) ValueSetTimestamps(ctx context.Context, entity model.VariableEntity) (core.Timestamps, error) {
	has, err := t.HasValueSet(ctx, entity)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, errors.NoSuchValueSet(t.name, entity.String())
	}
	return t.rowTimestamps(entity, func(ctx context.Context) (core.Timestamps, error) {
		return t.delegate.ValueSetTimestamps(ctx, entity)
	}), nil
}

func (t *ValueTable) rowTimestamps(entity model.VariableEntity, load func(context.Context) (core.Timestamps, error)) *Timestamps {
	return &Timestamps{
		cache:  t.cache,
		prefix: []string{layerTimestamps, t.dsName, t.name, "valueset", EntityKey(entity)},
		load:   load,
	}
}

// ValueSet is a fresh caching handle on one row.
type ValueSet struct {
	inner core.ValueSet
	table *ValueTable
}

func (v *ValueSet) ValueTable() core.ValueTable    { return v.table }
func (v *ValueSet) Entity() model.VariableEntity   { return v.inner.Entity() }
func (v *ValueSet) WrappedValueSet() core.ValueSet { return v.inner }

// Timestamps shares its keys with ValueTable.ValueSetTimestamps for the
// same entity.
func (v *ValueSet) Timestamps() core.Timestamps {
	return v.table.rowTimestamps(v.inner.Entity(), func(context.Context) (core.Timestamps, error) {
		return v.inner.Timestamps(), nil
	})
}
