package cache

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// VariableValueSource reads one column through a Cache.
type VariableValueSource struct {
	inner    core.VariableValueSource
	table    *ValueTable
	variable string
}

func (s *VariableValueSource) key(accessor string, args ...string) string {
	parts := make([]string, 0, 5+len(args))
	parts = append(parts, layerSource, s.table.dsName, s.table.name, s.variable, accessor)
	return Key(append(parts, args...)...)
}

func (s *VariableValueSource) Variable() model.Variable {
	v, _ := readThrough(s.table.cache, "source.Variable", s.key("Variable"),
		func() (model.Variable, error) { return s.inner.Variable(), nil })
	return v
}

func (s *VariableValueSource) ValueType() model.ValueType {
	vt, _ := readThrough(s.table.cache, "source.ValueType", s.key("ValueType"),
		func() (model.ValueType, error) { return s.inner.ValueType(), nil })
	return vt
}

func (s *VariableValueSource) Value(ctx context.Context, vs core.ValueSet) (model.Value, error) {
	return readThrough(s.table.cache, "source.Value", s.key("Value", EntityKey(vs.Entity())),
		func() (model.Value, error) { return s.inner.Value(ctx, s.table.unwrap(vs)) })
}

// VectorSource returns a fresh caching vector source when the delegate has one.
func (s *VariableValueSource) VectorSource() (core.VectorSource, bool) {
	inner, ok := s.inner.VectorSource()
	if !ok {
		return nil, false
	}
	return &VectorSource{inner: inner, table: s.table, variable: s.variable}, true
}

// VectorSource reads bulk column values through a Cache. The key covers the
// whole ordered entity list.
type VectorSource struct {
	inner    core.VectorSource
	table    *ValueTable
	variable string
}

func (s *VectorSource) ValueType() model.ValueType { return s.inner.ValueType() }

func (s *VectorSource) Values(ctx context.Context, entities []model.VariableEntity) ([]model.Value, error) {
	key := Key(layerVector, s.table.dsName, s.table.name, s.variable, "Values", EntitiesKey(entities))
	values, err := readThrough(s.table.cache, "vector.Values", key,
		func() ([]model.Value, error) { return s.inner.Values(ctx, entities) })
	if err != nil {
		return nil, err
	}
	return append([]model.Value(nil), values...), nil
}

// Timestamps reads a (created, last update) pair through a Cache. The
// delegate pair is resolved lazily on the first miss.
type Timestamps struct {
	cache  Cache
	prefix []string
	load   func(ctx context.Context) (core.Timestamps, error)
}

func (t *Timestamps) key(accessor string) string {
	parts := make([]string, 0, len(t.prefix)+1)
	parts = append(parts, t.prefix...)
	return Key(append(parts, accessor)...)
}

func (t *Timestamps) Created(ctx context.Context) (model.Value, error) {
	return readThrough(t.cache, "timestamps.Created", t.key("Created"), func() (model.Value, error) {
		ts, err := t.load(ctx)
		if err != nil {
			return model.Value{}, err
		}
		return ts.Created(ctx)
	})
}

func (t *Timestamps) LastUpdate(ctx context.Context) (model.Value, error) {
	return readThrough(t.cache, "timestamps.LastUpdate", t.key("LastUpdate"), func() (model.Value, error) {
		ts, err := t.load(ctx)
		if err != nil {
			return model.Value{}, err
		}
		return ts.LastUpdate(ctx)
	})
}
