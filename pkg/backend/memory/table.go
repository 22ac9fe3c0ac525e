package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
)

type row struct {
	values     map[string]model.Value
	created    time.Time
	lastUpdate time.Time
}

// Table is a mutable in-memory value table.
type Table struct {
	ds         core.Datasource
	name       string
	entityType string
	now        func() time.Time

	mu        sync.RWMutex
	variables []model.Variable
	index     map[string]int
	rows      map[model.VariableEntity]*row
}

// NewTable creates an empty table owned by ds.
func NewTable(ds core.Datasource, name, entityType string) *Table {
	return &Table{
		ds:         ds,
		name:       name,
		entityType: entityType,
		now:        func() time.Time { return time.Now().UTC() },
		index:      make(map[string]int),
		rows:       make(map[model.VariableEntity]*row),
	}
}

// SetClock replaces the clock used to stamp written rows.
func (t *Table) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *Table) Name() string                   { return t.name }
func (t *Table) Datasource() core.Datasource    { return t.ds }
func (t *Table) EntityType() string             { return t.entityType }
func (t *Table) IsForEntityType(et string) bool { return t.entityType == et }
func (t *Table) IsView() bool                   { return false }

func (t *Table) TableReference() string {
	dsName := ""
	if t.ds != nil {
		dsName = t.ds.Name()
	}
	return core.TableReference(dsName, t.name)
}

// Writer opens a write session directly on the table.
func (t *Table) Writer() core.ValueTableWriter {
	return &tableWriter{table: t}
}

// AddVariable adds or replaces a variable, keeping declaration order.
func (t *Table) AddVariable(v model.Variable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.putVariable(v)
}

func (t *Table) putVariable(v model.Variable) {
	if i, ok := t.index[v.Name()]; ok {
		t.variables[i] = v
		return
	}
	t.index[v.Name()] = len(t.variables)
	t.variables = append(t.variables, v)
}

func (t *Table) removeVariable(name string) {
	i, ok := t.index[name]
	if !ok {
		return
	}
	t.variables = append(t.variables[:i], t.variables[i+1:]...)
	delete(t.index, name)
	for j := i; j < len(t.variables); j++ {
		t.index[t.variables[j].Name()] = j
	}
	for _, r := range t.rows {
		delete(r.values, name)
	}
}

// Put stores one value, creating the entity row if needed.
func (t *Table) Put(entity model.VariableEntity, variable string, value model.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.put(entity, variable, value)
}

func (t *Table) put(entity model.VariableEntity, variable string, value model.Value) {
	now := t.now()
	r, ok := t.rows[entity]
	if !ok {
		r = &row{values: make(map[string]model.Value), created: now}
		t.rows[entity] = r
	}
	r.values[variable] = value
	r.lastUpdate = now
}

// AddEntity creates an empty row.
func (t *Table) AddEntity(entity model.VariableEntity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[entity]; !ok {
		now := t.now()
		t.rows[entity] = &row{values: make(map[string]model.Value), created: now, lastUpdate: now}
	}
}

// SetTimestamps overrides the stamps of an existing row.
func (t *Table) SetTimestamps(entity model.VariableEntity, created, lastUpdate time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rows[entity]; ok {
		r.created = created
		r.lastUpdate = lastUpdate
	}
}

func (t *Table) Variables() []model.Variable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]model.Variable(nil), t.variables...)
}

func (t *Table) Variable(name string) (model.Variable, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[name]
	if !ok {
		return model.Variable{}, errors.NoSuchVariable(t.name, name)
	}
	return t.variables[i], nil
}

func (t *Table) HasVariable(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.index[name]
	return ok
}

func (t *Table) VariableValueSource(name string) (core.VariableValueSource, error) {
	v, err := t.Variable(name)
	if err != nil {
		return nil, err
	}
	return &valueSource{table: t, variable: v}, nil
}

func (t *Table) VariableEntities(ctx context.Context) ([]model.VariableEntity, error) {
	t.mu.RLock()
	out := make([]model.VariableEntity, 0, len(t.rows))
	for e := range t.rows {
		out = append(out, e)
	}
	t.mu.RUnlock()
	model.SortEntities(out)
	return out, nil
}

func (t *Table) VariableEntityCount(ctx context.Context) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows), nil
}

func (t *Table) HasValueSet(ctx context.Context, entity model.VariableEntity) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rows[entity]
	return ok, nil
}

func (t *Table) ValueSet(ctx context.Context, entity model.VariableEntity) (core.ValueSet, error) {
	ts, err := t.ValueSetTimestamps(ctx, entity)
	if err != nil {
		return nil, err
	}
	return core.NewValueSetWithTimestamps(t, entity, ts), nil
}

func (t *Table) ValueSets(ctx context.Context, entities []model.VariableEntity) ([]core.ValueSet, error) {
	return core.ValueSetsOf(ctx, t, entities)
}

func (t *Table) Value(ctx context.Context, variable model.Variable, vs core.ValueSet) (model.Value, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value(variable.Name(), vs.Entity())
}

func (t *Table) value(name string, entity model.VariableEntity) (model.Value, error) {
	i, ok := t.index[name]
	if !ok {
		return model.Value{}, errors.NoSuchVariable(t.name, name)
	}
	r, ok := t.rows[entity]
	if !ok {
		return model.Value{}, errors.NoSuchValueSet(t.name, entity.String())
	}
	if v, ok := r.values[name]; ok {
		return v, nil
	}
	variable := t.variables[i]
	if variable.IsRepeatable() {
		return variable.ValueType().NullSequence(), nil
	}
	return variable.ValueType().Null(), nil
}

func (t *Table) Timestamps(ctx context.Context) (core.Timestamps, error) {
	return core.TableTimestamps(ctx, t)
}

func (t *Table) ValueSetTimestamps(ctx context.Context, entity model.VariableEntity) (core.Timestamps, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[entity]
	if !ok {
		return nil, errors.NoSuchValueSet(t.name, entity.String())
	}
	return core.NewTimestamps(stamp(r.created), stamp(r.lastUpdate)), nil
}

func stamp(ts time.Time) model.Value {
	if ts.IsZero() {
		return model.DateTimeType.Null()
	}
	return model.DateTimeType.MustValueOf(ts)
}

// valueSource reads one column; it is also its own vector source.
type valueSource struct {
	table    *Table
	variable model.Variable
}

func (s *valueSource) Variable() model.Variable   { return s.variable }
func (s *valueSource) ValueType() model.ValueType { return s.variable.ValueType() }

func (s *valueSource) Value(ctx context.Context, vs core.ValueSet) (model.Value, error) {
	return s.table.Value(ctx, s.variable, vs)
}

func (s *valueSource) VectorSource() (core.VectorSource, bool) { return s, true }

func (s *valueSource) Values(ctx context.Context, entities []model.VariableEntity) ([]model.Value, error) {
	s.table.mu.RLock()
	defer s.table.mu.RUnlock()
	out := make([]model.Value, len(entities))
	for i, e := range entities {
		v, err := s.table.value(s.variable.Name(), e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
