package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	quasarjson "github.com/ajitpratap0/quasar/pkg/json"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// Table reads one value table from the database. Variables are held in
// memory and refreshed when a writer commits; value sets and values are
// queried on every call.
type Table struct {
	ds         *Datasource
	name       string
	entityType string

	mu        sync.RWMutex
	variables []model.Variable
	index     map[string]int
}

func newTable(ds *Datasource, name, entityType string) *Table {
	return &Table{ds: ds, name: name, entityType: entityType, index: make(map[string]int)}
}

func (t *Table) Name() string                   { return t.name }
func (t *Table) Datasource() core.Datasource    { return t.ds }
func (t *Table) EntityType() string             { return t.entityType }
func (t *Table) IsForEntityType(et string) bool { return t.entityType == et }
func (t *Table) IsView() bool                   { return false }
func (t *Table) TableReference() string         { return core.TableReference(t.ds.name, t.name) }

func (t *Table) query(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	return t.ds.db.QueryContext(ctx, t.ds.dialect.rebind(q), args...)
}

func (t *Table) queryRow(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return t.ds.db.QueryRowContext(ctx, t.ds.dialect.rebind(q), args...)
}

func (t *Table) loadVariables(ctx context.Context) error {
	rows, err := t.query(ctx, `SELECT name, definition FROM quasar_variables WHERE table_name = ? ORDER BY ordinal, name`, t.name)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "cannot read variables of table '"+t.name+"'")
	}
	defer rows.Close()
	var vars []model.Variable
	for rows.Next() {
		var name, definition string
		if err := rows.Scan(&name, &definition); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "cannot scan variable row")
		}
		var v model.Variable
		if err := quasarjson.Unmarshal([]byte(definition), &v); err != nil {
			return errors.NewParsingError("SqlInvalidVariable", "table '%s' variable '%s': %v", t.name, name, err)
		}
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "cannot read variables of table '"+t.name+"'")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.variables = vars
	t.index = make(map[string]int, len(vars))
	for i, v := range vars {
		t.index[v.Name()] = i
	}
	return nil
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
	rows, err := t.query(ctx, `SELECT entity_id FROM quasar_value_sets WHERE table_name = ?`, t.name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot list entities of table '"+t.name+"'")
	}
	defer rows.Close()
	var out []model.VariableEntity
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot scan entity row")
		}
		out = append(out, model.NewVariableEntity(t.entityType, id))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot list entities of table '"+t.name+"'")
	}
	model.SortEntities(out)
	return out, nil
}

func (t *Table) VariableEntityCount(ctx context.Context) (int, error) {
	var n int
	if err := t.queryRow(ctx, `SELECT COUNT(*) FROM quasar_value_sets WHERE table_name = ?`, t.name).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, "cannot count entities of table '"+t.name+"'")
	}
	return n, nil
}

func (t *Table) HasValueSet(ctx context.Context, entity model.VariableEntity) (bool, error) {
	if entity.Type != t.entityType {
		return false, nil
	}
	var one int
	err := t.queryRow(ctx, `SELECT 1 FROM quasar_value_sets WHERE table_name = ? AND entity_id = ?`, t.name, entity.Identifier).Scan(&one)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, errors.Wrap(err, errors.ErrorTypeInternal, "cannot look up "+entity.String())
	}
	return true, nil
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
	v, err := t.Variable(variable.Name())
	if err != nil {
		return model.Value{}, err
	}
	var payload string
	err = t.queryRow(ctx, `SELECT payload FROM quasar_values WHERE table_name = ? AND entity_id = ? AND variable = ?`,
		t.name, vs.Entity().Identifier, v.Name()).Scan(&payload)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nullOf(v), nil
	case err != nil:
		return model.Value{}, errors.Wrap(err, errors.ErrorTypeInternal, "cannot read value of '"+v.Name()+"'")
	}
	return decodeValue(payload)
}

func (t *Table) Timestamps(ctx context.Context) (core.Timestamps, error) {
	return core.TableTimestamps(ctx, t)
}

func (t *Table) ValueSetTimestamps(ctx context.Context, entity model.VariableEntity) (core.Timestamps, error) {
	if entity.Type != t.entityType {
		return nil, errors.NoSuchValueSet(t.name, entity.String())
	}
	var created, lastUpdate string
	err := t.queryRow(ctx, `SELECT created, last_update FROM quasar_value_sets WHERE table_name = ? AND entity_id = ?`,
		t.name, entity.Identifier).Scan(&created, &lastUpdate)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, errors.NoSuchValueSet(t.name, entity.String())
	case err != nil:
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot read timestamps of "+entity.String())
	}
	c, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	u, err := parseTime(lastUpdate)
	if err != nil {
		return nil, err
	}
	return core.NewTimestamps(c, u), nil
}

func nullOf(v model.Variable) model.Value {
	if v.IsRepeatable() {
		return v.ValueType().NullSequence()
	}
	return v.ValueType().Null()
}

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

// Values scans the column once and picks the requested entities.
func (s *valueSource) Values(ctx context.Context, entities []model.VariableEntity) ([]model.Value, error) {
	rows, err := s.table.query(ctx, `SELECT entity_id, payload FROM quasar_values WHERE table_name = ? AND variable = ?`,
		s.table.name, s.variable.Name())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot read column '"+s.variable.Name()+"'")
	}
	defer rows.Close()
	wanted := make(map[string][]int, len(entities))
	for i, e := range entities {
		wanted[e.Identifier] = append(wanted[e.Identifier], i)
	}
	out := make([]model.Value, len(entities))
	for i := range out {
		out[i] = nullOf(s.variable)
	}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot scan value row")
		}
		positions, ok := wanted[id]
		if !ok {
			continue
		}
		v, err := decodeValue(payload)
		if err != nil {
			return nil, err
		}
		for _, i := range positions {
			out[i] = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot read column '"+s.variable.Name()+"'")
	}
	return out, nil
}
