package memory

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
)

type tableWriter struct {
	table  *Table
	closed bool
}

func (w *tableWriter) WriteVariables(ctx context.Context) (core.VariableWriter, error) {
	if w.closed {
		return nil, errors.Newf(errors.ErrorTypeWrite, "writer on table '%s' is closed", w.table.name)
	}
	return &variableWriter{table: w.table}, nil
}

func (w *tableWriter) WriteValueSet(ctx context.Context, entity model.VariableEntity) (core.ValueSetWriter, error) {
	if w.closed {
		return nil, errors.Newf(errors.ErrorTypeWrite, "writer on table '%s' is closed", w.table.name)
	}
	if entity.Type != w.table.entityType {
		return nil, errors.Newf(errors.ErrorTypeWrite, "entity %s does not match table entity type '%s'", entity, w.table.entityType)
	}
	return &valueSetWriter{table: w.table, entity: entity}, nil
}

func (w *tableWriter) Close(ctx context.Context) error {
	w.closed = true
	return nil
}

type variableWriter struct {
	table *Table
}

func (w *variableWriter) WriteVariable(ctx context.Context, v model.Variable) error {
	w.table.AddVariable(v)
	return nil
}

func (w *variableWriter) RemoveVariable(ctx context.Context, v model.Variable) error {
	w.table.mu.Lock()
	defer w.table.mu.Unlock()
	w.table.removeVariable(v.Name())
	return nil
}

func (w *variableWriter) Close(ctx context.Context) error { return nil }

// valueSetWriter materializes its entity on the first written value.
type valueSetWriter struct {
	table  *Table
	entity model.VariableEntity
}

func (w *valueSetWriter) WriteValue(ctx context.Context, v model.Variable, value model.Value) error {
	w.table.mu.Lock()
	defer w.table.mu.Unlock()
	if _, ok := w.table.index[v.Name()]; !ok {
		w.table.putVariable(v)
	}
	w.table.put(w.entity, v.Name(), value)
	return nil
}

func (w *valueSetWriter) Remove(ctx context.Context) error {
	w.table.mu.Lock()
	defer w.table.mu.Unlock()
	delete(w.table.rows, w.entity)
	return nil
}

func (w *valueSetWriter) Close(ctx context.Context) error { return nil }
