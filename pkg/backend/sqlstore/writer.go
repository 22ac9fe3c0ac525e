package sqlstore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	quasarjson "github.com/ajitpratap0/quasar/pkg/json"
	"github.com/ajitpratap0/quasar/pkg/model"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of buffered statements after which a
// writer commits early.
const DefaultBatchSize = 5000

type statement struct {
	query string
	args  []interface{}
}

// tableWriter buffers statements and commits them in one transaction when
// closed, or earlier once the buffer reaches the batch size.
type tableWriter struct {
	table     *Table
	batchSize int

	mu       sync.Mutex
	pending  []statement
	declared map[string]bool
	ordinal  int
	closed   bool
}

func newWriter(t *Table) *tableWriter {
	declared := make(map[string]bool)
	for _, v := range t.Variables() {
		declared[v.Name()] = true
	}
	return &tableWriter{table: t, batchSize: DefaultBatchSize, declared: declared, ordinal: len(declared)}
}

func (w *tableWriter) WriteVariables(ctx context.Context) (core.VariableWriter, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	return &variableWriter{w: w}, nil
}

func (w *tableWriter) WriteValueSet(ctx context.Context, entity model.VariableEntity) (core.ValueSetWriter, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	if entity.Type != w.table.entityType {
		return nil, errors.Newf(errors.ErrorTypeWrite, "entity %s does not match table entity type '%s'", entity, w.table.entityType)
	}
	return &valueSetWriter{w: w, entity: entity}, nil
}

func (w *tableWriter) checkOpen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.Newf(errors.ErrorTypeWrite, "writer on table '%s' is closed", w.table.name)
	}
	return nil
}

// declare queues the variable definition. New variables are numbered after
// the existing ones; a redeclared variable keeps its position.
func (w *tableWriter) declare(v model.Variable, replace bool) ([]statement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.declared[v.Name()] && !replace {
		return nil, nil
	}
	data, err := quasarjson.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot encode variable '"+v.Name()+"'")
	}
	d := w.table.ds.dialect
	if w.declared[v.Name()] {
		return []statement{{
			query: d.rebind(`UPDATE quasar_variables SET definition = ? WHERE table_name = ? AND name = ?`),
			args:  []interface{}{string(data), w.table.name, v.Name()},
		}}, nil
	}
	w.declared[v.Name()] = true
	ordinal := w.ordinal
	w.ordinal++
	return []statement{{
		query: d.upsert("quasar_variables", []string{"table_name", "name"}, nil, []string{"ordinal", "definition"}),
		args:  []interface{}{w.table.name, v.Name(), ordinal, string(data)},
	}}, nil
}

func (w *tableWriter) undeclare(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.declared, name)
}

func (w *tableWriter) enqueue(ctx context.Context, stmts ...statement) error {
	w.mu.Lock()
	w.pending = append(w.pending, stmts...)
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()
	if full {
		return w.flush(ctx)
	}
	return nil
}

// flush commits the pending statements in one transaction.
func (w *tableWriter) flush(ctx context.Context) (err error) {
	w.mu.Lock()
	stmts := w.pending
	w.pending = nil
	w.mu.Unlock()
	if len(stmts) == 0 {
		return nil
	}

	db := w.table.ds.db
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot begin transaction")
	}
	prepared := make(map[string]*sql.Stmt)
	defer func() {
		for _, s := range prepared {
			_ = s.Close()
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, s := range stmts {
		ps, ok := prepared[s.query]
		if !ok {
			if ps, err = tx.PrepareContext(ctx, s.query); err != nil {
				return errors.Wrap(err, errors.ErrorTypeWrite, "cannot prepare statement")
			}
			prepared[s.query] = ps
		}
		if _, err = ps.ExecContext(ctx, s.args...); err != nil {
			return errors.Wrap(err, errors.ErrorTypeWrite, "cannot write table '"+w.table.name+"'")
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot commit table '"+w.table.name+"'")
	}
	w.table.ds.logger.Debug("statements committed", zap.String("table", w.table.name), zap.Int("statements", len(stmts)))
	return nil
}

// Close commits the buffered writes and refreshes the table variables.
func (w *tableWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	if err := w.flush(ctx); err != nil {
		return err
	}
	return w.table.loadVariables(ctx)
}

type variableWriter struct {
	w *tableWriter
}

func (vw *variableWriter) WriteVariable(ctx context.Context, v model.Variable) error {
	stmts, err := vw.w.declare(v, true)
	if err != nil {
		return err
	}
	return vw.w.enqueue(ctx, stmts...)
}

func (vw *variableWriter) RemoveVariable(ctx context.Context, v model.Variable) error {
	d := vw.w.table.ds.dialect
	name := vw.w.table.name
	vw.w.undeclare(v.Name())
	return vw.w.enqueue(ctx,
		statement{query: d.rebind(`DELETE FROM quasar_values WHERE table_name = ? AND variable = ?`), args: []interface{}{name, v.Name()}},
		statement{query: d.rebind(`DELETE FROM quasar_variables WHERE table_name = ? AND name = ?`), args: []interface{}{name, v.Name()}},
	)
}

func (vw *variableWriter) Close(ctx context.Context) error { return nil }

// valueSetWriter collects the statements of one entity. The entity row is
// written on Close once any value, null or not, has been written.
type valueSetWriter struct {
	w       *tableWriter
	entity  model.VariableEntity
	decls   []statement
	stmts   []statement
	touched bool
	removed bool
	closed  bool
}

func (vw *valueSetWriter) WriteValue(ctx context.Context, v model.Variable, value model.Value) error {
	decl, err := vw.w.declare(v, false)
	if err != nil {
		return err
	}
	vw.decls = append(vw.decls, decl...)
	vw.touched = true

	d := vw.w.table.ds.dialect
	name := vw.w.table.name
	if value.IsNull() {
		vw.stmts = append(vw.stmts, statement{
			query: d.rebind(`DELETE FROM quasar_values WHERE table_name = ? AND entity_id = ? AND variable = ?`),
			args:  []interface{}{name, vw.entity.Identifier, v.Name()},
		})
		return nil
	}
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}
	vw.stmts = append(vw.stmts, statement{
		query: d.upsert("quasar_values", []string{"table_name", "entity_id", "variable"}, nil, []string{"payload"}),
		args:  []interface{}{name, vw.entity.Identifier, v.Name(), payload},
	})
	return nil
}

func (vw *valueSetWriter) Remove(ctx context.Context) error {
	d := vw.w.table.ds.dialect
	name := vw.w.table.name
	vw.stmts = append(vw.stmts[:0],
		statement{query: d.rebind(`DELETE FROM quasar_values WHERE table_name = ? AND entity_id = ?`), args: []interface{}{name, vw.entity.Identifier}},
		statement{query: d.rebind(`DELETE FROM quasar_value_sets WHERE table_name = ? AND entity_id = ?`), args: []interface{}{name, vw.entity.Identifier}},
	)
	vw.removed = true
	return nil
}

func (vw *valueSetWriter) Close(ctx context.Context) error {
	if vw.closed {
		return nil
	}
	vw.closed = true
	if vw.touched && !vw.removed {
		now := formatTime(vw.w.table.ds.now())
		vw.stmts = append([]statement{{
			query: vw.w.table.ds.dialect.upsert("quasar_value_sets",
				[]string{"table_name", "entity_id"}, []string{"created"}, []string{"last_update"}),
			args: []interface{}{vw.w.table.name, vw.entity.Identifier, now, now},
		}}, vw.stmts...)
	}
	return vw.w.enqueue(ctx, append(vw.decls, vw.stmts...)...)
}
