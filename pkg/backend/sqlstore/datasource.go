// Package sqlstore keeps value tables in a SQL database using an
// entity-attribute-value layout shared by every table of the datasource:
//
//	quasar_tables      (name, entity_type)
//	quasar_variables   (table_name, name, ordinal, definition)
//	quasar_value_sets  (table_name, entity_id, created, last_update)
//	quasar_values      (table_name, entity_id, variable, payload)
//
// Variable definitions and values are stored as JSON. A null value is the
// absence of its quasar_values row. Reads go to the database; writes are
// buffered by the table writer and committed in one transaction on Close.
//
// SQLite, PostgreSQL and MySQL are supported through their database/sql
// drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	quasarjson "github.com/ajitpratap0/quasar/pkg/json"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/model"
	"go.uber.org/zap"
)

// Datasource is a SQL database holding value tables.
type Datasource struct {
	name    string
	dialect Dialect
	dsn     string
	db      *sql.DB
	ownsDB  bool
	now     func() time.Time
	logger  *zap.Logger

	mu     sync.RWMutex
	tables map[string]*Table
}

// Option configures a Datasource.
type Option func(*Datasource)

// WithDB uses an already opened database instead of opening the DSN. The
// datasource does not close it on Dispose.
func WithDB(db *sql.DB) Option {
	return func(d *Datasource) { d.db = db }
}

// WithClock replaces the clock stamping written value sets.
func WithClock(now func() time.Time) Option {
	return func(d *Datasource) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Datasource) { d.logger = l }
}

// New creates a datasource. The database is opened by Initialise.
func New(name string, dialect Dialect, dsn string, opts ...Option) *Datasource {
	d := &Datasource{
		name:    name,
		dialect: dialect,
		dsn:     dsn,
		now:     func() time.Time { return time.Now().UTC() },
		tables:  make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Component("sqlstore").With(zap.String("datasource", name), zap.String("dialect", dialect.Name))
	}
	return d
}

func (d *Datasource) Name() string { return d.name }
func (d *Datasource) Type() string { return d.dialect.Name }

// DB returns the underlying database, nil before Initialise.
func (d *Datasource) DB() *sql.DB { return d.db }

// Initialise opens the database, creates the schema when missing and loads
// table metadata. A table whose variables cannot be decoded is skipped and
// reported in an aggregated ParsingError.
func (d *Datasource) Initialise(ctx context.Context) error {
	if d.db == nil {
		db, err := sql.Open(d.dialect.Driver, d.dialect.dsn(d.dsn))
		if err != nil {
			return errors.Runtime(errors.Wrap(err, errors.ErrorTypeConfig, "cannot open "+d.dialect.Name+" database"))
		}
		d.db, d.ownsDB = db, true
	}
	if err := d.db.PingContext(ctx); err != nil {
		return errors.Runtime(errors.Wrap(err, errors.ErrorTypeConfig, "cannot reach "+d.dialect.Name+" database"))
	}
	for _, stmt := range d.dialect.schema() {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Runtime(errors.Wrap(err, errors.ErrorTypeInternal, "cannot create schema"))
		}
	}

	rows, err := d.db.QueryContext(ctx, `SELECT name, entity_type FROM quasar_tables ORDER BY name`)
	if err != nil {
		return errors.Runtime(errors.Wrap(err, errors.ErrorTypeInternal, "cannot list tables"))
	}
	var loaders []core.TableLoader
	for rows.Next() {
		var name, entityType string
		if err := rows.Scan(&name, &entityType); err != nil {
			_ = rows.Close()
			return errors.Runtime(errors.Wrap(err, errors.ErrorTypeInternal, "cannot scan table row"))
		}
		loaders = append(loaders, core.TableLoaderFunc(func(ctx context.Context) (core.ValueTable, error) {
			t := newTable(d, name, entityType)
			if err := t.loadVariables(ctx); err != nil {
				return nil, err
			}
			return t, nil
		}))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return errors.Runtime(errors.Wrap(err, errors.ErrorTypeInternal, "cannot list tables"))
	}
	_ = rows.Close()

	tables, loadErr := core.LoadTables(ctx, "SqlDatasourceInitialisation", loaders)
	d.mu.Lock()
	for _, t := range tables {
		d.tables[t.Name()] = t.(*Table)
	}
	d.mu.Unlock()
	if loadErr != nil {
		d.logger.Warn("datasource initialised with errors", zap.Int("tables", len(tables)), zap.Error(loadErr))
		return loadErr
	}
	d.logger.Debug("datasource initialised", zap.Int("tables", len(tables)))
	return nil
}

// Dispose closes the database when the datasource opened it.
func (d *Datasource) Dispose(ctx context.Context) error {
	d.mu.Lock()
	d.tables = make(map[string]*Table)
	d.mu.Unlock()
	if d.db == nil || !d.ownsDB {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return errors.Runtime(errors.Wrap(err, errors.ErrorTypeInternal, "cannot close database"))
	}
	return nil
}

func (d *Datasource) ValueTableNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.tables))
	for n := range d.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (d *Datasource) ValueTables() []core.ValueTable {
	names := d.ValueTableNames()
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]core.ValueTable, 0, len(names))
	for _, n := range names {
		out = append(out, d.tables[n])
	}
	return out
}

func (d *Datasource) ValueTable(name string) (core.ValueTable, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[name]
	if !ok {
		return nil, errors.NoSuchValueTable(d.name, name)
	}
	return t, nil
}

func (d *Datasource) HasValueTable(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.tables[name]
	return ok
}

// CreateWriter registers the table when it does not exist and opens a
// buffered writer on it.
func (d *Datasource) CreateWriter(ctx context.Context, name, entityType string) (core.ValueTableWriter, error) {
	if d.db == nil {
		return nil, errors.Newf(errors.ErrorTypeWrite, "datasource '%s' is not initialised", d.name)
	}
	if name == "" || len(name) > 255 {
		return nil, errors.Newf(errors.ErrorTypeWrite, "invalid table name '%s'", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[name]
	if ok {
		if t.EntityType() != entityType {
			return nil, errors.Newf(errors.ErrorTypeWrite, "table '%s' holds entity type '%s', not '%s'", name, t.EntityType(), entityType)
		}
		return newWriter(t), nil
	}
	q := d.dialect.upsert("quasar_tables", []string{"name"}, []string{"entity_type"}, nil)
	if _, err := d.db.ExecContext(ctx, q, name, entityType); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeWrite, "cannot create table '"+name+"'")
	}
	t = newTable(d, name, entityType)
	d.tables[name] = t
	d.logger.Debug("table created", zap.String("table", name), zap.String("entity_type", entityType))
	return newWriter(t), nil
}

func (d *Datasource) CanDropTable(name string) bool {
	return d.HasValueTable(name)
}

// DropTable deletes the table with its variables and values.
func (d *Datasource) DropTable(ctx context.Context, name string) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tables[name]; !ok {
		return errors.NoSuchValueTable(d.name, name)
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range []string{
		`DELETE FROM quasar_values WHERE table_name = ?`,
		`DELETE FROM quasar_value_sets WHERE table_name = ?`,
		`DELETE FROM quasar_variables WHERE table_name = ?`,
		`DELETE FROM quasar_tables WHERE name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, d.dialect.rebind(stmt), name); err != nil {
			return errors.Wrap(err, errors.ErrorTypeWrite, "cannot drop table '"+name+"'")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot drop table '"+name+"'")
	}
	delete(d.tables, name)
	return nil
}

func encodeValue(v model.Value) (string, error) {
	data, err := quasarjson.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "cannot encode value")
	}
	return string(data), nil
}

func decodeValue(s string) (model.Value, error) {
	var v model.Value
	if err := quasarjson.Unmarshal([]byte(s), &v); err != nil {
		return model.Value{}, errors.Wrap(err, errors.ErrorTypeData, "cannot decode value")
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (model.Value, error) {
	if s == "" {
		return model.DateTimeType.Null(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return model.Value{}, errors.Wrap(err, errors.ErrorTypeData, "invalid timestamp '"+s+"'")
	}
	return model.DateTimeType.ValueOf(t)
}
