// Package memory implements an in-process Datasource. It is the reference
// backend: the copy engine uses it as a default destination and every layer
// above uses it as a test fixture.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"go.uber.org/zap"
)

// Type is the registry name of this backend.
const Type = "memory"

// Datasource keeps its tables in memory.
type Datasource struct {
	name    string
	loaders []core.TableLoader
	logger  *zap.Logger

	mu     sync.RWMutex
	tables map[string]core.ValueTable
}

// Option configures a Datasource.
type Option func(*Datasource)

// WithLoaders registers table loaders run during Initialise.
func WithLoaders(loaders ...core.TableLoader) Option {
	return func(d *Datasource) { d.loaders = append(d.loaders, loaders...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Datasource) { d.logger = l }
}

// New creates an empty datasource.
func New(name string, opts ...Option) *Datasource {
	d := &Datasource{
		name:   name,
		tables: make(map[string]core.ValueTable),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Component("memory").With(zap.String("datasource", name))
	}
	return d
}

func (d *Datasource) Name() string { return d.name }
func (d *Datasource) Type() string { return Type }

// Initialise runs the registered loaders. Tables that load are added even
// when others fail to parse; the parsing failures are returned as one
// aggregated error.
func (d *Datasource) Initialise(ctx context.Context) error {
	tables, loadErr := core.LoadTables(ctx, "DatasourceInitialisation", d.loaders)
	d.mu.Lock()
	for _, t := range tables {
		d.tables[t.Name()] = t
	}
	d.mu.Unlock()
	if loadErr != nil {
		d.logger.Warn("datasource initialised with errors", zap.Int("tables", len(tables)), zap.Error(loadErr))
		return loadErr
	}
	if err := core.InitialiseTables(ctx, d.ValueTables()); err != nil {
		return err
	}
	d.logger.Debug("datasource initialised", zap.Int("tables", len(tables)))
	return nil
}

// Dispose cascades to every table.
func (d *Datasource) Dispose(ctx context.Context) error {
	return core.DisposeTables(ctx, d.ValueTables())
}

// ValueTableNames returns the table names, sorted.
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

// ValueTables returns the tables ordered by name.
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

// AddTable registers a table built outside the datasource.
func (d *Datasource) AddTable(t core.ValueTable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[t.Name()] = t
}

// NewTable creates and registers an empty table.
func (d *Datasource) NewTable(name, entityType string) *Table {
	t := NewTable(d, name, entityType)
	d.AddTable(t)
	return t
}

// CreateWriter opens a writer, creating the table when it does not exist.
func (d *Datasource) CreateWriter(ctx context.Context, tableName, entityType string) (core.ValueTableWriter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	existing, ok := d.tables[tableName]
	if !ok {
		t := NewTable(d, tableName, entityType)
		d.tables[tableName] = t
		d.logger.Debug("table created", zap.String("table", tableName), zap.String("entity_type", entityType))
		return t.Writer(), nil
	}
	t, ok := existing.(*Table)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeCapability, "table '%s' in datasource '%s' is not writable", tableName, d.name)
	}
	if t.EntityType() != entityType {
		return nil, errors.Newf(errors.ErrorTypeWrite, "table '%s' holds entity type '%s', not '%s'", tableName, t.EntityType(), entityType)
	}
	return t.Writer(), nil
}

func (d *Datasource) CanDropTable(name string) bool {
	return d.HasValueTable(name)
}

func (d *Datasource) DropTable(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tables[name]; !ok {
		return errors.NoSuchValueTable(d.name, name)
	}
	delete(d.tables, name)
	return nil
}
