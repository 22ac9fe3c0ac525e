// Package jsonl stores each value table of a datasource as one JSON-lines
// file in a directory.
//
// A table file is named "<table>.jsonl", optionally followed by ".zst" or
// ".gz". Its first line is a header holding the entity type and the
// variables; every following line is one value set:
//
//	{"table":"people","entity_type":"Participant","variables":[...]}
//	{"id":"1","created":"2024-01-01T00:00:00Z","values":{"AGE":{"type":"integer","value":"42"}}}
//
// Tables are loaded into memory when the datasource initialises. A file
// that cannot be parsed is skipped and reported; the other tables stay
// available. Writes go to memory and the whole table file is rewritten
// when the writer is closed.
package jsonl

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"go.uber.org/zap"
)

const (
	// Type is the registry name of this backend.
	Type = "jsonl"
	// Extension is the extension of an uncompressed table file.
	Extension = ".jsonl"
)

// Datasource is a directory of table files.
type Datasource struct {
	name        string
	dir         string
	compression compression.Algorithm
	level       compression.Level
	logger      *zap.Logger

	mu     sync.RWMutex
	tables map[string]*memory.Table
	files  map[string]string
}

// Option configures a Datasource.
type Option func(*Datasource)

// WithCompression sets the algorithm of table files created by writers.
// Existing files keep the algorithm of their extension.
func WithCompression(a compression.Algorithm) Option {
	return func(d *Datasource) { d.compression = a }
}

// WithCompressionLevel sets the compression level of written files.
func WithCompressionLevel(l compression.Level) Option {
	return func(d *Datasource) { d.level = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Datasource) { d.logger = l }
}

// New creates a datasource over dir. Nothing is read before Initialise.
func New(name, dir string, opts ...Option) *Datasource {
	d := &Datasource{
		name:        name,
		dir:         dir,
		compression: compression.None,
		level:       compression.Default,
		tables:      make(map[string]*memory.Table),
		files:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Component("jsonl").With(zap.String("datasource", name))
	}
	return d
}

func (d *Datasource) Name() string { return d.name }
func (d *Datasource) Type() string { return Type }

// Dir returns the directory holding the table files.
func (d *Datasource) Dir() string { return d.dir }

// Initialise loads every table file of the directory, creating the
// directory when missing. Files that fail to parse are collected into one
// ParsingError returned after the other tables are registered.
func (d *Datasource) Initialise(ctx context.Context) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return errors.Runtime(errors.Wrap(err, errors.ErrorTypeConfig, "cannot create directory "+d.dir))
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return errors.Runtime(errors.Wrap(err, errors.ErrorTypeConfig, "cannot list directory "+d.dir))
	}

	var loaders []core.TableLoader
	paths := make(map[string]string)
	for _, entry := range entries {
		name, ok := tableName(entry.Name())
		if entry.IsDir() || !ok {
			continue
		}
		path := filepath.Join(d.dir, entry.Name())
		if prev, dup := paths[name]; dup {
			d.logger.Warn("duplicate table file ignored", zap.String("table", name), zap.String("file", path), zap.String("kept", prev))
			continue
		}
		paths[name] = path
		loaders = append(loaders, core.TableLoaderFunc(func(ctx context.Context) (core.ValueTable, error) {
			return d.load(name, path)
		}))
	}

	tables, loadErr := core.LoadTables(ctx, "JsonlDatasourceInitialisation", loaders)
	d.mu.Lock()
	for _, t := range tables {
		mt := t.(*memory.Table)
		d.tables[mt.Name()] = mt
		d.files[mt.Name()] = paths[mt.Name()]
	}
	d.mu.Unlock()
	if loadErr != nil {
		d.logger.Warn("datasource initialised with errors", zap.Int("tables", len(tables)), zap.Error(loadErr))
		return loadErr
	}
	d.logger.Debug("datasource initialised", zap.String("dir", d.dir), zap.Int("tables", len(tables)))
	return nil
}

func (d *Datasource) load(name, path string) (core.ValueTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "cannot open "+path)
	}
	defer f.Close()
	r, err := compression.NewReader(bufio.NewReader(f), compression.FromPath(path))
	if err != nil {
		return nil, errors.NewParsingError("JsonlCompression", "file %s: %v", path, err)
	}
	defer r.Close()
	return readTable(d, name, path, r)
}

// Dispose releases the loaded tables. Table files are left untouched.
func (d *Datasource) Dispose(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = make(map[string]*memory.Table)
	d.files = make(map[string]string)
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

// CreateWriter opens a writer on the named table, creating it when absent.
// The table file is rewritten when the writer is closed.
func (d *Datasource) CreateWriter(ctx context.Context, name, entityType string) (core.ValueTableWriter, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return nil, errors.Newf(errors.ErrorTypeWrite, "invalid table name '%s'", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[name]
	if !ok {
		t = memory.NewTable(d, name, entityType)
		d.tables[name] = t
		d.files[name] = filepath.Join(d.dir, name+Extension+d.compression.Extension())
		d.logger.Debug("table created", zap.String("table", name), zap.String("file", d.files[name]))
	} else if t.EntityType() != entityType {
		return nil, errors.Newf(errors.ErrorTypeWrite, "table '%s' holds entity type '%s', not '%s'", name, t.EntityType(), entityType)
	}
	return &writer{ValueTableWriter: t.Writer(), ds: d, table: t}, nil
}

func (d *Datasource) CanDropTable(name string) bool {
	return d.HasValueTable(name)
}

// DropTable removes the table and its file.
func (d *Datasource) DropTable(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tables[name]; !ok {
		return errors.NoSuchValueTable(d.name, name)
	}
	if path := d.files[name]; path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, errors.ErrorTypeWrite, "cannot remove "+path)
		}
	}
	delete(d.tables, name)
	delete(d.files, name)
	return nil
}

// persist rewrites the file of t through a temporary file renamed into
// place.
func (d *Datasource) persist(ctx context.Context, t *memory.Table) (err error) {
	d.mu.RLock()
	path := d.files[t.Name()]
	d.mu.RUnlock()
	if path == "" {
		return errors.Newf(errors.ErrorTypeWrite, "table '%s' was dropped", t.Name())
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot create "+tmp)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	buf := bufio.NewWriterSize(f, 64*1024)
	cw, err := compression.NewWriter(buf, compression.FromPath(path), d.level)
	if err != nil {
		return err
	}
	if err := writeTable(ctx, cw, t); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot finish "+tmp)
	}
	if err := buf.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot flush "+tmp)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot close "+tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "cannot replace "+path)
	}
	d.logger.Debug("table persisted", zap.String("table", t.Name()), zap.String("file", path))
	return nil
}

// tableName returns the table stored in a file name, if it is a table file.
func tableName(file string) (string, bool) {
	base := compression.TrimExtension(file)
	if !strings.HasSuffix(base, Extension) || base == Extension {
		return "", false
	}
	return strings.TrimSuffix(base, Extension), true
}

type writer struct {
	core.ValueTableWriter
	ds     *Datasource
	table  *memory.Table
	closed bool
}

// Close closes the session and persists the table. A second call is a no-op.
func (w *writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.ValueTableWriter.Close(ctx); err != nil {
		return err
	}
	return w.ds.persist(ctx, w.table)
}
