// Package registry builds datasources from their configuration by type name.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/backend/jsonl"
	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/backend/sqlstore"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"go.uber.org/zap"
)

// Factory creates an uninitialised datasource from its declaration.
type Factory func(cfg config.DatasourceConfig, l *zap.Logger) (core.Datasource, error)

// Registry manages datasource factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Component("datasource_registry"),
	}
}

// Default returns a registry with every built-in backend registered.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(memory.Type, newMemory)
	_ = r.Register(jsonl.Type, newJSONL)
	for _, name := range sqlstore.Dialects() {
		dialect, _ := sqlstore.DialectFor(name)
		_ = r.Register(name, newSQL(dialect))
	}
	return r
}

// Register adds a factory under a type name.
func (r *Registry) Register(typeName string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeName]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("datasource type %s already registered", typeName))
	}
	r.factories[typeName] = factory
	r.logger.Debug("datasource type registered", zap.String("type", typeName))
	return nil
}

// Create builds the datasource declared by cfg without initialising it.
func (r *Registry) Create(cfg config.DatasourceConfig) (core.Datasource, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("datasource type %s not found", cfg.Type))
	}
	ds, err := factory(cfg, r.logger.With(zap.String("datasource", cfg.Name)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create datasource %s", cfg.Name))
	}
	return ds, nil
}

// Open creates and initialises a datasource. A datasource whose
// initialisation fails is disposed before the error is returned.
func (r *Registry) Open(ctx context.Context, cfg config.DatasourceConfig) (core.Datasource, error) {
	ds, err := r.Create(cfg)
	if err != nil {
		return nil, err
	}
	if err := core.InitialiseAll(ctx, ds); err != nil {
		_ = core.DisposeAll(ctx, ds)
		return nil, err
	}
	return ds, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Has reports whether a type is registered.
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[typeName]
	return exists
}

func newMemory(cfg config.DatasourceConfig, l *zap.Logger) (core.Datasource, error) {
	return memory.New(cfg.Name, memory.WithLogger(l)), nil
}

func newJSONL(cfg config.DatasourceConfig, l *zap.Logger) (core.Datasource, error) {
	if cfg.Path == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "datasource '%s': path is required", cfg.Name)
	}
	alg, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return jsonl.New(cfg.Name, cfg.Path, jsonl.WithCompression(alg), jsonl.WithLogger(l)), nil
}

func newSQL(dialect sqlstore.Dialect) Factory {
	return func(cfg config.DatasourceConfig, l *zap.Logger) (core.Datasource, error) {
		if cfg.DSN == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "datasource '%s': dsn is required", cfg.Name)
		}
		return sqlstore.New(cfg.Name, dialect, cfg.DSN, sqlstore.WithLogger(l)), nil
	}
}
