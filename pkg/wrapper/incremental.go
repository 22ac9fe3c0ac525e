package wrapper

import (
	"context"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// IncrementalFunction admits the entities of a source table that are newer
// than their copy in a destination table. An entity is admitted when its
// source last update is unknown, its destination row or last update is
// unknown, or the source last update is later. Decisions are memoized.
type IncrementalFunction struct {
	source      core.ValueTable
	destination core.ValueTable

	mu   sync.Mutex
	memo map[model.VariableEntity]bool
}

// NewIncrementalFunction compares source rows against destination rows.
func NewIncrementalFunction(source, destination core.ValueTable) *IncrementalFunction {
	return &IncrementalFunction{source: source, destination: destination, memo: make(map[model.VariableEntity]bool)}
}

func (f *IncrementalFunction) Apply(ctx context.Context, e model.VariableEntity) (model.VariableEntity, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if include, ok := f.memo[e]; ok {
		return e, include, nil
	}
	include, err := f.include(ctx, e)
	if err != nil {
		return model.VariableEntity{}, false, err
	}
	f.memo[e] = include
	return e, include, nil
}

func (f *IncrementalFunction) Unapply(_ context.Context, e model.VariableEntity) (model.VariableEntity, error) {
	return e, nil
}

func (f *IncrementalFunction) include(ctx context.Context, e model.VariableEntity) (bool, error) {
	src, err := lastUpdate(ctx, f.source, e)
	if err != nil {
		return false, err
	}
	if src.IsNull() {
		return true, nil
	}
	dst, err := lastUpdate(ctx, f.destination, e)
	if err != nil {
		return false, err
	}
	if dst.IsNull() {
		return true, nil
	}
	return src.Compare(dst) > 0, nil
}

// lastUpdate treats a missing row as an unknown timestamp.
func lastUpdate(ctx context.Context, t core.ValueTable, e model.VariableEntity) (model.Value, error) {
	ts, err := t.ValueSetTimestamps(ctx, e)
	if err != nil {
		if errors.IsNotFound(err) {
			return model.DateTimeType.Null(), nil
		}
		return model.Value{}, err
	}
	if ts == nil {
		return model.DateTimeType.Null(), nil
	}
	return ts.LastUpdate(ctx)
}

// NewIncrementalTable returns a view of source holding only the rows newer
// than those already in the named table of destination. When the
// destination table does not exist, source is returned unchanged.
func NewIncrementalTable(ctx context.Context, source core.ValueTable, destination core.Datasource, tableName string) (core.ValueTable, error) {
	dst, err := destination.ValueTable(tableName)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNoSuchValueTable) {
			return source, nil
		}
		return nil, err
	}
	return NewTransformingValueTable(source, NewIncrementalFunction(source, dst)), nil
}
