package wrapper

import (
	"context"
	"sync"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// BatchFunction admits at most Limit distinct entities. Once admitted an
// entity is always admitted; a negative limit admits everything. The
// admission set only grows.
type BatchFunction struct {
	limit int

	mu       sync.Mutex
	admitted map[model.VariableEntity]struct{}
}

// NewBatchFunction creates a row-limit function.
func NewBatchFunction(limit int) *BatchFunction {
	return &BatchFunction{limit: limit, admitted: make(map[model.VariableEntity]struct{})}
}

// Limit returns the configured capacity.
func (f *BatchFunction) Limit() int { return f.limit }

// Admitted returns the number of admitted entities.
func (f *BatchFunction) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.admitted)
}

func (f *BatchFunction) Apply(_ context.Context, e model.VariableEntity) (model.VariableEntity, bool, error) {
	if f.limit < 0 {
		return e, true, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.admitted[e]; ok {
		return e, true, nil
	}
	if len(f.admitted) < f.limit {
		f.admitted[e] = struct{}{}
		return e, true, nil
	}
	return model.VariableEntity{}, false, nil
}

func (f *BatchFunction) Unapply(_ context.Context, e model.VariableEntity) (model.VariableEntity, error) {
	return e, nil
}

// NewBatchTable limits t to its first limit entities in entity order.
func NewBatchTable(t core.ValueTable, limit int) *TransformingValueTable {
	return NewTransformingValueTable(t, NewBatchFunction(limit))
}

// NewBatchDatasource limits every table of ds.
func NewBatchDatasource(ds core.Datasource, limit int) *DatasourceWrapper {
	return NewDatasourceWrapper(ds, func(t core.ValueTable) core.ValueTable {
		return NewBatchTable(t, limit)
	})
}
