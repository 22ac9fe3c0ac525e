package wrapper

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// SubsetValueTable is a view restricted to a fixed set of entities.
type SubsetValueTable struct {
	*ValueTableWrapper
	entities []model.VariableEntity
	members  map[model.VariableEntity]struct{}
}

// NewSubsetValueTable restricts t to entities.
func NewSubsetValueTable(t core.ValueTable, entities []model.VariableEntity) *SubsetValueTable {
	sorted := model.SortedEntities(entities)
	return &SubsetValueTable{
		ValueTableWrapper: NewValueTableWrapper(t),
		entities:          sorted,
		members:           model.EntitySet(sorted),
	}
}

func (t *SubsetValueTable) IsView() bool { return true }

func (t *SubsetValueTable) VariableEntities(context.Context) ([]model.VariableEntity, error) {
	return append([]model.VariableEntity(nil), t.entities...), nil
}

func (t *SubsetValueTable) VariableEntityCount(context.Context) (int, error) {
	return len(t.entities), nil
}

func (t *SubsetValueTable) HasValueSet(ctx context.Context, entity model.VariableEntity) (bool, error) {
	if _, ok := t.members[entity]; !ok {
		return false, nil
	}
	return t.ValueTable.HasValueSet(ctx, entity)
}

func (t *SubsetValueTable) ValueSet(ctx context.Context, entity model.VariableEntity) (core.ValueSet, error) {
	if _, ok := t.members[entity]; !ok {
		return nil, errors.NoSuchValueSet(t.Name(), entity.String())
	}
	vs, err := t.ValueTable.ValueSet(ctx, entity)
	if err != nil {
		return nil, err
	}
	return &viewValueSet{table: t, entity: entity, inner: vs}, nil
}

func (t *SubsetValueTable) ValueSets(ctx context.Context, entities []model.VariableEntity) ([]core.ValueSet, error) {
	return core.ValueSetsOf(ctx, t, entities)
}

func (t *SubsetValueTable) Value(ctx context.Context, variable model.Variable, vs core.ValueSet) (model.Value, error) {
	inner, err := t.innerValueSet(ctx, vs)
	if err != nil {
		return model.Value{}, err
	}
	return t.ValueTable.Value(ctx, variable, inner)
}

func (t *SubsetValueTable) innerValueSet(ctx context.Context, vs core.ValueSet) (core.ValueSet, error) {
	if v, ok := vs.(*viewValueSet); ok && v.table == core.ValueTable(t) {
		return v.inner, nil
	}
	if _, ok := t.members[vs.Entity()]; !ok {
		return nil, errors.NoSuchValueSet(t.Name(), vs.Entity().String())
	}
	return t.ValueTable.ValueSet(ctx, vs.Entity())
}

func (t *SubsetValueTable) VariableValueSource(name string) (core.VariableValueSource, error) {
	inner, err := t.ValueTable.VariableValueSource(name)
	if err != nil {
		return nil, err
	}
	return &viewValueSource{inner: inner, resolve: t.innerValueSet}, nil
}

func (t *SubsetValueTable) Timestamps(ctx context.Context) (core.Timestamps, error) {
	return core.TableTimestamps(ctx, t)
}

func (t *SubsetValueTable) ValueSetTimestamps(ctx context.Context, entity model.VariableEntity) (core.Timestamps, error) {
	if _, ok := t.members[entity]; !ok {
		return nil, errors.NoSuchValueSet(t.Name(), entity.String())
	}
	return t.ValueTable.ValueSetTimestamps(ctx, entity)
}

// Split carves t into contiguous chunks of its sorted entities, each holding
// at most maxDataPoints values (rows times variables). A chunk always holds
// at least one row, and the last chunk absorbs the remainder. A table with
// no rows yields a single empty chunk.
func Split(ctx context.Context, t core.ValueTable, maxDataPoints int) ([]*SubsetValueTable, error) {
	if maxDataPoints <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "max data points must be positive, got %d", maxDataPoints)
	}
	entities, err := t.VariableEntities(ctx)
	if err != nil {
		return nil, err
	}
	entities = model.SortedEntities(entities)

	varCount := len(t.Variables())
	if varCount == 0 {
		varCount = 1
	}
	rowsPerChunk := maxDataPoints / varCount
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}
	chunks := len(entities) / rowsPerChunk
	if chunks < 1 {
		chunks = 1
	}

	out := make([]*SubsetValueTable, 0, chunks)
	for i := 0; i < chunks; i++ {
		start := i * rowsPerChunk
		end := start + rowsPerChunk
		if i == chunks-1 || end > len(entities) {
			end = len(entities)
		}
		if start > end {
			start = end
		}
		out = append(out, NewSubsetValueTable(t, entities[start:end]))
	}
	return out, nil
}
