package wrapper

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
)

// BijectiveFunction is a partial, invertible entity remapping. Apply maps
// an entity of the wrapped table outward and reports false when the entity
// is hidden; Unapply maps an outer entity back to the wrapped table.
type BijectiveFunction interface {
	Apply(ctx context.Context, inner model.VariableEntity) (model.VariableEntity, bool, error)
	Unapply(ctx context.Context, outer model.VariableEntity) (model.VariableEntity, error)
}

// BijectiveFuncs adapts a pair of functions to BijectiveFunction. A nil
// UnapplyFunc is the identity.
type BijectiveFuncs struct {
	ApplyFunc   func(ctx context.Context, inner model.VariableEntity) (model.VariableEntity, bool, error)
	UnapplyFunc func(ctx context.Context, outer model.VariableEntity) (model.VariableEntity, error)
}

func (f BijectiveFuncs) Apply(ctx context.Context, inner model.VariableEntity) (model.VariableEntity, bool, error) {
	return f.ApplyFunc(ctx, inner)
}

func (f BijectiveFuncs) Unapply(ctx context.Context, outer model.VariableEntity) (model.VariableEntity, error) {
	if f.UnapplyFunc == nil {
		return outer, nil
	}
	return f.UnapplyFunc(ctx, outer)
}

// TransformingValueTable is a view whose entities are those of the wrapped
// table remapped through a BijectiveFunction. Variables and values are read
// from the wrapped table unchanged.
type TransformingValueTable struct {
	*ValueTableWrapper
	fn BijectiveFunction
}

// NewTransformingValueTable creates a view of t through fn.
func NewTransformingValueTable(t core.ValueTable, fn BijectiveFunction) *TransformingValueTable {
	return &TransformingValueTable{ValueTableWrapper: NewValueTableWrapper(t), fn: fn}
}

// Function returns the entity remapping of the view.
func (t *TransformingValueTable) Function() BijectiveFunction { return t.fn }

func (t *TransformingValueTable) IsView() bool { return true }

// VariableEntities applies the function to every wrapped entity and drops
// the absent ones.
func (t *TransformingValueTable) VariableEntities(ctx context.Context) ([]model.VariableEntity, error) {
	inner, err := t.ValueTable.VariableEntities(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.VariableEntity, 0, len(inner))
	for _, e := range inner {
		outer, ok, err := t.fn.Apply(ctx, e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, outer)
		}
	}
	return model.SortedEntities(out), nil
}

func (t *TransformingValueTable) VariableEntityCount(ctx context.Context) (int, error) {
	entities, err := t.VariableEntities(ctx)
	if err != nil {
		return 0, err
	}
	return len(entities), nil
}

// visible resolves an outer entity to the wrapped entity. It reports false
// when the wrapped table has no row for it or the function hides it.
func (t *TransformingValueTable) visible(ctx context.Context, outer model.VariableEntity) (model.VariableEntity, bool, error) {
	inner, err := t.fn.Unapply(ctx, outer)
	if err != nil {
		return model.VariableEntity{}, false, err
	}
	has, err := t.ValueTable.HasValueSet(ctx, inner)
	if err != nil || !has {
		return inner, false, err
	}
	_, ok, err := t.fn.Apply(ctx, inner)
	if err != nil {
		return inner, false, err
	}
	return inner, ok, nil
}

func (t *TransformingValueTable) HasValueSet(ctx context.Context, entity model.VariableEntity) (bool, error) {
	_, ok, err := t.visible(ctx, entity)
	return ok, err
}

// ValueSet fails with a no-such-value-set error when the entity is not
// visible through the view.
func (t *TransformingValueTable) ValueSet(ctx context.Context, entity model.VariableEntity) (core.ValueSet, error) {
	inner, ok, err := t.visible(ctx, entity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NoSuchValueSet(t.Name(), entity.String())
	}
	vs, err := t.ValueTable.ValueSet(ctx, inner)
	if err != nil {
		return nil, err
	}
	return &viewValueSet{table: t, entity: entity, inner: vs}, nil
}

func (t *TransformingValueTable) ValueSets(ctx context.Context, entities []model.VariableEntity) ([]core.ValueSet, error) {
	return core.ValueSetsOf(ctx, t, entities)
}

func (t *TransformingValueTable) Value(ctx context.Context, variable model.Variable, vs core.ValueSet) (model.Value, error) {
	inner, err := t.innerValueSet(ctx, vs)
	if err != nil {
		return model.Value{}, err
	}
	return t.ValueTable.Value(ctx, variable, inner)
}

func (t *TransformingValueTable) innerValueSet(ctx context.Context, vs core.ValueSet) (core.ValueSet, error) {
	if v, ok := vs.(*viewValueSet); ok && v.table == core.ValueTable(t) {
		return v.inner, nil
	}
	resolved, err := t.ValueSet(ctx, vs.Entity())
	if err != nil {
		return nil, err
	}
	return resolved.(*viewValueSet).inner, nil
}

func (t *TransformingValueTable) VariableValueSource(name string) (core.VariableValueSource, error) {
	inner, err := t.ValueTable.VariableValueSource(name)
	if err != nil {
		return nil, err
	}
	return &viewValueSource{inner: inner, resolve: t.innerValueSet, unapply: t.fn.Unapply}, nil
}

func (t *TransformingValueTable) Timestamps(ctx context.Context) (core.Timestamps, error) {
	return core.TableTimestamps(ctx, t)
}

func (t *TransformingValueTable) ValueSetTimestamps(ctx context.Context, entity model.VariableEntity) (core.Timestamps, error) {
	inner, ok, err := t.visible(ctx, entity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NoSuchValueSet(t.Name(), entity.String())
	}
	return t.ValueTable.ValueSetTimestamps(ctx, inner)
}
