package core

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/model"
)

// BasicValueSet is a plain (table, entity) handle.
type BasicValueSet struct {
	table      ValueTable
	entity     model.VariableEntity
	timestamps Timestamps
}

// NewValueSet creates a handle with unknown timestamps.
func NewValueSet(table ValueTable, entity model.VariableEntity) *BasicValueSet {
	return &BasicValueSet{table: table, entity: entity, timestamps: NullTimestamps}
}

// NewValueSetWithTimestamps creates a handle with known timestamps.
func NewValueSetWithTimestamps(table ValueTable, entity model.VariableEntity, ts Timestamps) *BasicValueSet {
	if ts == nil {
		ts = NullTimestamps
	}
	return &BasicValueSet{table: table, entity: entity, timestamps: ts}
}

func (v *BasicValueSet) ValueTable() ValueTable       { return v.table }
func (v *BasicValueSet) Entity() model.VariableEntity { return v.entity }
func (v *BasicValueSet) Timestamps() Timestamps       { return v.timestamps }

// ValueSetsOf resolves handles one entity at a time through table.ValueSet.
// Backends without a bulk lookup use it to implement ValueTable.ValueSets.
func ValueSetsOf(ctx context.Context, table ValueTable, entities []model.VariableEntity) ([]ValueSet, error) {
	out := make([]ValueSet, 0, len(entities))
	for _, e := range entities {
		vs, err := table.ValueSet(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, vs)
	}
	return out, nil
}

// VectorValues reads a column for many entities through row access. It is
// the fallback VectorSource behaviour for sources without bulk reads.
func VectorValues(ctx context.Context, table ValueTable, source VariableValueSource, entities []model.VariableEntity) ([]model.Value, error) {
	out := make([]model.Value, len(entities))
	for i, e := range entities {
		vs, err := table.ValueSet(ctx, e)
		if err != nil {
			return nil, err
		}
		v, err := source.Value(ctx, vs)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
