package core

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/model"
)

// staticTimestamps is an immutable (created, last update) pair.
type staticTimestamps struct {
	created    model.Value
	lastUpdate model.Value
}

func (t staticTimestamps) Created(context.Context) (model.Value, error)    { return t.created, nil }
func (t staticTimestamps) LastUpdate(context.Context) (model.Value, error) { return t.lastUpdate, nil }

// NullTimestamps is the shared "unknown" timestamps pair.
var NullTimestamps Timestamps = staticTimestamps{
	created:    model.DateTimeType.Null(),
	lastUpdate: model.DateTimeType.Null(),
}

// NewTimestamps returns a fixed pair. Null or non-datetime values are
// normalized to a null datetime.
func NewTimestamps(created, lastUpdate model.Value) Timestamps {
	return staticTimestamps{created: asDateTime(created), lastUpdate: asDateTime(lastUpdate)}
}

func asDateTime(v model.Value) model.Value {
	if v.IsNull() || v.IsSequence() {
		return model.DateTimeType.Null()
	}
	if v.Type() == model.DateTimeType {
		return v
	}
	converted, err := model.DateTimeType.ValueOf(v.Raw())
	if err != nil {
		return model.DateTimeType.Null()
	}
	return converted
}

// UnionTimestamps returns the earliest known created and the latest known
// last update over all pairs. Unknown values are ignored; if every value is
// unknown the result is NullTimestamps.
func UnionTimestamps(ctx context.Context, all []Timestamps) (Timestamps, error) {
	created := model.DateTimeType.Null()
	lastUpdate := model.DateTimeType.Null()
	for _, ts := range all {
		if ts == nil {
			continue
		}
		c, err := ts.Created(ctx)
		if err != nil {
			return nil, err
		}
		if !c.IsNull() && (created.IsNull() || c.Compare(created) < 0) {
			created = c
		}
		u, err := ts.LastUpdate(ctx)
		if err != nil {
			return nil, err
		}
		if !u.IsNull() && (lastUpdate.IsNull() || u.Compare(lastUpdate) > 0) {
			lastUpdate = u
		}
	}
	if created.IsNull() && lastUpdate.IsNull() {
		return NullTimestamps, nil
	}
	return NewTimestamps(created, lastUpdate), nil
}

// TableTimestamps computes a table's timestamps as the union of the
// timestamps of all its value sets.
func TableTimestamps(ctx context.Context, table ValueTable) (Timestamps, error) {
	entities, err := table.VariableEntities(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]Timestamps, 0, len(entities))
	for _, e := range entities {
		ts, err := table.ValueSetTimestamps(ctx, e)
		if err != nil {
			return nil, err
		}
		all = append(all, ts)
	}
	return UnionTimestamps(ctx, all)
}
