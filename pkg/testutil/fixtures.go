package testutil

import (
	"context"
	"strconv"
	"testing"

	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/model"
	"github.com/stretchr/testify/require"
)

// ParticipantType is the entity type used by fixtures.
const ParticipantType = "Participant"

// Entity returns the fixture entity with identifier id.
func Entity(id int) model.VariableEntity {
	return model.NewVariableEntity(ParticipantType, strconv.Itoa(id))
}

// FixtureTable adds a table of rows entities by vars integer variables to ds.
// Entity i holds value i*10+j in variable j; the entities listed in nullRows
// exist but hold only nulls.
func FixtureTable(ds *memory.Datasource, name string, rows, vars int, nullRows ...int) *memory.Table {
	t := ds.NewTable(name, ParticipantType)
	variables := make([]model.Variable, vars)
	for j := 0; j < vars; j++ {
		variables[j] = model.NewVariable("V"+strconv.Itoa(j), model.IntegerType, ParticipantType)
		t.AddVariable(variables[j])
	}
	isNull := make(map[int]bool, len(nullRows))
	for _, n := range nullRows {
		isNull[n] = true
	}
	for i := 0; i < rows; i++ {
		e := Entity(i)
		for j, v := range variables {
			if isNull[i] {
				t.Put(e, v.Name(), model.IntegerType.Null())
				continue
			}
			t.Put(e, v.Name(), model.IntegerType.MustValueOf(i*10+j))
		}
	}
	return t
}

// Cell is one (entity, variable) pair of a table.
type Cell struct {
	Entity   model.VariableEntity
	Variable string
}

// Cells reads every non-null value of a table.
func Cells(t *testing.T, ctx context.Context, table core.ValueTable) map[Cell]model.Value {
	t.Helper()
	entities, err := table.VariableEntities(ctx)
	require.NoError(t, err)
	out := make(map[Cell]model.Value)
	for _, e := range entities {
		vs, err := table.ValueSet(ctx, e)
		require.NoError(t, err)
		for _, v := range table.Variables() {
			val, err := table.Value(ctx, v, vs)
			require.NoError(t, err)
			if !val.IsNull() {
				out[Cell{Entity: e, Variable: v.Name()}] = val
			}
		}
	}
	return out
}
