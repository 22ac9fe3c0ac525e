package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
	"github.com/ajitpratap0/quasar/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialiseAggregatesParsingErrors(t *testing.T) {
	ctx := testutil.TestContext(t)
	failure := errors.NewParsingError("TableDefinitionError", "table %s has a malformed header", "t2")

	var ds *memory.Datasource
	loader := func(name string) core.TableLoader {
		return core.TableLoaderFunc(func(context.Context) (core.ValueTable, error) {
			return memory.NewTable(ds, name, testutil.ParticipantType), nil
		})
	}
	ds = memory.New("src", memory.WithLoaders(
		loader("t1"),
		core.TableLoaderFunc(func(context.Context) (core.ValueTable, error) { return nil, failure }),
		loader("t3"),
	), memory.WithLogger(testutil.TestLogger(t)))

	err := ds.Initialise(ctx)
	require.Error(t, err)

	var parent *errors.ParsingError
	require.ErrorAs(t, err, &parent)
	require.Len(t, parent.Children(), 1)
	assert.Same(t, failure, parent.Children()[0])
	assert.Equal(t, []string{"t1", "t3"}, ds.ValueTableNames())
}

func TestInitialiseFailsFastOnOtherErrors(t *testing.T) {
	ctx := testutil.TestContext(t)
	boom := errors.New(errors.ErrorTypeInternal, "disk gone")
	called := false
	ds := memory.New("src", memory.WithLoaders(
		core.TableLoaderFunc(func(context.Context) (core.ValueTable, error) { return nil, boom }),
		core.TableLoaderFunc(func(context.Context) (core.ValueTable, error) { called = true; return nil, nil }),
	))
	err := ds.Initialise(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRuntime))
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestTableReads(t *testing.T) {
	ctx := testutil.TestContext(t)
	ds := memory.New("src")
	table := testutil.FixtureTable(ds, "people", 3, 2, 1)

	assert.Equal(t, "src.people", table.TableReference())
	entities, err := table.VariableEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.VariableEntity{testutil.Entity(0), testutil.Entity(1), testutil.Entity(2)}, entities)

	vs, err := table.ValueSet(ctx, testutil.Entity(2))
	require.NoError(t, err)
	v1, err := table.Variable("V1")
	require.NoError(t, err)
	val, err := table.Value(ctx, v1, vs)
	require.NoError(t, err)
	assert.Equal(t, int64(21), val.Raw())

	src, err := table.VariableValueSource("V0")
	require.NoError(t, err)
	vector, ok := src.VectorSource()
	require.True(t, ok)
	values, err := vector.Values(ctx, entities)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.True(t, values[1].IsNull())
	assert.Equal(t, int64(20), values[2].Raw())

	_, err = table.ValueSet(ctx, testutil.Entity(9))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoSuchValueSet))
	_, err = table.Variable("missing")
	assert.True(t, errors.IsNotFound(err))
	_, err = ds.ValueTable("missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoSuchValueTable))
}

func TestWriterMaterializesOnFirstValue(t *testing.T) {
	ctx := testutil.TestContext(t)
	ds := memory.New("dst")
	age := model.NewVariable("AGE", model.IntegerType, testutil.ParticipantType)

	w, err := ds.CreateWriter(ctx, "people", testutil.ParticipantType)
	require.NoError(t, err)
	vw, err := w.WriteVariables(ctx)
	require.NoError(t, err)
	require.NoError(t, vw.WriteVariable(ctx, age))
	require.NoError(t, vw.Close(ctx))

	vsw, err := w.WriteValueSet(ctx, testutil.Entity(1))
	require.NoError(t, err)
	require.NoError(t, vsw.Close(ctx))

	vsw, err = w.WriteValueSet(ctx, testutil.Entity(2))
	require.NoError(t, err)
	require.NoError(t, vsw.WriteValue(ctx, age, model.IntegerType.MustValueOf(40)))
	require.NoError(t, vsw.Close(ctx))
	require.NoError(t, w.Close(ctx))

	table, err := ds.ValueTable("people")
	require.NoError(t, err)
	n, err := table.VariableEntityCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = w.WriteValueSet(ctx, testutil.Entity(3))
	assert.Error(t, err, "closed writer")

	_, err = ds.CreateWriter(ctx, "people", "Biosample")
	assert.Error(t, err)
}

func TestTableTimestampsAreUnion(t *testing.T) {
	ctx := testutil.TestContext(t)
	ds := memory.New("src")
	table := testutil.FixtureTable(ds, "people", 2, 1)
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	table.SetTimestamps(testutil.Entity(0), early, early)
	table.SetTimestamps(testutil.Entity(1), late, late)

	ts, err := table.Timestamps(ctx)
	require.NoError(t, err)
	created, err := ts.Created(ctx)
	require.NoError(t, err)
	updated, err := ts.LastUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, early, created.Raw())
	assert.Equal(t, late, updated.Raw())
}

func TestDropTable(t *testing.T) {
	ctx := testutil.TestContext(t)
	ds := memory.New("src")
	ds.NewTable("people", testutil.ParticipantType)
	assert.True(t, ds.CanDropTable("people"))
	require.NoError(t, ds.DropTable(ctx, "people"))
	assert.False(t, ds.HasValueTable("people"))
	assert.Error(t, ds.DropTable(ctx, "people"))
}
