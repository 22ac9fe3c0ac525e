package copier_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/copier"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/model"
	"github.com/ajitpratap0/quasar/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableCopier interface {
	CopyTable(ctx context.Context, table core.ValueTable, destination core.Datasource, name string) error
}

func copiers(t *testing.T, opts ...copier.Option) map[string]tableCopier {
	opts = append(opts, copier.WithLogger(testutil.TestLogger(t)))
	return map[string]tableCopier{
		"sequential": copier.New(opts...),
		"multithreaded": copier.NewMultithreadedCopier(copier.New(opts...),
			copier.WithReaders(3), copier.WithQueueCapacity(4), copier.WithPollTimeout(5*time.Millisecond)),
	}
}

func TestCopyTableCompleteness(t *testing.T) {
	for _, copyNulls := range []bool{true, false} {
		for name, c := range copiers(t, copier.WithCopyNullValues(copyNulls)) {
			t.Run(fmt.Sprintf("%s/nulls=%v", name, copyNulls), func(t *testing.T) {
				ctx := testutil.TestContext(t)
				src := memory.New("src")
				table := testutil.FixtureTable(src, "people", 40, 3, 7)
				dst := memory.New("dst")

				require.NoError(t, c.CopyTable(ctx, table, dst, "people"))

				copied, err := dst.ValueTable("people")
				require.NoError(t, err)
				assert.Equal(t, testutil.Cells(t, ctx, table), testutil.Cells(t, ctx, copied))
				assert.Equal(t, table.Variables(), copied.Variables())

				count, err := copied.VariableEntityCount(ctx)
				require.NoError(t, err)
				hasNullRow, err := copied.HasValueSet(ctx, testutil.Entity(7))
				require.NoError(t, err)
				if copyNulls {
					assert.Equal(t, 40, count)
					assert.True(t, hasNullRow)
				} else {
					assert.Equal(t, 39, count)
					assert.False(t, hasNullRow)
				}
			})
		}
	}
}

func TestCopyMetadataOnly(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := testutil.FixtureTable(src, "people", 5, 2)
	dst := memory.New("dst")

	c := copier.New(copier.WithCopyValues(false), copier.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, c.CopyTable(ctx, table, dst, "people"))

	copied, err := dst.ValueTable("people")
	require.NoError(t, err)
	assert.Len(t, copied.Variables(), 2)
	count, err := copied.VariableEntityCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCopyDatasource(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	testutil.FixtureTable(src, "a", 3, 1)
	testutil.FixtureTable(src, "b", 4, 2)
	dst := memory.New("dst")

	require.NoError(t, copier.New(copier.WithLogger(testutil.TestLogger(t))).CopyDatasource(ctx, src, dst))
	assert.ElementsMatch(t, []string{"a", "b"}, dst.ValueTableNames())

	dst2 := memory.New("dst2")
	require.NoError(t, copier.NewMultithreadedCopier(nil).CopyDatasource(ctx, src, dst2))
	assert.ElementsMatch(t, []string{"a", "b"}, dst2.ValueTableNames())
}

func TestCopyOntoItselfIsRefused(t *testing.T) {
	for name, c := range copiers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := testutil.TestContext(t)
			src := memory.New("src")
			table := testutil.FixtureTable(src, "people", 2, 1)

			err := c.CopyTable(ctx, table, src, "people")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeWrite))

			require.NoError(t, c.CopyTable(ctx, table, src, "people_copy"))
		})
	}
}

func TestRenameTransformer(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := testutil.FixtureTable(src, "people", 3, 2)
	dst := memory.New("dst")

	c := copier.New(copier.WithTransformer(copier.RenameTransformer("v1_", "_x")), copier.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, c.CopyTable(ctx, table, dst, "people"))

	copied, err := dst.ValueTable("people")
	require.NoError(t, err)
	assert.True(t, copied.HasVariable("v1_V0_x"))
	assert.True(t, copied.HasVariable("v1_V1_x"))
	assert.False(t, copied.HasVariable("V0"))

	v, err := copied.Variable("v1_V1_x")
	require.NoError(t, err)
	vs, err := copied.ValueSet(ctx, testutil.Entity(2))
	require.NoError(t, err)
	val, err := copied.Value(ctx, v, vs)
	require.NoError(t, err)
	assert.Equal(t, int64(21), val.Raw())
}

// countingDatasource records every table writer opened on it and can fail
// value set writes for one entity.
type countingDatasource struct {
	*memory.Datasource
	mu     sync.Mutex
	opened []string
	failOn *model.VariableEntity
}

func (d *countingDatasource) CreateWriter(ctx context.Context, name, entityType string) (core.ValueTableWriter, error) {
	w, err := d.Datasource.CreateWriter(ctx, name, entityType)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.opened = append(d.opened, name)
	d.mu.Unlock()
	return &failingWriter{ValueTableWriter: w, failOn: d.failOn}, nil
}

type failingWriter struct {
	core.ValueTableWriter
	failOn *model.VariableEntity
}

func (w *failingWriter) WriteValueSet(ctx context.Context, e model.VariableEntity) (core.ValueSetWriter, error) {
	if w.failOn != nil && *w.failOn == e {
		return nil, errors.New(errors.ErrorTypeInternal, "disk full")
	}
	return w.ValueTableWriter.WriteValueSet(ctx, e)
}

func TestMultiplexingWriterFanOut(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := testutil.FixtureTable(src, "people", 6, 4)
	dst := &countingDatasource{Datasource: memory.New("dst")}

	strategy := copier.MultiplexingFuncs{VariableFunc: func(v model.Variable) string {
		n, _ := strconv.Atoi(v.Name()[1:])
		if n%2 == 0 {
			return "even"
		}
		return "odd"
	}}
	var touched [][]string
	rec := &recordingListener{onValueSetDone: func(tables []string) { touched = append(touched, tables) }}
	c := copier.New(copier.WithMultiplexingStrategy(strategy), copier.WithListeners(rec), copier.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, c.CopyTable(ctx, table, dst, "people"))

	assert.Equal(t, []string{"even", "odd"}, dst.opened, "one writer per destination table")
	assert.False(t, dst.HasValueTable("people"))

	even, err := dst.ValueTable("even")
	require.NoError(t, err)
	odd, err := dst.ValueTable("odd")
	require.NoError(t, err)
	assert.Equal(t, []string{"V0", "V2"}, names(even.Variables()))
	assert.Equal(t, []string{"V1", "V3"}, names(odd.Variables()))

	cells := testutil.Cells(t, ctx, even)
	for c, v := range testutil.Cells(t, ctx, odd) {
		cells[c] = v
	}
	assert.Equal(t, testutil.Cells(t, ctx, table), cells)

	require.Len(t, touched, 6)
	for _, tables := range touched {
		assert.Equal(t, []string{"even", "odd"}, tables)
	}
}

func TestAttributeMultiplexer(t *testing.T) {
	m := copier.AttributeMultiplexer{Attribute: "domain", Default: "misc"}
	tagged := model.NewVariable("HEIGHT", model.DecimalType, testutil.ParticipantType, model.WithAttribute("domain", "anthropometry"))
	empty := model.NewVariable("X", model.TextType, testutil.ParticipantType, model.WithAttribute("domain", ""))
	plain := model.NewVariable("Y", model.TextType, testutil.ParticipantType)

	assert.Equal(t, "anthropometry", m.MultiplexVariable(tagged))
	assert.Equal(t, "anthropometry", m.MultiplexValueSet(testutil.Entity(1), tagged))
	assert.Equal(t, "misc", m.MultiplexVariable(empty))
	assert.Equal(t, "misc", m.MultiplexVariable(plain))
}

// failingTable fails reading values of one entity.
type failingTable struct {
	core.ValueTable
	failOn model.VariableEntity
}

func (t *failingTable) Value(ctx context.Context, v model.Variable, vs core.ValueSet) (model.Value, error) {
	if vs.Entity() == t.failOn {
		return model.Value{}, errors.New(errors.ErrorTypeData, "corrupt row")
	}
	return t.ValueTable.Value(ctx, v, vs)
}

func TestMultithreadedReaderErrorIsDeferred(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := &failingTable{ValueTable: testutil.FixtureTable(src, "people", 10, 2), failOn: testutil.Entity(5)}
	dst := memory.New("dst")

	c := copier.NewMultithreadedCopier(copier.New(copier.WithLogger(testutil.TestLogger(t))), copier.WithReaders(1))
	err := c.CopyTable(ctx, table, dst, "people")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRuntime))

	copied, err := dst.ValueTable("people")
	require.NoError(t, err)
	entities, err := copied.VariableEntities(ctx)
	require.NoError(t, err)
	want := []model.VariableEntity{testutil.Entity(0), testutil.Entity(1), testutil.Entity(2), testutil.Entity(3), testutil.Entity(4)}
	assert.Equal(t, want, entities, "value sets read before the failure are written")
}

func TestMultithreadedWriterErrorAborts(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := testutil.FixtureTable(src, "people", 200, 2)
	fail := testutil.Entity(3)
	dst := &countingDatasource{Datasource: memory.New("dst"), failOn: &fail}

	c := copier.NewMultithreadedCopier(copier.New(copier.WithLogger(testutil.TestLogger(t))),
		copier.WithReaders(4), copier.WithQueueCapacity(2))
	err := c.CopyTable(ctx, table, dst, "people")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeWrite))

	copied, err := dst.ValueTable("people")
	require.NoError(t, err)
	has, err := copied.HasValueSet(ctx, fail)
	require.NoError(t, err)
	assert.False(t, has)
}

type recordingListener struct {
	copier.NopListener
	mu             sync.Mutex
	events         []string
	onValueSetDone func(tables []string)
}

func (l *recordingListener) record(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) OnTableStart(_ context.Context, t core.ValueTable, dst string) {
	l.record("table:" + t.Name() + "->" + dst)
}

func (l *recordingListener) OnTableDone(_ context.Context, t core.ValueTable, _ string) {
	l.record("table-done:" + t.Name())
}

func (l *recordingListener) OnVariableStart(_ context.Context, v model.Variable) {
	l.record("variable:" + v.Name())
}

func (l *recordingListener) OnVariableDone(_ context.Context, v model.Variable) {
	l.record("variable-done:" + v.Name())
}

func (l *recordingListener) OnValueSetStart(_ context.Context, vs core.ValueSet) {
	l.record("value-set:" + vs.Entity().Identifier)
}

func (l *recordingListener) OnValueSetDone(_ context.Context, vs core.ValueSet, tables []string) {
	l.record("value-set-done:" + vs.Entity().Identifier)
	if l.onValueSetDone != nil {
		l.onValueSetDone(tables)
	}
}

func TestListenerEventOrder(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := testutil.FixtureTable(src, "people", 2, 1)
	rec := &recordingListener{}

	c := copier.New(copier.WithListeners(rec), copier.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, c.CopyTable(ctx, table, memory.New("dst"), "copy"))

	assert.Equal(t, []string{
		"table:people->copy",
		"variable:V0",
		"variable-done:V0",
		"value-set:0",
		"value-set-done:0",
		"value-set:1",
		"value-set-done:1",
		"table-done:people",
	}, rec.events)
}

func TestProgressListenerReportsEachPercentOnce(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := testutil.FixtureTable(src, "people", 200, 1)

	var percents []int
	sink := copier.ProgressSinkFunc(func(table string, copied, total, percent int) {
		assert.Equal(t, "people", table)
		assert.Equal(t, 200, total)
		percents = append(percents, percent)
	})
	c := copier.New(copier.WithListeners(copier.NewProgressListener(sink, testutil.TestLogger(t))), copier.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, c.CopyTable(ctx, table, memory.New("dst"), "people"))

	require.Len(t, percents, 101)
	for i, p := range percents {
		assert.Equal(t, i, p)
	}
}

func TestProgressSinkPanicIsSwallowed(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := testutil.FixtureTable(src, "people", 3, 1)

	sink := copier.ProgressSinkFunc(func(string, int, int, int) { panic("sink down") })
	c := copier.New(copier.WithListeners(copier.NewProgressListener(sink, testutil.TestLogger(t))), copier.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, c.CopyTable(ctx, table, memory.New("dst"), "people"))
}

func TestThroughputListenerCounts(t *testing.T) {
	ctx := testutil.TestContext(t)
	src := memory.New("src")
	table := testutil.FixtureTable(src, "people", 12, 1)

	tl := copier.NewThroughputListener(testutil.TestLogger(t))
	var mid int64
	probe := &recordingListener{onValueSetDone: func([]string) { mid = tl.Total() }}
	c := copier.New(copier.WithListeners(tl, probe), copier.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, c.CopyTable(ctx, table, memory.New("dst"), "people"))

	assert.Equal(t, int64(12), mid)
	assert.Zero(t, tl.Total(), "tracker is released when the table is done")
}

func names(vars []model.Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name()
	}
	return out
}
