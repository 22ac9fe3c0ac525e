package cache_test

import (
	"context"
	"sync"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ajitpratap0/quasar/pkg/backend/memory"
	"github.com/ajitpratap0/quasar/pkg/cache"
	"github.com/ajitpratap0/quasar/pkg/core"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/metrics"
	"github.com/ajitpratap0/quasar/pkg/model"
	"github.com/ajitpratap0/quasar/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsDeterministicAndEscaped(t *testing.T) {
	assert.Equal(t, cache.Key("ds", "people", "Value"), cache.Key("ds", "people", "Value"))
	assert.Equal(t, `a\;b;c`, cache.Key("a;b", "c"))
	assert.Equal(t, `a\\;b`, cache.Key(`a\`, "b"))

	distinct := [][]string{
		{"a;b", "c"},
		{"a", "b;c"},
		{"a", "b", "c"},
		{`a\`, "b", "c"},
		{`a\;b`, "c"},
		{"abc"},
		{"", "abc"},
		{"abc", ""},
	}
	seen := map[string][]string{}
	for _, parts := range distinct {
		k := cache.Key(parts...)
		prev, dup := seen[k]
		assert.False(t, dup, "%v and %v share key %q", prev, parts, k)
		seen[k] = parts
	}
}

func TestEntitiesKeyDependsOnOrderAndContent(t *testing.T) {
	a := model.NewVariableEntity("P", "1")
	b := model.NewVariableEntity("P", "2")
	colon := model.NewVariableEntity("P:1", "")
	assert.NotEqual(t, cache.EntitiesKey([]model.VariableEntity{a, b}), cache.EntitiesKey([]model.VariableEntity{b, a}))
	assert.NotEqual(t, cache.EntityKey(a), cache.EntityKey(colon))
	assert.NotEqual(t, cache.EntitiesKey(nil), cache.EntitiesKey([]model.VariableEntity{{}}))
}

// countingTable counts delegate reads.
type countingTable struct {
	core.ValueTable
	mu    sync.Mutex
	calls map[string]int
	fail  error
}

func newCountingTable(t core.ValueTable) *countingTable {
	return &countingTable{ValueTable: t, calls: map[string]int{}}
}

func (c *countingTable) count(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
}

func (c *countingTable) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingTable) Variables() []model.Variable {
	c.count("Variables")
	return c.ValueTable.Variables()
}

func (c *countingTable) VariableEntities(ctx context.Context) ([]model.VariableEntity, error) {
	c.count("VariableEntities")
	if c.fail != nil {
		return nil, c.fail
	}
	return c.ValueTable.VariableEntities(ctx)
}

func (c *countingTable) Value(ctx context.Context, v model.Variable, vs core.ValueSet) (model.Value, error) {
	c.count("Value")
	return c.ValueTable.Value(ctx, v, vs)
}

func (c *countingTable) VariableValueSource(name string) (core.VariableValueSource, error) {
	inner, err := c.ValueTable.VariableValueSource(name)
	if err != nil {
		return nil, err
	}
	return &countingSource{VariableValueSource: inner, owner: c}, nil
}

type countingSource struct {
	core.VariableValueSource
	owner *countingTable
}

func (s *countingSource) Value(ctx context.Context, vs core.ValueSet) (model.Value, error) {
	s.owner.count("source.Value")
	return s.VariableValueSource.Value(ctx, vs)
}

func (s *countingSource) VectorSource() (core.VectorSource, bool) {
	inner, ok := s.VariableValueSource.VectorSource()
	if !ok {
		return nil, false
	}
	return &countingVector{VectorSource: inner, owner: s.owner}, true
}

type countingVector struct {
	core.VectorSource
	owner *countingTable
}

func (v *countingVector) Values(ctx context.Context, entities []model.VariableEntity) ([]model.Value, error) {
	v.owner.count("Values")
	return v.VectorSource.Values(ctx, entities)
}

func TestReadsInvokeDelegateOncePerKey(t *testing.T) {
	ctx := testutil.TestContext(t)
	table := testutil.FixtureTable(memory.New("src"), "people", 3, 2)
	counting := newCountingTable(table)
	cached := cache.NewValueTable(counting, cache.NewMapCache())

	for i := 0; i < 3; i++ {
		vars := cached.Variables()
		require.Len(t, vars, 2)
		entities, err := cached.VariableEntities(ctx)
		require.NoError(t, err)
		require.Len(t, entities, 3)
		for _, e := range entities {
			vs, err := cached.ValueSet(ctx, e)
			require.NoError(t, err)
			for _, v := range vars {
				_, err := cached.Value(ctx, v, vs)
				require.NoError(t, err)
			}
		}
	}
	assert.Equal(t, 1, counting.get("Variables"))
	assert.Equal(t, 1, counting.get("VariableEntities"))
	assert.Equal(t, 6, counting.get("Value"), "one read per (variable, entity)")

	src, err := cached.VariableValueSource("V1")
	require.NoError(t, err)
	vector, ok := src.VectorSource()
	require.True(t, ok)
	entities, err := cached.VariableEntities(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		values, err := vector.Values(ctx, entities)
		require.NoError(t, err)
		assert.Equal(t, int64(21), values[2].Raw())
		vs, err := cached.ValueSet(ctx, entities[1])
		require.NoError(t, err)
		v, err := src.Value(ctx, vs)
		require.NoError(t, err)
		assert.Equal(t, int64(11), v.Raw())
	}
	assert.Equal(t, 1, counting.get("Values"))
	assert.Equal(t, 1, counting.get("source.Value"))

	_, err = vector.Values(ctx, entities[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, counting.get("Values"), "a different entity list is a different key")
}

func TestFailuresAreNotCached(t *testing.T) {
	ctx := testutil.TestContext(t)
	table := testutil.FixtureTable(memory.New("src"), "people", 2, 1)
	counting := newCountingTable(table)
	counting.fail = errors.New(errors.ErrorTypeInternal, "connection reset")
	cached := cache.NewValueTable(counting, cache.NewMapCache())

	_, err := cached.VariableEntities(ctx)
	require.Error(t, err)
	_, err = cached.VariableEntities(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, counting.get("VariableEntities"))

	counting.fail = nil
	entities, err := cached.VariableEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 2)
}

func TestDatasourceReturnsFreshCachingTables(t *testing.T) {
	ctx := testutil.TestContext(t)
	ds := memory.New("src")
	testutil.FixtureTable(ds, "people", 2, 1)
	c := cache.NewMapCache()
	cached := cache.NewDatasource(ds, c)

	first, err := cached.ValueTable("people")
	require.NoError(t, err)
	second, err := cached.ValueTable("people")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, core.Datasource(cached), first.Datasource())
	assert.Same(t, core.Innermost(first), core.Innermost(second))

	assert.True(t, cached.HasValueTable("people"))
	assert.False(t, cached.HasValueTable("other"))
	_, err = cached.ValueTable("other")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoSuchValueTable))

	// Both handles share the injected cache.
	_, err = first.VariableEntities(ctx)
	require.NoError(t, err)
	before := c.Len()
	_, err = second.VariableEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, c.Len())
	assert.Equal(t, "src.people", second.TableReference())
}

func TestTimestampsReadThrough(t *testing.T) {
	ctx := testutil.TestContext(t)
	table := testutil.FixtureTable(memory.New("src"), "people", 2, 1)
	cached := cache.NewValueTable(table, cache.NewMapCache())

	ts, err := cached.ValueSetTimestamps(ctx, testutil.Entity(0))
	require.NoError(t, err)
	first, err := ts.LastUpdate(ctx)
	require.NoError(t, err)
	assert.False(t, first.IsNull())

	vs, err := cached.ValueSet(ctx, testutil.Entity(0))
	require.NoError(t, err)
	again, err := vs.Timestamps().LastUpdate(ctx)
	require.NoError(t, err)
	assert.True(t, first.Equal(again))

	_, err = cached.ValueSetTimestamps(ctx, testutil.Entity(7))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoSuchValueSet))

	tableTs, err := cached.Timestamps(ctx)
	require.NoError(t, err)
	created, err := tableTs.Created(ctx)
	require.NoError(t, err)
	assert.False(t, created.IsNull())
}

func TestCacheRequestsMetric(t *testing.T) {
	table := testutil.FixtureTable(memory.New("metrics"), "people", 1, 1)
	cached := cache.NewValueTable(table, cache.NewMapCache())

	hits := metrics.CacheRequests.WithLabelValues("table.Variables", metrics.ResultHit)
	misses := metrics.CacheRequests.WithLabelValues("table.Variables", metrics.ResultMiss)
	hitsBefore := promtestutil.ToFloat64(hits)
	missesBefore := promtestutil.ToFloat64(misses)

	cached.Variables()
	cached.Variables()
	cached.Variables()

	assert.Equal(t, 1.0, promtestutil.ToFloat64(misses)-missesBefore)
	assert.Equal(t, 2.0, promtestutil.ToFloat64(hits)-hitsBefore)
}

func TestLRUCacheEvicts(t *testing.T) {
	c, err := cache.NewLRUCache(2)
	require.NoError(t, err)
	c.Put("a", 1)
	c.Put("b", 2)
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Put("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	assert.Equal(t, 2, c.Len())

	_, err = cache.NewLRUCache(0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
