package cache

import (
	"github.com/ajitpratap0/quasar/pkg/core"
)

// Datasource reads through a Cache. Tables it returns are caching tables,
// built fresh per call.
type Datasource struct {
	core.Datasource
	cache Cache
}

// NewDatasource wraps ds.
func NewDatasource(ds core.Datasource, c Cache) *Datasource {
	return &Datasource{Datasource: ds, cache: c}
}

// WrappedDatasource returns the delegate.
func (d *Datasource) WrappedDatasource() core.Datasource { return d.Datasource }

// Cache returns the injected cache.
func (d *Datasource) Cache() Cache { return d.cache }

func (d *Datasource) ValueTable(name string) (core.ValueTable, error) {
	t, err := d.Datasource.ValueTable(name)
	if err != nil {
		return nil, err
	}
	return newValueTable(t, d, d.cache), nil
}

func (d *Datasource) ValueTables() []core.ValueTable {
	inner := d.Datasource.ValueTables()
	out := make([]core.ValueTable, len(inner))
	for i, t := range inner {
		out[i] = newValueTable(t, d, d.cache)
	}
	return out
}

func (d *Datasource) HasValueTable(name string) bool {
	has, _ := readThrough(d.cache, "datasource.HasValueTable",
		Key(layerDatasource, d.Name(), "HasValueTable", name),
		func() (bool, error) { return d.Datasource.HasValueTable(name), nil })
	return has
}
