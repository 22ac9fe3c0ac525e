package core

import (
	"context"
	stderrors "errors"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// TableLoader builds one table while a datasource initialises.
type TableLoader interface {
	LoadTable(ctx context.Context) (ValueTable, error)
}

// TableLoaderFunc adapts a function to TableLoader.
type TableLoaderFunc func(ctx context.Context) (ValueTable, error)

// LoadTable calls f.
func (f TableLoaderFunc) LoadTable(ctx context.Context) (ValueTable, error) {
	return f(ctx)
}

// LoadTables runs every loader. Parsing failures are collected as children
// of one parent ParsingError keyed by key, and loading continues with the
// next loader; any other failure stops loading at once. The tables that did
// load are returned together with the error.
func LoadTables(ctx context.Context, key string, loaders []TableLoader) ([]ValueTable, error) {
	tables := make([]ValueTable, 0, len(loaders))
	var failed []*errors.ParsingError
	for _, l := range loaders {
		t, err := l.LoadTable(ctx)
		if err != nil {
			var pe *errors.ParsingError
			if stderrors.As(err, &pe) {
				failed = append(failed, pe)
				continue
			}
			return tables, errors.Runtime(err)
		}
		if t != nil {
			tables = append(tables, t)
		}
	}
	if len(failed) == 0 {
		return tables, nil
	}
	parent := errors.NewParsingError(key, "%d of %d tables could not be loaded", len(failed), len(loaders))
	for _, pe := range failed {
		parent.AddChild(pe)
	}
	return tables, parent
}
