// Package core defines the table and datasource abstraction every Quasar
// layer is written against.
//
// # Overview
//
// A Datasource owns named ValueTables. A ValueTable is homogeneous in entity
// type and exposes its entities, its variables and per-(variable, value set)
// value access. A ValueSet is only a handle on one entity's row; values are
// fetched lazily through the table or through a VariableValueSource, which
// may also offer a bulk VectorSource for the same column.
//
// # Lifecycle
//
// Datasources are created by a factory, initialised once, used, then
// disposed. Initialise and Dispose cascade to wrapped and child tables and
// convert failures into the single runtime failure kind of pkg/errors:
//
//	if err := core.InitialiseAll(ctx, ds); err != nil {
//	    return err
//	}
//	defer core.DisposeAll(ctx, ds)
//
// # Writers
//
// ValueTableWriter, VariableWriter and ValueSetWriter are scoped resources.
// Every writer that is opened must be closed on every exit path.
package core
