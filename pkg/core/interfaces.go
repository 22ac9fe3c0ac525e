package core

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/model"
)

// Datasource is a named owner of value tables backed by one physical store.
type Datasource interface {
	Name() string
	// Type names the backend kind ("memory", "jsonl", "sqlite", ...).
	Type() string

	Initialise(ctx context.Context) error
	Dispose(ctx context.Context) error

	ValueTableNames() []string
	ValueTables() []ValueTable
	// ValueTable returns a NoSuchValueTable error for unknown names.
	ValueTable(name string) (ValueTable, error)
	HasValueTable(name string) bool

	// CreateWriter opens a writer on the named table, creating the table if
	// the backend supports it.
	CreateWriter(ctx context.Context, tableName, entityType string) (ValueTableWriter, error)
	CanDropTable(name string) bool
	DropTable(ctx context.Context, name string) error
}

// ValueTable is a named, entity-type-homogeneous set of rows owned by one
// datasource. Its identity is (datasource name, table name).
type ValueTable interface {
	Name() string
	Datasource() Datasource
	EntityType() string
	IsForEntityType(entityType string) bool
	// TableReference returns "<datasource>.<table>".
	TableReference() string
	IsView() bool

	Variables() []model.Variable
	Variable(name string) (model.Variable, error)
	HasVariable(name string) bool
	VariableValueSource(name string) (VariableValueSource, error)

	// VariableEntities returns the entities of the table, sorted.
	VariableEntities(ctx context.Context) ([]model.VariableEntity, error)
	VariableEntityCount(ctx context.Context) (int, error)
	HasValueSet(ctx context.Context, entity model.VariableEntity) (bool, error)
	// ValueSet returns a NoSuchValueSet error for entities without a row.
	ValueSet(ctx context.Context, entity model.VariableEntity) (ValueSet, error)
	ValueSets(ctx context.Context, entities []model.VariableEntity) ([]ValueSet, error)
	Value(ctx context.Context, variable model.Variable, valueSet ValueSet) (model.Value, error)

	Timestamps(ctx context.Context) (Timestamps, error)
	ValueSetTimestamps(ctx context.Context, entity model.VariableEntity) (Timestamps, error)
}

// ValueSet is a handle on one entity's row in one table. It holds no values;
// they are fetched through the table or a VariableValueSource.
type ValueSet interface {
	ValueTable() ValueTable
	Entity() model.VariableEntity
	Timestamps() Timestamps
}

// Timestamps is a (created, last update) pair. Either may be a null
// datetime value when unknown.
type Timestamps interface {
	Created(ctx context.Context) (model.Value, error)
	LastUpdate(ctx context.Context) (model.Value, error)
}

// VariableValueSource provides the values of one variable row by row.
type VariableValueSource interface {
	Variable() model.Variable
	ValueType() model.ValueType
	Value(ctx context.Context, valueSet ValueSet) (model.Value, error)
	// VectorSource returns the bulk accessor for the same column, if any.
	VectorSource() (VectorSource, bool)
}

// VectorSource provides the values of one variable for many entities at once.
// Values are returned in the order of the sorted entity slice given.
type VectorSource interface {
	ValueType() model.ValueType
	Values(ctx context.Context, entities []model.VariableEntity) ([]model.Value, error)
}

// ValueTableWriter is a scoped write session on one table. Close must be
// called on every exit path.
type ValueTableWriter interface {
	WriteVariables(ctx context.Context) (VariableWriter, error)
	WriteValueSet(ctx context.Context, entity model.VariableEntity) (ValueSetWriter, error)
	Close(ctx context.Context) error
}

// VariableWriter writes variable metadata.
type VariableWriter interface {
	WriteVariable(ctx context.Context, variable model.Variable) error
	RemoveVariable(ctx context.Context, variable model.Variable) error
	Close(ctx context.Context) error
}

// ValueSetWriter writes the values of one entity row.
type ValueSetWriter interface {
	WriteValue(ctx context.Context, variable model.Variable, value model.Value) error
	Remove(ctx context.Context) error
	Close(ctx context.Context) error
}

// Wrapper is the capability of a table that delegates to another table.
type Wrapper interface {
	WrappedValueTable() ValueTable
}

// Initialisable is implemented by anything with a one-time setup step.
type Initialisable interface {
	Initialise(ctx context.Context) error
}

// Disposable is implemented by anything holding resources until disposed.
type Disposable interface {
	Dispose(ctx context.Context) error
}
