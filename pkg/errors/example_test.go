// Package errors provides examples of structured error handling in Quasar.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.NoSuchValueTable("opal", "participants")

	fmt.Println(err.Error())
	fmt.Println(errors.IsNotFound(err))

	// Output:
	// no_such_value_table: no such value table 'participants' in datasource 'opal'
	// true
}

// ExampleRuntime shows that runtime wrapping happens exactly once.
func ExampleRuntime() {
	once := errors.Runtime(io.EOF)
	twice := errors.Runtime(once)

	fmt.Println(once == twice)
	fmt.Println(errors.IsType(twice, errors.ErrorTypeRuntime))

	// Output:
	// true
	// true
}

// ExampleParsingError shows how a batch operation aggregates failures.
func ExampleParsingError() {
	parent := errors.NewParsingError("DatasourceDefinitionErrors", "errors while reading datasource '%s'", "files")
	parent.AddChild(errors.NewParsingError("TableDefinitionError", "bad header in '%s'", "t2.jsonl"))

	fmt.Println(len(parent.Children()))
	fmt.Println(parent.Error())

	// Output:
	// 1
	// parsing: errors while reading datasource 'files': bad header in 't2.jsonl'
}
