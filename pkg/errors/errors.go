// Package errors provides structured error handling for Quasar
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/ajitpratap0/quasar/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeRuntime is the root unchecked failure crossing lifecycle boundaries
	ErrorTypeRuntime ErrorType = "runtime"
	// ErrorTypeNoSuchDatasource represents an unknown datasource name
	ErrorTypeNoSuchDatasource ErrorType = "no_such_datasource"
	// ErrorTypeNoSuchValueTable represents an unknown table name
	ErrorTypeNoSuchValueTable ErrorType = "no_such_value_table"
	// ErrorTypeNoSuchVariable represents an unknown variable name
	ErrorTypeNoSuchVariable ErrorType = "no_such_variable"
	// ErrorTypeNoSuchValueSet represents an entity without a row in a table
	ErrorTypeNoSuchValueSet ErrorType = "no_such_value_set"
	// ErrorTypeWrite represents destination write failures
	ErrorTypeWrite ErrorType = "write"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data conversion errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeCapability represents capability/feature not supported errors
	ErrorTypeCapability ErrorType = "capability"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Runtime converts err into the root runtime failure kind. An error that
// already is a runtime failure, or a parsing tree, is returned unchanged.
func Runtime(err error) error {
	if err == nil {
		return nil
	}
	if IsType(err, ErrorTypeRuntime) {
		return err
	}
	var pe *ParsingError
	if errors.As(err, &pe) {
		return err
	}
	return &Error{
		Type:    ErrorTypeRuntime,
		Message: "runtime failure",
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsNotFound reports whether err is one of the expected "no such ..." lookups.
func IsNotFound(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeNoSuchDatasource, ErrorTypeNoSuchValueTable, ErrorTypeNoSuchVariable, ErrorTypeNoSuchValueSet:
		return true
	default:
		return false
	}
}

// NoSuchDatasource is returned when a datasource name is not registered.
func NoSuchDatasource(name string) *Error {
	return New(ErrorTypeNoSuchDatasource, stringpool.Sprintf("no such datasource '%s'", name)).
		WithDetail("datasource", name)
}

// NoSuchValueTable is returned when a datasource has no table of that name.
func NoSuchValueTable(datasource, table string) *Error {
	return New(ErrorTypeNoSuchValueTable, stringpool.Sprintf("no such value table '%s' in datasource '%s'", table, datasource)).
		WithDetail("datasource", datasource).
		WithDetail("table", table)
}

// NoSuchVariable is returned when a table has no variable of that name.
func NoSuchVariable(table, variable string) *Error {
	return New(ErrorTypeNoSuchVariable, stringpool.Sprintf("no such variable '%s' in table '%s'", variable, table)).
		WithDetail("table", table).
		WithDetail("variable", variable)
}

// NoSuchValueSet is returned when an entity has no row in a table.
func NoSuchValueSet(table, entity string) *Error {
	return New(ErrorTypeNoSuchValueSet, stringpool.Sprintf("no value set for entity %s in table '%s'", entity, table)).
		WithDetail("table", table).
		WithDetail("entity", entity)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
