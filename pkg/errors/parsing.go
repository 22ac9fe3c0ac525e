package errors

import (
	stringpool "github.com/ajitpratap0/quasar/pkg/strings"
)

// ParsingError reports a failure to read the structure of a datasource or
// table. Errors form a tree: a batch operation collects one child per failed
// item and returns the parent once every item has been attempted.
type ParsingError struct {
	Key      string
	Message  string
	Args     []interface{}
	children []*ParsingError
}

// NewParsingError creates a parsing error. Key identifies the failure kind
// (for example "TableDefinitionError"); args hold the values the message was
// formatted with.
func NewParsingError(key, format string, args ...interface{}) *ParsingError {
	return &ParsingError{
		Key:     key,
		Message: stringpool.Sprintf(format, args...),
		Args:    args,
	}
}

// Error implements the error interface
func (e *ParsingError) Error() string {
	switch len(e.children) {
	case 0:
		return stringpool.Sprintf("parsing: %s", e.Message)
	case 1:
		return stringpool.Sprintf("parsing: %s: %s", e.Message, e.children[0].Message)
	default:
		return stringpool.Sprintf("parsing: %s (%d errors)", e.Message, len(e.children))
	}
}

// Unwrap exposes the children so errors.Is and errors.As can reach them.
func (e *ParsingError) Unwrap() []error {
	if len(e.children) == 0 {
		return nil
	}
	errs := make([]error, len(e.children))
	for i, child := range e.children {
		errs[i] = child
	}
	return errs
}

// AddChild attaches a nested failure and returns the receiver.
func (e *ParsingError) AddChild(child *ParsingError) *ParsingError {
	if child != nil {
		e.children = append(e.children, child)
	}
	return e
}

// Children returns the direct nested failures.
func (e *ParsingError) Children() []*ParsingError {
	return e.children
}

// HasChildren reports whether any nested failure was attached.
func (e *ParsingError) HasChildren() bool {
	return len(e.children) > 0
}

// Flatten returns the leaves of the tree, depth first.
func (e *ParsingError) Flatten() []*ParsingError {
	if len(e.children) == 0 {
		return []*ParsingError{e}
	}
	var leaves []*ParsingError
	for _, child := range e.children {
		leaves = append(leaves, child.Flatten()...)
	}
	return leaves
}
