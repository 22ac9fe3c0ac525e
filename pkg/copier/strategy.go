package copier

import (
	"github.com/ajitpratap0/quasar/pkg/model"
)

// MultiplexingStrategy routes each written variable and each written value
// to a destination table name.
type MultiplexingStrategy interface {
	MultiplexVariable(variable model.Variable) string
	MultiplexValueSet(entity model.VariableEntity, variable model.Variable) string
}

// MultiplexingFuncs adapts a pair of functions to MultiplexingStrategy. A
// nil ValueSetFunc routes values with VariableFunc.
type MultiplexingFuncs struct {
	VariableFunc func(variable model.Variable) string
	ValueSetFunc func(entity model.VariableEntity, variable model.Variable) string
}

func (f MultiplexingFuncs) MultiplexVariable(variable model.Variable) string {
	return f.VariableFunc(variable)
}

func (f MultiplexingFuncs) MultiplexValueSet(entity model.VariableEntity, variable model.Variable) string {
	if f.ValueSetFunc == nil {
		return f.VariableFunc(variable)
	}
	return f.ValueSetFunc(entity, variable)
}

// AttributeMultiplexer routes by the value of a variable attribute. Variables
// without the attribute, or with an empty value, go to Default.
type AttributeMultiplexer struct {
	Attribute string
	Default   string
}

func (m AttributeMultiplexer) MultiplexVariable(variable model.Variable) string {
	if v, ok := variable.Attribute(m.Attribute); ok && v != "" {
		return v
	}
	return m.Default
}

func (m AttributeMultiplexer) MultiplexValueSet(_ model.VariableEntity, variable model.Variable) string {
	return m.MultiplexVariable(variable)
}

// VariableTransformer rewrites a variable before it is written.
type VariableTransformer interface {
	Transform(variable model.Variable) model.Variable
}

// VariableTransformerFunc adapts a function to VariableTransformer.
type VariableTransformerFunc func(model.Variable) model.Variable

// Transform calls f.
func (f VariableTransformerFunc) Transform(v model.Variable) model.Variable { return f(v) }

// RenameTransformer adds a prefix and a suffix to variable names.
func RenameTransformer(prefix, suffix string) VariableTransformer {
	return VariableTransformerFunc(func(v model.Variable) model.Variable {
		return v.Derive(model.WithName(prefix + v.Name() + suffix))
	})
}

type identityTransformer struct{}

func (identityTransformer) Transform(v model.Variable) model.Variable { return v }
