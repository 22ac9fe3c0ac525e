package model

import (
	"sort"

	"github.com/ajitpratap0/quasar/pkg/errors"
	quasarjson "github.com/ajitpratap0/quasar/pkg/json"
)

// Category is one allowed code of a categorical variable.
type Category struct {
	Name    string `json:"name"`
	Missing bool   `json:"missing,omitempty"`
}

// Variable describes one column of a value table. It is immutable: options
// are applied at construction and Derive returns a modified copy.
type Variable struct {
	name                 string
	valueType            ValueType
	entityType           string
	unit                 string
	occurrenceGroup      string
	mimeType             string
	referencedEntityType string
	repeatable           bool
	index                int
	attributes           map[string]string
	categories           []Category
}

// VariableOption configures a Variable under construction.
type VariableOption func(*Variable)

// WithUnit sets the measurement unit.
func WithUnit(unit string) VariableOption {
	return func(v *Variable) { v.unit = unit }
}

// WithOccurrenceGroup sets the occurrence group of a repeatable variable.
func WithOccurrenceGroup(group string) VariableOption {
	return func(v *Variable) { v.occurrenceGroup = group }
}

// WithRepeatable marks the variable as holding sequences.
func WithRepeatable(repeatable bool) VariableOption {
	return func(v *Variable) { v.repeatable = repeatable }
}

// WithMimeType sets the mime type of binary values.
func WithMimeType(mimeType string) VariableOption {
	return func(v *Variable) { v.mimeType = mimeType }
}

// WithReferencedEntityType marks values as identifiers of another entity type.
func WithReferencedEntityType(entityType string) VariableOption {
	return func(v *Variable) { v.referencedEntityType = entityType }
}

// WithIndex sets the display position.
func WithIndex(index int) VariableOption {
	return func(v *Variable) { v.index = index }
}

// WithAttribute adds a named attribute.
func WithAttribute(name, value string) VariableOption {
	return func(v *Variable) {
		attrs := make(map[string]string, len(v.attributes)+1)
		for k, val := range v.attributes {
			attrs[k] = val
		}
		attrs[name] = value
		v.attributes = attrs
	}
}

// WithCategories replaces the category list.
func WithCategories(categories ...Category) VariableOption {
	return func(v *Variable) {
		v.categories = append([]Category(nil), categories...)
	}
}

// WithName renames the variable; used with Derive.
func WithName(name string) VariableOption {
	return func(v *Variable) { v.name = name }
}

// WithEntityType changes the entity type; used with Derive.
func WithEntityType(entityType string) VariableOption {
	return func(v *Variable) { v.entityType = entityType }
}

// NewVariable creates a variable descriptor.
func NewVariable(name string, valueType ValueType, entityType string, opts ...VariableOption) Variable {
	v := Variable{name: name, valueType: valueType, entityType: entityType}
	for _, opt := range opts {
		opt(&v)
	}
	return v
}

// Derive returns a copy of v with opts applied; v is unchanged.
func (v Variable) Derive(opts ...VariableOption) Variable {
	c := v
	if v.attributes != nil {
		c.attributes = make(map[string]string, len(v.attributes))
		for k, val := range v.attributes {
			c.attributes[k] = val
		}
	}
	c.categories = append([]Category(nil), v.categories...)
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (v Variable) Name() string                 { return v.name }
func (v Variable) ValueType() ValueType         { return v.valueType }
func (v Variable) EntityType() string           { return v.entityType }
func (v Variable) Unit() string                 { return v.unit }
func (v Variable) OccurrenceGroup() string      { return v.occurrenceGroup }
func (v Variable) MimeType() string             { return v.mimeType }
func (v Variable) ReferencedEntityType() string { return v.referencedEntityType }
func (v Variable) IsRepeatable() bool           { return v.repeatable }
func (v Variable) Index() int                   { return v.index }

// Attribute returns a named attribute value.
func (v Variable) Attribute(name string) (string, bool) {
	val, ok := v.attributes[name]
	return val, ok
}

// Attributes returns a copy of all attributes.
func (v Variable) Attributes() map[string]string {
	out := make(map[string]string, len(v.attributes))
	for k, val := range v.attributes {
		out[k] = val
	}
	return out
}

// Categories returns a copy of the category list.
func (v Variable) Categories() []Category {
	return append([]Category(nil), v.categories...)
}

// IsMissingValue reports whether value is one of the categories flagged missing.
func (v Variable) IsMissingValue(value Value) bool {
	if value.IsNull() {
		return true
	}
	s := value.String()
	for _, c := range v.categories {
		if c.Missing && c.Name == s {
			return true
		}
	}
	return false
}

// Equal compares every field.
func (v Variable) Equal(other Variable) bool {
	if v.name != other.name || v.valueType != other.valueType || v.entityType != other.entityType ||
		v.unit != other.unit || v.occurrenceGroup != other.occurrenceGroup || v.mimeType != other.mimeType ||
		v.referencedEntityType != other.referencedEntityType || v.repeatable != other.repeatable ||
		v.index != other.index || len(v.attributes) != len(other.attributes) || len(v.categories) != len(other.categories) {
		return false
	}
	for k, val := range v.attributes {
		if o, ok := other.attributes[k]; !ok || o != val {
			return false
		}
	}
	for i := range v.categories {
		if v.categories[i] != other.categories[i] {
			return false
		}
	}
	return true
}

// VariableDefinition is the serialized form of a Variable.
type VariableDefinition struct {
	Name                 string            `json:"name" yaml:"name"`
	ValueType            ValueType         `json:"value_type" yaml:"value_type"`
	EntityType           string            `json:"entity_type" yaml:"entity_type"`
	Unit                 string            `json:"unit,omitempty" yaml:"unit,omitempty"`
	OccurrenceGroup      string            `json:"occurrence_group,omitempty" yaml:"occurrence_group,omitempty"`
	MimeType             string            `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	ReferencedEntityType string            `json:"referenced_entity_type,omitempty" yaml:"referenced_entity_type,omitempty"`
	Repeatable           bool              `json:"repeatable,omitempty" yaml:"repeatable,omitempty"`
	Index                int               `json:"index,omitempty" yaml:"index,omitempty"`
	Attributes           map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Categories           []Category        `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Definition returns the serialized form.
func (v Variable) Definition() VariableDefinition {
	return VariableDefinition{
		Name:                 v.name,
		ValueType:            v.valueType,
		EntityType:           v.entityType,
		Unit:                 v.unit,
		OccurrenceGroup:      v.occurrenceGroup,
		MimeType:             v.mimeType,
		ReferencedEntityType: v.referencedEntityType,
		Repeatable:           v.repeatable,
		Index:                v.index,
		Attributes:           v.Attributes(),
		Categories:           v.Categories(),
	}
}

// Variable validates the definition and builds the descriptor.
func (d VariableDefinition) Variable() (Variable, error) {
	if d.Name == "" {
		return Variable{}, errors.New(errors.ErrorTypeData, "variable name is required")
	}
	if !d.ValueType.Valid() {
		return Variable{}, errors.Newf(errors.ErrorTypeData, "variable '%s' has unknown value type '%s'", d.Name, d.ValueType)
	}
	opts := []VariableOption{
		WithUnit(d.Unit),
		WithOccurrenceGroup(d.OccurrenceGroup),
		WithMimeType(d.MimeType),
		WithReferencedEntityType(d.ReferencedEntityType),
		WithRepeatable(d.Repeatable),
		WithIndex(d.Index),
		WithCategories(d.Categories...),
	}
	keys := make([]string, 0, len(d.Attributes))
	for k := range d.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, WithAttribute(k, d.Attributes[k]))
	}
	return NewVariable(d.Name, d.ValueType, d.EntityType, opts...), nil
}

// MarshalJSON encodes the variable definition.
func (v Variable) MarshalJSON() ([]byte, error) {
	return quasarjson.Marshal(v.Definition())
}

// UnmarshalJSON decodes a variable definition.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var d VariableDefinition
	if err := quasarjson.Unmarshal(data, &d); err != nil {
		return err
	}
	decoded, err := d.Variable()
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
