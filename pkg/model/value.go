package model

import (
	"bytes"
	"strings"

	"github.com/ajitpratap0/quasar/pkg/errors"
	quasarjson "github.com/ajitpratap0/quasar/pkg/json"
)

// Value is an immutable typed scalar or sequence of scalars. The zero Value
// is a null text scalar.
type Value struct {
	valueType ValueType
	raw       interface{}
	seq       []Value
	sequence  bool
}

// Type returns the value type, defaulting to text for the zero Value.
func (v Value) Type() ValueType {
	if v.valueType == "" {
		return TextType
	}
	return v.valueType
}

// IsNull reports whether v holds nothing. A sequence is null only when it
// has no element slice at all; an empty sequence is not null.
func (v Value) IsNull() bool {
	if v.sequence {
		return v.seq == nil
	}
	return v.raw == nil
}

// IsSequence reports whether v is a sequence.
func (v Value) IsSequence() bool {
	return v.sequence
}

// Raw returns the normalized Go value: string, int64, float64, bool,
// time.Time or []byte. Null scalars and sequences return nil.
func (v Value) Raw() interface{} {
	return v.raw
}

// Elements returns the elements of a sequence, or v itself for a non-null scalar.
func (v Value) Elements() []Value {
	if v.sequence {
		out := make([]Value, len(v.seq))
		copy(out, v.seq)
		return out
	}
	if v.IsNull() {
		return nil
	}
	return []Value{v}
}

// Len returns the number of sequence elements, or 1 for a non-null scalar.
func (v Value) Len() int {
	if v.sequence {
		return len(v.seq)
	}
	if v.IsNull() {
		return 0
	}
	return 1
}

// String renders the canonical text form. Null renders as the empty string;
// sequence elements are comma separated.
func (v Value) String() string {
	if v.IsNull() {
		return ""
	}
	if v.sequence {
		parts := make([]string, len(v.seq))
		for i, e := range v.seq {
			parts[i] = e.String()
		}
		return strings.Join(parts, ",")
	}
	return v.Type().format(v.raw)
}

// Equal reports whether v and other have the same type, shape and content.
func (v Value) Equal(other Value) bool {
	if v.Type() != other.Type() || v.sequence != other.sequence {
		return false
	}
	if v.IsNull() || other.IsNull() {
		return v.IsNull() == other.IsNull()
	}
	if v.sequence {
		if len(v.seq) != len(other.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(other.seq[i]) {
				return false
			}
		}
		return true
	}
	if b, ok := v.raw.([]byte); ok {
		return bytes.Equal(b, other.raw.([]byte))
	}
	return v.Type().compareRaw(v.raw, other.raw) == 0
}

// Compare orders values of the same type; null sorts first and sequences
// compare element-wise. Values of different types order by type name.
func (v Value) Compare(other Value) int {
	if v.Type() != other.Type() {
		return strings.Compare(string(v.Type()), string(other.Type()))
	}
	switch {
	case v.IsNull() && other.IsNull():
		return 0
	case v.IsNull():
		return -1
	case other.IsNull():
		return 1
	}
	if v.sequence || other.sequence {
		a, b := v.Elements(), other.Elements()
		for i := 0; i < len(a) && i < len(b); i++ {
			if c := a[i].Compare(b[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a) < len(b):
			return -1
		case len(a) > len(b):
			return 1
		}
		return 0
	}
	return v.Type().compareRaw(v.raw, other.raw)
}

type wireValue struct {
	Type     ValueType   `json:"type"`
	Value    *string     `json:"value,omitempty"`
	Sequence []wireValue `json:"sequence"`
	IsSeq    bool        `json:"is_sequence,omitempty"`
}

func (v Value) wire() wireValue {
	w := wireValue{Type: v.Type(), IsSeq: v.sequence}
	if v.sequence {
		if v.seq != nil {
			w.Sequence = make([]wireValue, len(v.seq))
			for i, e := range v.seq {
				w.Sequence[i] = e.wire()
			}
		}
		return w
	}
	if !v.IsNull() {
		s := v.String()
		w.Value = &s
	}
	return w
}

func (w wireValue) value() (Value, error) {
	t := w.Type
	if t == "" {
		t = TextType
	}
	if !t.Valid() {
		return Value{}, errors.Newf(errors.ErrorTypeData, "unknown value type '%s'", w.Type)
	}
	if w.IsSeq {
		if w.Sequence == nil {
			return t.NullSequence(), nil
		}
		elems := make([]Value, len(w.Sequence))
		for i, e := range w.Sequence {
			ev, err := e.value()
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return t.Sequence(elems...)
	}
	if w.Value == nil {
		return t.Null(), nil
	}
	return t.ValueOf(*w.Value)
}

// MarshalJSON encodes the value with its type so it round-trips exactly.
func (v Value) MarshalJSON() ([]byte, error) {
	return quasarjson.Marshal(v.wire())
}

// UnmarshalJSON decodes a value produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := quasarjson.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := w.value()
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
