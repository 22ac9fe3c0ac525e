package model

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// ValueType names the scalar domain of a Value. Every type is ordered,
// comparable and nullable.
type ValueType string

const (
	TextType     ValueType = "text"
	IntegerType  ValueType = "integer"
	DecimalType  ValueType = "decimal"
	BooleanType  ValueType = "boolean"
	DateType     ValueType = "date"
	DateTimeType ValueType = "datetime"
	BinaryType   ValueType = "binary"
)

const dateLayout = "2006-01-02"

var valueTypes = []ValueType{TextType, IntegerType, DecimalType, BooleanType, DateType, DateTimeType, BinaryType}

// ValueTypes lists every supported value type.
func ValueTypes() []ValueType {
	out := make([]ValueType, len(valueTypes))
	copy(out, valueTypes)
	return out
}

// ParseValueType resolves a type name, case-insensitively.
func ParseValueType(name string) (ValueType, error) {
	t := ValueType(strings.ToLower(strings.TrimSpace(name)))
	if !t.Valid() {
		return "", errors.Newf(errors.ErrorTypeData, "unknown value type '%s'", name)
	}
	return t, nil
}

// Valid reports whether t is a known type.
func (t ValueType) Valid() bool {
	for _, known := range valueTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsNumeric reports whether t holds numbers.
func (t ValueType) IsNumeric() bool {
	return t == IntegerType || t == DecimalType
}

// IsDateTime reports whether t holds points in time.
func (t ValueType) IsDateTime() bool {
	return t == DateType || t == DateTimeType
}

// Null returns the null scalar of this type.
func (t ValueType) Null() Value {
	return Value{valueType: t}
}

// NullSequence returns the null sequence of this type.
func (t ValueType) NullSequence() Value {
	return Value{valueType: t, sequence: true}
}

// Sequence builds a sequence value. Elements of another type are converted.
func (t ValueType) Sequence(values ...Value) (Value, error) {
	seq := make([]Value, len(values))
	for i, v := range values {
		if v.valueType == t && !v.sequence {
			seq[i] = v
			continue
		}
		converted, err := t.ValueOf(v)
		if err != nil {
			return Value{}, err
		}
		seq[i] = converted
	}
	return Value{valueType: t, sequence: true, seq: seq}, nil
}

// MustValueOf is ValueOf for literals known to convert; it panics otherwise.
func (t ValueType) MustValueOf(v interface{}) Value {
	value, err := t.ValueOf(v)
	if err != nil {
		panic(err)
	}
	return value
}

// ValueOf converts a Go value into a Value of this type. Strings are parsed
// using the canonical text form produced by Value.String.
func (t ValueType) ValueOf(v interface{}) (Value, error) {
	if v == nil {
		return t.Null(), nil
	}
	if other, ok := v.(Value); ok {
		if other.valueType == t {
			return other, nil
		}
		if other.sequence {
			return t.Sequence(other.seq...)
		}
		if other.IsNull() {
			return t.Null(), nil
		}
		return t.ValueOf(other.String())
	}

	raw, err := t.normalize(v)
	if err != nil {
		return Value{}, err
	}
	return Value{valueType: t, raw: raw}, nil
}

func (t ValueType) normalize(v interface{}) (interface{}, error) {
	switch t {
	case TextType:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		default:
			return fmt.Sprint(x), nil
		}
	case IntegerType:
		return toInt64(v)
	case DecimalType:
		return toFloat64(v)
	case BooleanType:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, conversionError(t, v)
			}
			return b, nil
		}
	case DateType, DateTimeType:
		var tm time.Time
		switch x := v.(type) {
		case time.Time:
			tm = x
		case *time.Time:
			if x == nil {
				return nil, conversionError(t, v)
			}
			tm = *x
		case string:
			parsed, err := parseTime(x)
			if err != nil {
				return nil, conversionError(t, v)
			}
			tm = parsed
		default:
			return nil, conversionError(t, v)
		}
		tm = tm.UTC()
		if t == DateType {
			tm = time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, time.UTC)
		}
		return tm, nil
	case BinaryType:
		switch x := v.(type) {
		case []byte:
			return bytes.Clone(x), nil
		case string:
			b, err := base64.StdEncoding.DecodeString(x)
			if err != nil {
				return nil, conversionError(t, v)
			}
			return b, nil
		}
	}
	return nil, conversionError(t, v)
}

func toInt64(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, conversionError(IntegerType, v)
		}
		return int64(x), nil
	case float32:
		return toInt64(float64(x))
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, conversionError(IntegerType, v)
		}
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, conversionError(IntegerType, v)
		}
		return n, nil
	case fmt.Stringer:
		return toInt64(x.String())
	}
	return nil, conversionError(IntegerType, v)
}

func toFloat64(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, conversionError(DecimalType, v)
		}
		return f, nil
	case fmt.Stringer:
		return toFloat64(x.String())
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, conversionError(DecimalType, v)
	}
	return float64(n.(int64)), nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", dateLayout}
	var err error
	for _, layout := range layouts {
		var tm time.Time
		tm, err = time.Parse(layout, s)
		if err == nil {
			return tm, nil
		}
	}
	return time.Time{}, err
}

func conversionError(t ValueType, v interface{}) error {
	return errors.Newf(errors.ErrorTypeData, "cannot convert %v (%T) to %s", v, v, t).
		WithDetail("value_type", string(t))
}

// compareRaw orders two non-null raw values of type t.
func (t ValueType) compareRaw(a, b interface{}) int {
	switch t {
	case TextType:
		return strings.Compare(a.(string), b.(string))
	case IntegerType:
		x, y := a.(int64), b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case DecimalType:
		x, y := a.(float64), b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case BooleanType:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case DateType, DateTimeType:
		return a.(time.Time).Compare(b.(time.Time))
	case BinaryType:
		return bytes.Compare(a.([]byte), b.([]byte))
	}
	return 0
}

// format renders a non-null raw value in its canonical text form.
func (t ValueType) format(raw interface{}) string {
	switch t {
	case IntegerType:
		return strconv.FormatInt(raw.(int64), 10)
	case DecimalType:
		return strconv.FormatFloat(raw.(float64), 'g', -1, 64)
	case BooleanType:
		return strconv.FormatBool(raw.(bool))
	case DateType:
		return raw.(time.Time).Format(dateLayout)
	case DateTimeType:
		return raw.(time.Time).Format(time.RFC3339Nano)
	case BinaryType:
		return base64.StdEncoding.EncodeToString(raw.([]byte))
	default:
		return raw.(string)
	}
}
