package model

import (
	"testing"
	"time"

	quasarjson "github.com/ajitpratap0/quasar/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOfNormalizes(t *testing.T) {
	tests := []struct {
		name string
		typ  ValueType
		in   interface{}
		want interface{}
	}{
		{"int to integer", IntegerType, 7, int64(7)},
		{"string to integer", IntegerType, " 12 ", int64(12)},
		{"integral float to integer", IntegerType, 3.0, int64(3)},
		{"int to decimal", DecimalType, 2, float64(2)},
		{"string to decimal", DecimalType, "1.5", 1.5},
		{"string to boolean", BooleanType, "true", true},
		{"number to text", TextType, 5, "5"},
		{"date truncates", DateType, time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"datetime parses", DateTimeType, "2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"binary from base64", BinaryType, "AQI=", []byte{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.typ.ValueOf(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, v.Type())
			assert.Equal(t, tt.want, v.Raw())
		})
	}
}

func TestValueOfRejects(t *testing.T) {
	_, err := IntegerType.ValueOf(1.5)
	assert.Error(t, err)
	_, err = BooleanType.ValueOf("maybe")
	assert.Error(t, err)
	_, err = DateType.ValueOf(12)
	assert.Error(t, err)
}

func TestNullAndSequence(t *testing.T) {
	assert.True(t, TextType.Null().IsNull())
	assert.True(t, Value{}.IsNull())
	assert.True(t, IntegerType.NullSequence().IsNull())

	seq, err := IntegerType.Sequence(IntegerType.MustValueOf(1), TextType.MustValueOf("2"))
	require.NoError(t, err)
	assert.True(t, seq.IsSequence())
	assert.False(t, seq.IsNull())
	assert.Equal(t, 2, seq.Len())
	assert.Equal(t, "1,2", seq.String())

	empty, err := IntegerType.Sequence()
	require.NoError(t, err)
	assert.False(t, empty.IsNull())
	assert.Equal(t, 0, empty.Len())
}

func TestValueCompareAndEqual(t *testing.T) {
	one := IntegerType.MustValueOf(1)
	two := IntegerType.MustValueOf(2)
	null := IntegerType.Null()

	assert.Equal(t, -1, one.Compare(two))
	assert.Equal(t, 1, two.Compare(one))
	assert.Equal(t, 0, one.Compare(IntegerType.MustValueOf(1)))
	assert.Equal(t, -1, null.Compare(one))
	assert.True(t, null.Equal(IntegerType.Null()))
	assert.False(t, null.Equal(TextType.Null()))
	assert.True(t, BinaryType.MustValueOf([]byte{1}).Equal(BinaryType.MustValueOf([]byte{1})))

	early := DateTimeType.MustValueOf("2024-01-01T00:00:00Z")
	late := DateTimeType.MustValueOf("2024-06-01T00:00:00Z")
	assert.Equal(t, 1, late.Compare(early))
}

func TestValueJSONRoundTrip(t *testing.T) {
	seq, err := TextType.Sequence(TextType.MustValueOf("a"), TextType.Null())
	require.NoError(t, err)
	values := []Value{
		IntegerType.MustValueOf(42),
		DecimalType.MustValueOf(0.25),
		BooleanType.MustValueOf(false),
		DateType.MustValueOf("2020-02-29"),
		DateTimeType.MustValueOf("2020-02-29T12:30:00.5Z"),
		BinaryType.MustValueOf([]byte("hi")),
		TextType.Null(),
		DecimalType.NullSequence(),
		seq,
	}
	for _, v := range values {
		data, err := quasarjson.Marshal(v)
		require.NoError(t, err)
		var decoded Value
		require.NoError(t, quasarjson.Unmarshal(data, &decoded))
		assert.True(t, v.Equal(decoded), "round trip of %s: %s", v.Type(), string(data))
	}
}

func TestSortedEntities(t *testing.T) {
	in := []VariableEntity{
		NewVariableEntity("Participant", "3"),
		NewVariableEntity("Participant", "1"),
		NewVariableEntity("Participant", "3"),
		NewVariableEntity("Biosample", "9"),
	}
	out := SortedEntities(in)
	assert.Equal(t, []VariableEntity{
		NewVariableEntity("Biosample", "9"),
		NewVariableEntity("Participant", "1"),
		NewVariableEntity("Participant", "3"),
	}, out)
	assert.Len(t, in, 4, "input is not modified")
	assert.Len(t, EntitySet(in), 3)
	assert.Equal(t, "Participant:1", out[1].String())
}

func TestVariableDeriveIsCopy(t *testing.T) {
	v := NewVariable("AGE", IntegerType, "Participant",
		WithUnit("year"),
		WithAttribute("label", "Age"),
		WithCategories(Category{Name: "888", Missing: true}))

	renamed := v.Derive(WithName("AGE_AT_VISIT"), WithAttribute("label", "Age at visit"))
	assert.Equal(t, "AGE", v.Name())
	label, _ := v.Attribute("label")
	assert.Equal(t, "Age", label)
	assert.Equal(t, "AGE_AT_VISIT", renamed.Name())
	label, _ = renamed.Attribute("label")
	assert.Equal(t, "Age at visit", label)
	assert.Equal(t, "year", renamed.Unit())

	assert.True(t, v.IsMissingValue(IntegerType.MustValueOf(888)))
	assert.True(t, v.IsMissingValue(IntegerType.Null()))
	assert.False(t, v.IsMissingValue(IntegerType.MustValueOf(40)))

	attrs := v.Attributes()
	attrs["label"] = "mutated"
	label, _ = v.Attribute("label")
	assert.Equal(t, "Age", label)
}

func TestVariableJSONRoundTrip(t *testing.T) {
	v := NewVariable("BP", DecimalType, "Participant",
		WithRepeatable(true),
		WithOccurrenceGroup("visits"),
		WithIndex(3),
		WithAttribute("a", "1"),
		WithAttribute("b", "2"))
	data, err := quasarjson.Marshal(v)
	require.NoError(t, err)

	var decoded Variable
	require.NoError(t, quasarjson.Unmarshal(data, &decoded))
	assert.True(t, v.Equal(decoded))

	_, err = VariableDefinition{Name: "X", ValueType: "colour"}.Variable()
	assert.Error(t, err)
}

func TestParseValueType(t *testing.T) {
	vt, err := ParseValueType(" Integer ")
	require.NoError(t, err)
	assert.Equal(t, IntegerType, vt)
	_, err = ParseValueType("point")
	assert.Error(t, err)
	assert.Len(t, ValueTypes(), 7)
}
