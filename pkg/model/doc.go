// Package model defines the data model shared by every Quasar layer: typed
// values, entity keys and variable descriptors.
//
// # Values
//
// A Value is an immutable, typed, nullable scalar or sequence. Values of the
// same ValueType are totally ordered (null first) and compare by content:
//
//	v := model.IntegerType.MustValueOf(42)
//	n := model.IntegerType.Null()
//	v.Compare(n) // 1
//
// # Entities
//
// VariableEntity is the (entity type, identifier) pair naming a data subject.
// It is a plain comparable struct, ordered by type then identifier.
//
// # Variables
//
// Variable is a column descriptor built once with functional options:
//
//	age := model.NewVariable("AGE", model.IntegerType, "Participant",
//	    model.WithUnit("year"),
//	    model.WithAttribute("label", "Age at recruitment"))
//
// Derive returns a modified copy; the original is never changed.
package model
