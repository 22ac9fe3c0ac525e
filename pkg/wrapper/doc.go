// Package wrapper provides read-only views composed over a ValueTable
// without copying data.
//
// # Overview
//
// ValueTableWrapper forwards every read to the wrapped table and exposes the
// core.Wrapper capability, so a chain of views of any depth can be unwound
// with core.Innermost. TransformingValueTable adds a BijectiveFunction that
// remaps entities between the wrapped table (inner) and the view (outer):
//
//	Apply(inner)   -> outer, or absent (entity hidden by the view)
//	Unapply(outer) -> inner
//
// For every entity admitted by Apply, Unapply(Apply(e)) == e. The law is a
// contract of each function and is not checked at run time.
//
// # Remappers
//
//   - BatchFunction admits at most L entities, remembering every admission.
//   - IncrementalFunction admits entities whose source row is newer than the
//     destination row, or whose timestamps are unknown.
//   - Split carves a table into SubsetValueTable chunks bounded by a number
//     of data points (rows times variables).
package wrapper
