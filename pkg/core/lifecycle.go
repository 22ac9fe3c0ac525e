package core

import (
	"context"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// InitialiseAll initialises every target that is Initialisable, in order,
// and stops at the first failure. The failure is returned as a runtime
// error, wrapped at most once.
func InitialiseAll(ctx context.Context, targets ...interface{}) error {
	for _, t := range targets {
		i, ok := t.(Initialisable)
		if !ok {
			continue
		}
		if err := i.Initialise(ctx); err != nil {
			return errors.Runtime(err)
		}
	}
	return nil
}

// DisposeAll disposes every target that is Disposable. All targets are
// disposed even when one fails; the first failure is returned as a runtime
// error.
func DisposeAll(ctx context.Context, targets ...interface{}) error {
	var first error
	for _, t := range targets {
		d, ok := t.(Disposable)
		if !ok {
			continue
		}
		if err := d.Dispose(ctx); err != nil && first == nil {
			first = errors.Runtime(err)
		}
	}
	return first
}

// InitialiseTables cascades initialisation to tables and to every layer of
// their wrapper chains.
func InitialiseTables(ctx context.Context, tables []ValueTable) error {
	for _, t := range tables {
		if err := InitialiseAll(ctx, chain(t)...); err != nil {
			return err
		}
	}
	return nil
}

// DisposeTables cascades disposal to tables and to every layer of their
// wrapper chains.
func DisposeTables(ctx context.Context, tables []ValueTable) error {
	var first error
	for _, t := range tables {
		if err := DisposeAll(ctx, chain(t)...); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// chain lists the innermost table first so inner layers are ready before
// the layers that delegate to them.
func chain(t ValueTable) []interface{} {
	var layers []interface{}
	for t != nil {
		layers = append([]interface{}{t}, layers...)
		w, ok := t.(Wrapper)
		if !ok {
			break
		}
		t = w.WrappedValueTable()
	}
	return layers
}

// Innermost walks a wrapper chain and returns the first table that does not
// expose the Wrapper capability.
func Innermost(t ValueTable) ValueTable {
	for {
		w, ok := t.(Wrapper)
		if !ok {
			return t
		}
		inner := w.WrappedValueTable()
		if inner == nil {
			return t
		}
		t = inner
	}
}
