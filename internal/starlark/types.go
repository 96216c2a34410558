// Package starlark runs configuration scripts in an isolated Starlark scope
// and provides helpers for reading values back out of it.
package starlark

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
)

// ErrNotMapping is returned by Lookup when the value does not support
// key lookup.
var ErrNotMapping = errors.New("value is not a mapping")

// Lookup reads key from a Starlark mapping such as a dict.
// Returns ErrNotMapping (wrapped) if m is not a mapping.
func Lookup(m starlark.Value, key string) (starlark.Value, bool, error) {
	mapping, ok := m.(starlark.Mapping)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrNotMapping, TypeName(m))
	}
	v, found, err := mapping.Get(starlark.String(key))
	if err != nil {
		return nil, false, fmt.Errorf("lookup %q: %w", key, err)
	}
	return v, found, nil
}

// AsString returns the Go string held by v.
// Only Starlark strings qualify; bytes and other values do not.
func AsString(v starlark.Value) (string, bool) {
	s, ok := v.(starlark.String)
	if !ok {
		return "", false
	}
	return string(s), true
}

// TypeName returns the Starlark type name of v, or "nil".
func TypeName(v starlark.Value) string {
	if v == nil {
		return "nil"
	}
	return v.Type()
}
