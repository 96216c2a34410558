package starlark

import (
	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Predeclared returns the globals available to configuration scripts:
// config, json, math and struct.
// Only pure modules are exposed; there is no file, network or env access.
func Predeclared(config starlark.Value) starlark.StringDict {
	return starlark.StringDict{
		ConfigGlobal: config,
		"json":       starjson.Module,
		"math":       starmath.Module,
		"struct":     starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}
