// Package config carries the compiler options consumed read-only by the
// semantic phases.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Options controls semantic resolution behavior. The zero value is not
// usable; start from Default.
type Options struct {
	// ImplicitTyping enables letter-based default-type inference for
	// undeclared names.
	ImplicitTyping bool `toml:"implicit_typing"`
	// ContinueCompilation converts unit-level aborts into skip-and-continue.
	ContinueCompilation bool `toml:"continue_compilation"`
	// SeparateCompilation permits referencing modules that are resolved
	// from serialized caches rather than the current translation unit.
	SeparateCompilation bool `toml:"separate_compilation"`
	// IgnorePragma suppresses custom pragma directives.
	IgnorePragma bool `toml:"ignore_pragma"`
	// DefaultIntegerKind is the byte width used when a declaration gives
	// no explicit kind.
	DefaultIntegerKind int `toml:"default_integer_kind"`
}

// Default returns the stock option set.
func Default() Options {
	return Options{
		DefaultIntegerKind: 4,
	}
}

type manifest struct {
	Compiler Options `toml:"compiler"`
}

// Load reads the [compiler] section of a ferrite.toml manifest, filling
// unset fields from Default.
func Load(path string) (Options, error) {
	m := manifest{Compiler: Default()}
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Options{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("compiler", "default_integer_kind") {
		m.Compiler.DefaultIntegerKind = Default().DefaultIntegerKind
	}
	if m.Compiler.DefaultIntegerKind != 1 && m.Compiler.DefaultIntegerKind != 2 &&
		m.Compiler.DefaultIntegerKind != 4 && m.Compiler.DefaultIntegerKind != 8 {
		return Options{}, fmt.Errorf("%s: default_integer_kind must be 1, 2, 4 or 8", path)
	}
	return m.Compiler, nil
}
