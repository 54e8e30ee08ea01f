package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// implicitTable maps identifier initials to types for implicitly typed
// names. Index 0 is 'a'.
type implicitTable struct {
	rules [26]*ir.Type
	// none is true once `implicit none` is in effect.
	none bool
}

// defaultImplicit is the classic table: a-h and o-z real, i-n integer.
func defaultImplicit(intKind int) *implicitTable {
	t := &implicitTable{}
	for c := byte('a'); c <= 'z'; c++ {
		if c >= 'i' && c <= 'n' {
			t.rules[c-'a'] = ir.IntegerType(intKind)
		} else {
			t.rules[c-'a'] = ir.RealType(4)
		}
	}
	return t
}

func (t *implicitTable) clone() *implicitTable {
	c := *t
	return &c
}

// typeFor returns the implicit type for name, or nil when none applies.
func (t *implicitTable) typeFor(name string) *ir.Type {
	if t == nil || t.none || name == "" {
		return nil
	}
	c := name[0]
	if c < 'a' || c > 'z' {
		return nil
	}
	return t.rules[c-'a']
}

// inheritImplicit picks the starting implicit table for a new unit:
// contained procedures inherit the hosting module's table, top-level
// units start from the configured default.
func (b *Builder) inheritImplicit() *implicitTable {
	if b.unit != nil && b.unit.implicit != nil {
		return b.unit.implicit.clone()
	}
	if b.opts.ImplicitTyping {
		return defaultImplicit(b.opts.DefaultIntegerKind)
	}
	t := &implicitTable{none: true}
	return t
}

// applyImplicit processes the unit's implicit statements in order.
// `implicit none` must be the only implicit statement of the unit.
func (b *Builder) applyImplicit(stmts []*ast.ImplicitStmt) error {
	for _, st := range stmts {
		if st.None {
			if b.unit.implicitSeen {
				return b.abort(diag.SemaImplicitNoneConflict, st.Loc,
					"implicit none conflicts with an earlier implicit statement")
			}
			b.unit.implicitNone = true
			b.unit.implicit = &implicitTable{none: true}
			b.unit.implicitSeen = true
			continue
		}
		if b.unit.implicitNone {
			return b.abort(diag.SemaImplicitNoneConflict, st.Loc,
				"implicit statement after implicit none")
		}
		if !b.opts.ImplicitTyping && !b.unit.implicitSeen {
			// Explicit implicit statements re-enable implicit typing for
			// this unit even when it is globally off.
			b.unit.implicit = defaultImplicit(b.opts.DefaultIntegerKind)
		}
		b.unit.implicitSeen = true
		for _, spec := range st.Specs {
			ty, err := b.resolveType(&spec.Type, nil, st.Loc)
			if err != nil {
				return err
			}
			for _, r := range spec.Ranges {
				lo, hi := r.Start, r.End
				if lo > hi {
					lo, hi = hi, lo
				}
				for c := lo; c <= hi; c++ {
					if c >= 'a' && c <= 'z' {
						b.unit.implicit.rules[c-'a'] = ty
					}
				}
			}
		}
	}
	return nil
}

// implicitVariable declares name with its implicit type in the current
// scope. Called when a body or dependency references an undeclared
// name that implicit typing can cover.
func (b *Builder) implicitVariable(name string, sp source.Span) (ir.SymbolID, error) {
	folded := fold(name)
	ty := b.unit.implicit.typeFor(folded)
	if ty == nil {
		if b.unit.implicit.none {
			return ir.NoSymbolID, b.abort(diag.SemaImplicitTypingDisabled, sp,
				"variable %q has no explicit declaration and implicit typing is disabled", name)
		}
		return ir.NoSymbolID, b.abort(diag.SemaNoImplicitType, sp,
			"no implicit type for variable %q", name)
	}
	return b.declare(folded, &ir.Symbol{
		Kind: ir.SymbolVariable,
		Var:  &ir.VariableData{Type: ty, Intent: ir.IntentLocal},
	}, sp)
}
