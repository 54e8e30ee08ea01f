// Package verify checks the structural invariants of a resolved symbol
// table: scope linkage, dependency-list exactness, reference locality,
// per-kind symbol well-formedness and type shapes. It is a debugging
// net for the resolution phase, not a user-facing type checker.
package verify

import (
	"fmt"

	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// Verifier walks one table. Create with New, run with Run.
type Verifier struct {
	tbl *ir.Table
	rep diag.Reporter
	ok  bool

	// counters maps each scope counter to the scope claiming it, to
	// catch duplicates.
	counters map[uint32]ir.ScopeID
	// visited guards the scope walk against corrupted ownership cycles.
	visited map[ir.ScopeID]bool

	// current is the scope whose symbols are being checked; references
	// from here must resolve through its ancestor chain.
	current ir.ScopeID
}

// New creates a verifier over tbl reporting through rep.
func New(tbl *ir.Table, rep diag.Reporter) *Verifier {
	return &Verifier{
		tbl:      tbl,
		rep:      rep,
		counters: make(map[uint32]ir.ScopeID),
		visited:  make(map[ir.ScopeID]bool),
	}
}

// Run checks the whole table and reports every violation found. It
// returns true when the table is sound.
func Run(tbl *ir.Table, rep diag.Reporter) bool {
	v := New(tbl, rep)
	return v.Verify()
}

// Verify performs all checks.
func (v *Verifier) Verify() bool {
	v.ok = true
	v.checkScopes()
	v.checkScope(v.tbl.Root)
	return v.ok
}

func (v *Verifier) fail(code diag.Code, sp source.Span, format string, args ...any) {
	v.ok = false
	diag.ReportError(v.rep, code, sp, fmt.Sprintf(format, args...)).Emit()
}

// checkScopes validates scope linkage and counter uniqueness across
// the whole arena.
func (v *Verifier) checkScopes() {
	data := v.tbl.Scopes.Data()
	for i := range data {
		id := ir.ScopeID(i + 1)
		sc := &data[i]
		if prev, dup := v.counters[sc.Counter]; dup {
			v.fail(diag.VerifyScopeCounter, source.Span{},
				"scope counter %d used by scopes %d and %d", sc.Counter, prev, id)
		} else {
			v.counters[sc.Counter] = id
		}
		if id == v.tbl.Root {
			if sc.Parent.IsValid() {
				v.fail(diag.VerifyScopeParent, source.Span{}, "root scope has a parent")
			}
			continue
		}
		if !sc.Parent.IsValid() {
			v.fail(diag.VerifyScopeParent, source.Span{}, "scope %d has no parent", id)
		} else if v.tbl.Scopes.Get(sc.Parent) == nil {
			v.fail(diag.VerifyScopeParent, source.Span{},
				"scope %d has dangling parent %d", id, sc.Parent)
		}
		if sc.Owner.IsValid() {
			owner := v.tbl.Symbols.Get(sc.Owner)
			if owner == nil {
				v.fail(diag.VerifyScopeOwner, source.Span{},
					"scope %d has dangling owner %d", id, sc.Owner)
			} else if owner.Symtab != id {
				v.fail(diag.VerifyScopeOwner, owner.Loc,
					"symbol %q owns scope %d but records scope %d", owner.Name, id, owner.Symtab)
			}
		}
	}
}

// checkScope verifies every symbol registered in scope, recursing into
// owned scopes.
func (v *Verifier) checkScope(scope ir.ScopeID) {
	sc := v.tbl.Scopes.Get(scope)
	if sc == nil || v.visited[scope] {
		return
	}
	v.visited[scope] = true
	prev := v.current
	v.current = scope
	defer func() { v.current = prev }()

	for _, name := range sc.Order {
		id := sc.Get(name)
		sym := v.tbl.Symbols.Get(id)
		if sym == nil {
			v.fail(diag.VerifyDanglingReference, source.Span{},
				"scope %d entry %q references no symbol", scope, name)
			continue
		}
		if sym.Parent != scope {
			v.fail(diag.VerifyScopeOwner, sym.Loc,
				"symbol %q registered in scope %d but records parent %d", name, scope, sym.Parent)
		}
		v.checkSymbol(id, sym)
		if sym.Symtab.IsValid() {
			v.checkScope(sym.Symtab)
		}
	}
}

// inScope reports whether a referenced symbol is visible from the
// current scope: its registration scope must be the current scope or
// one of its ancestors. Block and associate-block bodies are checked
// against their parent, so one extra parent hop is allowed from them.
func (v *Verifier) inScope(sym *ir.Symbol) bool {
	scope := v.current
	for scope.IsValid() {
		if sym.Parent == scope {
			return true
		}
		sc := v.tbl.Scopes.Get(scope)
		if sc == nil {
			return false
		}
		if owner := v.tbl.Symbols.Get(sc.Owner); owner != nil {
			if owner.Kind == ir.SymbolBlock || owner.Kind == ir.SymbolAssociateBlock {
				if parent := v.tbl.Scopes.Get(sc.Parent); parent != nil {
					if sym.Parent == parent.Parent {
						return true
					}
				}
			}
		}
		scope = sc.Parent
	}
	// Symbols reachable through the table root (synthetic modules,
	// loaded modules) sit outside the lexical chain but are legal
	// targets of external aliases.
	return sym.Parent == v.tbl.Root
}

// checkRef validates one symbol reference appearing inside the current
// scope.
func (v *Verifier) checkRef(id ir.SymbolID, sp source.Span, what string) *ir.Symbol {
	sym := v.tbl.Symbols.Get(id)
	if sym == nil {
		v.fail(diag.VerifyDanglingReference, sp, "%s references no symbol", what)
		return nil
	}
	if !v.inScope(sym) {
		// A reference may legally point into another scope through an
		// alias; the alias itself must be in scope instead.
		if sym.Kind != ir.SymbolExternal {
			if owner := v.ownedByExternalTarget(sym); !owner {
				v.fail(diag.VerifyDanglingReference, sp,
					"%s references %q which is not visible from scope %d", what, sym.Name, v.current)
			}
		}
	}
	return sym
}

// ownedByExternalTarget reports whether sym is the target of some
// external alias reachable from the current scope chain. Targets of
// aliases live in other modules; direct references to them appear in
// resolved expressions after alias chasing.
func (v *Verifier) ownedByExternalTarget(sym *ir.Symbol) bool {
	scope := v.current
	for scope.IsValid() {
		sc := v.tbl.Scopes.Get(scope)
		if sc == nil {
			return false
		}
		for _, name := range sc.Order {
			s := v.tbl.Symbols.Get(sc.Get(name))
			if s != nil && s.Kind == ir.SymbolExternal && s.Ext != nil {
				if v.tbl.Symbols.Get(s.Ext.Target) == sym {
					return true
				}
			}
		}
		scope = sc.Parent
	}
	return false
}
