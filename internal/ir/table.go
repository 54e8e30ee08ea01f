package ir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Hints provide optional capacity suggestions for the table arenas.
type Hints struct{ Scopes, Symbols uint }

// Table aggregates the scope and symbol arenas for one translation
// unit. The root scope holds top-level program units.
type Table struct {
	Scopes  *Scopes
	Symbols *Symbols
	// Root is the translation-unit scope.
	Root ScopeID
}

// NewTable builds a fresh table with optional capacity hints. The root
// scope is allocated eagerly and has no parent and no owner.
func NewTable(h Hints) *Table {
	scopeCap, err := safecast.Conv[uint32](h.Scopes)
	if err != nil {
		panic(fmt.Errorf("scope capacity overflow: %w", err))
	}
	symCap, err := safecast.Conv[uint32](h.Symbols)
	if err != nil {
		panic(fmt.Errorf("symbol capacity overflow: %w", err))
	}
	t := &Table{
		Scopes:  NewScopes(scopeCap),
		Symbols: NewSymbols(symCap),
	}
	t.Root = t.Scopes.New(NoScopeID, NoSymbolID)
	return t
}

// NewScope allocates a child scope of parent owned by owner.
func (t *Table) NewScope(parent ScopeID, owner SymbolID) ScopeID {
	return t.Scopes.New(parent, owner)
}

// Declare allocates sym in the arena and registers it in scope under
// name. Returns NoSymbolID if the name is already taken in that scope.
func (t *Table) Declare(scope ScopeID, name string, sym *Symbol) SymbolID {
	sc := t.Scopes.Get(scope)
	if sc == nil {
		return NoSymbolID
	}
	if sc.Has(name) {
		return NoSymbolID
	}
	sym.Name = name
	sym.Parent = scope
	id := t.Symbols.New(sym)
	sc.Add(name, id)
	return id
}

// Redeclare allocates sym and binds it over any existing entry.
func (t *Table) Redeclare(scope ScopeID, name string, sym *Symbol) SymbolID {
	sc := t.Scopes.Get(scope)
	if sc == nil {
		return NoSymbolID
	}
	sym.Name = name
	sym.Parent = scope
	id := t.Symbols.New(sym)
	sc.Overwrite(name, id)
	return id
}

// Resolve looks name up in scope, walking the parent chain.
func (t *Table) Resolve(scope ScopeID, name string) SymbolID {
	for scope.IsValid() {
		sc := t.Scopes.Get(scope)
		if sc == nil {
			return NoSymbolID
		}
		if id := sc.Get(name); id.IsValid() {
			return id
		}
		scope = sc.Parent
	}
	return NoSymbolID
}

// Lookup looks name up in scope only, without walking parents.
func (t *Table) Lookup(scope ScopeID, name string) SymbolID {
	sc := t.Scopes.Get(scope)
	if sc == nil {
		return NoSymbolID
	}
	return sc.Get(name)
}

// UniqueName returns base if unused in scope, otherwise base with a
// numeric suffix that makes it unused.
func (t *Table) UniqueName(scope ScopeID, base string) string {
	sc := t.Scopes.Get(scope)
	if sc == nil || !sc.Has(base) {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if !sc.Has(name) {
			return name
		}
	}
}

// InScopeOf reports whether inner equals outer or is nested inside it.
func (t *Table) InScopeOf(inner, outer ScopeID) bool {
	for inner.IsValid() {
		if inner == outer {
			return true
		}
		sc := t.Scopes.Get(inner)
		if sc == nil {
			return false
		}
		inner = sc.Parent
	}
	return false
}

// OwnerSymbol returns the symbol owning scope, or nil for the root.
func (t *Table) OwnerSymbol(scope ScopeID) *Symbol {
	sc := t.Scopes.Get(scope)
	if sc == nil {
		return nil
	}
	return t.Symbols.Get(sc.Owner)
}

// EnclosingUnit walks up from scope to the nearest scope owned by a
// module, program or top-level function, returning that owner.
func (t *Table) EnclosingUnit(scope ScopeID) SymbolID {
	for scope.IsValid() {
		sc := t.Scopes.Get(scope)
		if sc == nil {
			return NoSymbolID
		}
		owner := t.Symbols.Get(sc.Owner)
		if owner != nil {
			switch owner.Kind {
			case SymbolModule, SymbolProgram:
				return sc.Owner
			case SymbolFunction:
				if sc.Parent == t.Root || t.parentIsRoot(sc.Parent) {
					return sc.Owner
				}
			}
		}
		scope = sc.Parent
	}
	return NoSymbolID
}

func (t *Table) parentIsRoot(scope ScopeID) bool {
	return scope == t.Root
}

// ScopePath returns the names of the symbols owning each scope between
// the root and scope, outermost first. Used when serializing external
// references to nested symbols.
func (t *Table) ScopePath(scope ScopeID) []string {
	var rev []string
	for scope.IsValid() && scope != t.Root {
		sc := t.Scopes.Get(scope)
		if sc == nil {
			break
		}
		if owner := t.Symbols.Get(sc.Owner); owner != nil {
			rev = append(rev, owner.Name)
		}
		scope = sc.Parent
	}
	path := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// PastExternal follows an ExternalSymbol alias to the real symbol.
// Aliases never chain, so one hop suffices.
func (t *Table) PastExternal(id SymbolID) SymbolID {
	sym := t.Symbols.Get(id)
	if sym == nil || sym.Kind != SymbolExternal || sym.Ext == nil {
		return id
	}
	return sym.Ext.Target
}

// DescribeSymbol renders a short human-readable tag for diagnostics.
func (t *Table) DescribeSymbol(id SymbolID) string {
	sym := t.Symbols.Get(id)
	if sym == nil {
		return "<none>"
	}
	var b strings.Builder
	b.WriteString(sym.Kind.String())
	b.WriteByte(' ')
	b.WriteString(sym.Name)
	return b.String()
}
