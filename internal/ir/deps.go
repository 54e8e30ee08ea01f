package ir

// NameSet is an ordered, deduplicating set of symbol names. Dependency
// lists must be exact and duplicate-free, so every insertion goes
// through Add.
type NameSet struct {
	seen  map[string]struct{}
	names []string
}

// NewNameSet returns an empty set.
func NewNameSet() *NameSet {
	return &NameSet{seen: make(map[string]struct{})}
}

// Add inserts name unless already present. Empty names are ignored.
func (s *NameSet) Add(name string) {
	if name == "" {
		return
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
}

// Has reports membership.
func (s *NameSet) Has(name string) bool {
	_, ok := s.seen[name]
	return ok
}

// Remove deletes name from the set, preserving the order of the rest.
func (s *NameSet) Remove(name string) {
	if _, ok := s.seen[name]; !ok {
		return
	}
	delete(s.seen, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
}

// Names returns the members in insertion order. The slice is owned by
// the set; callers keep it only after the set is discarded.
func (s *NameSet) Names() []string { return s.names }

// Len returns the member count.
func (s *NameSet) Len() int { return len(s.names) }

// CollectExprDeps walks an expression and adds the names of referenced
// variables and called functions that live outside scope. Struct
// instance members and dummy arguments of the current procedure do not
// count as dependencies.
func CollectExprDeps(t *Table, scope ScopeID, e *Expr, out *NameSet) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ExVar:
		addSymbolDep(t, scope, e.Sym, out)
	case ExFunctionCall:
		addSymbolDep(t, scope, e.Sym, out)
		for _, a := range e.Args {
			CollectExprDeps(t, scope, a.Value, out)
		}
	case ExBinOp:
		CollectExprDeps(t, scope, e.L, out)
		CollectExprDeps(t, scope, e.R, out)
	case ExArrayConstant, ExStructConstant:
		for _, el := range e.Elems {
			CollectExprDeps(t, scope, el, out)
		}
	case ExStringPhysicalCast:
		CollectExprDeps(t, scope, e.Operand, out)
	}
}

// CollectTypeDeps adds dependencies arising from a type: struct
// declarations and names in dimension and length expressions.
func CollectTypeDeps(t *Table, scope ScopeID, ty *Type, out *NameSet) {
	for ty != nil {
		switch ty.Kind {
		case TPointer, TAllocatable:
			ty = ty.Elem
		case TArray:
			for _, d := range ty.Dims {
				CollectExprDeps(t, scope, d.Start, out)
				CollectExprDeps(t, scope, d.Length, out)
			}
			ty = ty.Elem
		case TString:
			CollectExprDeps(t, scope, ty.Len, out)
			return
		case TStruct, TEnumT, TUnionT:
			if decl := t.Symbols.Get(t.PastExternal(ty.Decl)); decl != nil {
				out.Add(decl.Name)
			}
			return
		default:
			return
		}
	}
}

// CollectStmtDeps walks a statement and adds the dependencies of the
// expressions and call targets it contains.
func CollectStmtDeps(t *Table, scope ScopeID, st *Stmt, out *NameSet) {
	if st == nil {
		return
	}
	switch st.Kind {
	case StAssign:
		CollectExprDeps(t, scope, st.Target, out)
		CollectExprDeps(t, scope, st.Value, out)
	case StCall:
		if callee := t.Symbols.Get(st.Sym); callee != nil {
			out.Add(callee.Name)
		}
		for _, a := range st.Args {
			CollectExprDeps(t, scope, a.Value, out)
		}
	}
}

// CollectFunctionDeps derives a function's dependency list from its
// finished form: the types and initializers of every variable in its
// scope, plus its body. Function dependency lists must match this set
// exactly, so the builder records it and the verifier re-derives it
// through the same walk.
func CollectFunctionDeps(t *Table, sym *Symbol) *NameSet {
	out := NewNameSet()
	if sym == nil || sym.Fn == nil || !sym.Symtab.IsValid() {
		return out
	}
	sc := t.Scopes.Get(sym.Symtab)
	for _, name := range sc.Order {
		member := t.Symbols.Get(sc.Get(name))
		if member == nil || member.Kind != SymbolVariable || member.Var == nil {
			continue
		}
		CollectTypeDeps(t, sym.Symtab, member.Var.Type, out)
		CollectExprDeps(t, sym.Symtab, member.Var.SymbolicValue, out)
	}
	for _, st := range sym.Fn.Body {
		CollectStmtDeps(t, sym.Symtab, st, out)
	}
	return out
}

func addSymbolDep(t *Table, scope ScopeID, id SymbolID, out *NameSet) {
	sym := t.Symbols.Get(id)
	if sym == nil {
		return
	}
	// A symbol resolved through an ExternalSymbol alias is depended on
	// under its local alias name.
	if sym.Kind == SymbolExternal {
		out.Add(sym.Name)
		return
	}
	// Symbols local to the current scope (dummy arguments, locals) are
	// not dependencies.
	if sym.Parent == scope {
		if sym.Kind == SymbolFunction {
			out.Add(sym.Name)
		}
		return
	}
	switch sym.Kind {
	case SymbolVariable:
		// Host-associated variable: a dependency of the user.
		out.Add(sym.Name)
	case SymbolFunction, SymbolGenericProcedure, SymbolCustomOperator,
		SymbolStruct, SymbolUnion, SymbolEnum:
		out.Add(sym.Name)
	}
}
