package sema

import (
	"sort"

	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// buildModule resolves one module unit: uses, declarations, contained
// procedures, then the deferred generic and class-procedure maps.
func (b *Builder) buildModule(m *ast.Module) error {
	folded := fold(m.Name)
	sym := &ir.Symbol{Kind: ir.SymbolModule, Mod: &ir.ModuleData{}}
	id, err := b.declare(folded, sym, m.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	defer b.leave(scope)
	b.pushUnit(id)
	defer b.popUnit()

	if err := b.applyImplicit(m.Implicit); err != nil {
		return err
	}
	for _, u := range m.Uses {
		if err := b.buildUse(u); err != nil {
			return err
		}
	}
	for _, d := range m.Decls {
		if err := b.buildDecl(d); err != nil {
			return err
		}
	}
	for _, cu := range m.Contains {
		if err := b.buildContained(cu); err != nil {
			return err
		}
	}
	return b.closeUnit(m.Loc)
}

// buildSubmodule resolves a submodule. Its scope is parented on the
// ancestor module's scope, so host association reaches the parent's
// symbols directly.
func (b *Builder) buildSubmodule(s *ast.Submodule) error {
	parentID, err := b.requireModule(s.Parent, s.Loc)
	if err != nil {
		return err
	}
	parent := b.tbl.Symbols.Get(parentID)
	parent.Mod.HasSubmodules = true

	folded := fold(s.Name)
	sym := &ir.Symbol{Kind: ir.SymbolModule, Mod: &ir.ModuleData{ParentModule: fold(s.Parent)}}
	id, err := b.declare(folded, sym, s.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(parent.Symtab, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	defer b.leave(scope)
	b.pushUnit(id)
	defer b.popUnit()

	if err := b.applyImplicit(s.Implicit); err != nil {
		return err
	}
	for _, u := range s.Uses {
		if err := b.buildUse(u); err != nil {
			return err
		}
	}
	for _, d := range s.Decls {
		if err := b.buildDecl(d); err != nil {
			return err
		}
	}
	for _, cu := range s.Contains {
		if err := b.buildContained(cu); err != nil {
			return err
		}
	}
	return b.closeUnit(s.Loc)
}

// requireModule resolves name to a module symbol, loading it through
// the module loader when it is not in the table yet.
func (b *Builder) requireModule(name string, sp source.Span) (ir.SymbolID, error) {
	folded := fold(name)
	if id := b.tbl.Lookup(b.tbl.Root, folded); id.IsValid() {
		sym := b.tbl.Symbols.Get(id)
		if sym.Kind != ir.SymbolModule {
			return ir.NoSymbolID, b.abort(diag.SemaUnresolvedModule, sp, "%q is not a module", name)
		}
		return id, nil
	}
	if b.loader != nil {
		id, err := b.loader.Load(b.tbl, folded)
		if err != nil {
			return ir.NoSymbolID, b.abort(diag.SemaUnresolvedModule, sp,
				"cannot load module %q: %v", name, err)
		}
		if id.IsValid() {
			return id, nil
		}
	}
	return ir.NoSymbolID, b.abort(diag.SemaUnresolvedModule, sp, "module %q not found", name)
}

// buildContained dispatches a unit inside CONTAINS.
func (b *Builder) buildContained(u ast.ProgramUnit) error {
	p, ok := u.(*ast.Procedure)
	if !ok {
		return b.abort(diag.SemaUnresolvedSymbol, u.Span(),
			"only procedures may appear in a contains section")
	}
	return b.buildProcedure(p, ir.DeftypeImplementation)
}

// closeUnit materializes the deferred reconciliation maps collected
// while walking the unit: generic procedures, custom operators,
// assignment overloads and class procedures.
func (b *Builder) closeUnit(sp source.Span) error {
	if err := b.materializeGenerics(sp); err != nil {
		return err
	}
	if err := b.materializeOperators(sp); err != nil {
		return err
	}
	if err := b.materializeAssignments(sp); err != nil {
		return err
	}
	if err := b.materializeClassProcs(); err != nil {
		return err
	}
	return nil
}

func (b *Builder) materializeGenerics(sp source.Span) error {
	for _, name := range sortedKeys(b.unit.generics) {
		procNames := b.unit.generics[name]
		loc := b.unit.genericLocs[name]
		procs, err := b.resolveProcList(procNames, loc)
		if err != nil {
			return err
		}
		declName := name
		if existing := b.tbl.Lookup(b.scope, name); existing.IsValid() {
			prev := b.tbl.Symbols.Get(existing)
			real := b.tbl.Symbols.Get(b.tbl.PastExternal(existing))
			if real.Kind == ir.SymbolGenericProcedure {
				if prev.Kind == ir.SymbolExternal {
					// Imported generic of the same name: replace the alias
					// with a local generic carrying the merged candidates.
					merged := &ir.Symbol{
						Kind:   ir.SymbolGenericProcedure,
						Access: b.effectiveAccess(name),
						Gen:    &ir.GenericData{Procs: mergeProcs(append([]ir.SymbolID(nil), real.Gen.Procs...), procs)},
					}
					merged.Loc = loc
					b.tbl.Redeclare(b.scope, name, merged)
				} else {
					real.Gen.Procs = mergeProcs(real.Gen.Procs, procs)
				}
				continue
			}
			// A specific procedure shares the generic's name: keep the
			// specific under the plain name and tuck the generic away
			// under a reserved prefix.
			declName = "~genericprocedure_" + name
		}
		sym := &ir.Symbol{
			Kind:   ir.SymbolGenericProcedure,
			Access: b.effectiveAccess(name),
			Gen:    &ir.GenericData{Procs: procs},
		}
		sym.Loc = loc
		if !b.tbl.Declare(b.scope, declName, sym).IsValid() {
			return b.abort(diag.SemaRedefinition, loc, "redefinition of generic %q", name)
		}
	}
	return nil
}

func (b *Builder) materializeOperators(sp source.Span) error {
	for _, op := range sortedKeys(b.unit.operators) {
		procs, err := b.resolveProcList(b.unit.operators[op], sp)
		if err != nil {
			return err
		}
		name := operatorSymbolName(op)
		if existing := b.tbl.Lookup(b.scope, name); existing.IsValid() {
			prev := b.tbl.Symbols.Get(existing)
			real := b.tbl.Symbols.Get(b.tbl.PastExternal(existing))
			if real.Kind == ir.SymbolCustomOperator {
				if prev.Kind == ir.SymbolExternal {
					merged := &ir.Symbol{
						Kind:   ir.SymbolCustomOperator,
						Access: b.effectiveAccess(name),
						Gen:    &ir.GenericData{Procs: mergeProcs(append([]ir.SymbolID(nil), real.Gen.Procs...), procs)},
					}
					merged.Loc = sp
					b.tbl.Redeclare(b.scope, name, merged)
				} else {
					real.Gen.Procs = mergeProcs(real.Gen.Procs, procs)
				}
				continue
			}
			return b.abort(diag.SemaRedefinition, sp, "redefinition of operator %q", op)
		}
		sym := &ir.Symbol{
			Kind:   ir.SymbolCustomOperator,
			Access: b.effectiveAccess(name),
			Gen:    &ir.GenericData{Procs: procs},
		}
		sym.Loc = sp
		b.tbl.Declare(b.scope, name, sym)
	}
	return nil
}

func (b *Builder) materializeAssignments(sp source.Span) error {
	if len(b.unit.assignments) == 0 {
		return nil
	}
	procs, err := b.resolveProcList(b.unit.assignments, sp)
	if err != nil {
		return err
	}
	const name = "~assign"
	if existing := b.tbl.Lookup(b.scope, name); existing.IsValid() {
		prev := b.tbl.Symbols.Get(existing)
		if prev.Kind == ir.SymbolCustomOperator {
			prev.Gen.Procs = mergeProcs(prev.Gen.Procs, procs)
			return nil
		}
		return b.abort(diag.SemaRedefinition, sp, "redefinition of assignment interface")
	}
	sym := &ir.Symbol{Kind: ir.SymbolCustomOperator, Gen: &ir.GenericData{Procs: procs}}
	sym.Loc = sp
	b.tbl.Declare(b.scope, name, sym)
	return nil
}

// resolveProcList resolves procedure names to symbols, requiring each
// to be a function (or an alias of one).
func (b *Builder) resolveProcList(names []string, sp source.Span) ([]ir.SymbolID, error) {
	out := make([]ir.SymbolID, 0, len(names))
	for _, n := range names {
		id := b.tbl.Resolve(b.scope, fold(n))
		if !id.IsValid() {
			return nil, b.abort(diag.SemaInterfaceProcMissing, sp,
				"procedure %q named in an interface is not defined", n)
		}
		real := b.tbl.Symbols.Get(b.tbl.PastExternal(id))
		if real == nil || real.Kind != ir.SymbolFunction {
			return nil, b.abort(diag.SemaInterfaceProcMissing, sp,
				"%q named in an interface is not a procedure", n)
		}
		out = append(out, id)
	}
	return out, nil
}

func mergeProcs(existing, add []ir.SymbolID) []ir.SymbolID {
	seen := make(map[ir.SymbolID]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range add {
		if !seen[id] {
			existing = append(existing, id)
			seen[id] = true
		}
	}
	return existing
}

// operatorSymbolName maps an operator spelling to its scope entry name.
func operatorSymbolName(op string) string { return "~" + op }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
