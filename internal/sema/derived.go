package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
)

// buildDerivedType resolves a structure declaration: members in their
// own scope, single inheritance, and type-bound procedures deferred
// until the enclosing unit closes.
func (b *Builder) buildDerivedType(d *ast.DerivedType) error {
	folded := fold(d.Name)

	var parentID ir.SymbolID
	if d.Extends != "" {
		id := b.tbl.Resolve(b.scope, fold(d.Extends))
		if !id.IsValid() {
			return b.abort(diag.SemaUnknownParentType, d.Loc,
				"unknown parent type %q", d.Extends)
		}
		real := b.tbl.Symbols.Get(b.tbl.PastExternal(id))
		if real == nil || real.Kind != ir.SymbolStruct {
			return b.abort(diag.SemaUnknownParentType, d.Loc,
				"%q is not an extensible type", d.Extends)
		}
		parentID = id
		b.unit.deps.Add(fold(d.Extends))
	}

	str := &ir.StructData{Parent: parentID, Abstract: d.Abstract}
	sym := &ir.Symbol{Kind: ir.SymbolStruct, Str: str}
	if d.Private {
		sym.Access = ir.AccessPrivate
	}
	id, err := b.declare(folded, sym, d.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	if d.Alignment != nil {
		al, err := b.expr(d.Alignment)
		if err != nil {
			return err
		}
		v, ok := al.ConstInt()
		if !ok || v <= 0 || v&(v-1) != 0 {
			return b.abort(diag.SemaRedefinition, d.Loc,
				"type alignment must be a positive power of two")
		}
		b.tbl.Symbols.Get(id).Str.Alignment = al
	}

	b.enter(scope)
	for _, m := range d.Members {
		if err := b.buildEntityDecl(m); err != nil {
			b.leave(scope)
			return err
		}
	}
	b.leave(scope)

	sym = b.tbl.Symbols.Get(id)
	sc := b.tbl.Scopes.Get(scope)
	sym.Str.Members = append(sym.Str.Members, sc.Order...)

	// The struct's own dependency list: member types plus the parent.
	sdeps := ir.NewNameSet()
	for _, m := range sym.Str.Members {
		mem := b.tbl.Symbols.Get(sc.Get(m))
		if mem != nil && mem.Kind == ir.SymbolVariable {
			ir.CollectTypeDeps(b.tbl, scope, mem.Var.Type, sdeps)
		}
	}
	if parentID.IsValid() {
		if p := b.tbl.Symbols.Get(b.tbl.PastExternal(parentID)); p != nil {
			sdeps.Add(p.Name)
		}
	}
	sym.Deps = sdeps.Names()

	// Bound procedures reference implementations that may not exist
	// yet; validate them when the unit closes.
	for _, bp := range d.Bound {
		if bp.NoPass && (bp.Pass || bp.PassName != "") {
			return b.abort(diag.SemaPassAndNopass, bp.Loc,
				"pass and nopass cannot both be given")
		}
		b.unit.classProcs = append(b.unit.classProcs, pendingBound{owner: id, bound: bp})
	}
	for _, g := range d.Generics {
		b.unit.generics[fold(g.Name)] = append(b.unit.generics[fold(g.Name)], g.Procs...)
		b.unit.genericLocs[fold(g.Name)] = g.Loc
	}
	return nil
}

// buildUnion resolves an overlapping-storage aggregate. Members live
// in the union's own scope like struct members.
func (b *Builder) buildUnion(u *ast.Union) error {
	folded := fold(u.Name)
	sym := &ir.Symbol{Kind: ir.SymbolUnion, Str: &ir.StructData{}}
	id, err := b.declare(folded, sym, u.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	for _, m := range u.Members {
		if err := b.buildEntityDecl(m); err != nil {
			b.leave(scope)
			return err
		}
	}
	b.leave(scope)
	sym = b.tbl.Symbols.Get(id)
	sym.Str.Members = append(sym.Str.Members, b.tbl.Scopes.Get(scope).Order...)
	return nil
}

// materializeClassProcs resolves every deferred type-bound procedure:
// the implementation must exist, and unless nopass is given, its
// passed-object argument must have the owning type (or a subtype).
func (b *Builder) materializeClassProcs() error {
	for _, pb := range b.unit.classProcs {
		bp := pb.bound
		implName := bp.Implementation
		if implName == "" {
			implName = bp.Name
		}
		implID := b.tbl.Resolve(b.scope, fold(implName))
		if !implID.IsValid() {
			return b.abort(diag.SemaBoundProcMissing, bp.Loc,
				"bound procedure %q has no implementation %q", bp.Name, implName)
		}
		implSym := b.tbl.Symbols.Get(b.tbl.PastExternal(implID))
		if implSym == nil || implSym.Kind != ir.SymbolFunction {
			return b.abort(diag.SemaBoundProcMissing, bp.Loc,
				"%q bound to %q is not a procedure", implName, bp.Name)
		}
		if !bp.NoPass {
			if err := b.checkPassObject(pb.owner, implSym, bp); err != nil {
				return err
			}
		}
		mth := &ir.Symbol{
			Kind: ir.SymbolMethod,
			Mth: &ir.MethodData{
				Proc:     b.tbl.PastExternal(implID),
				ProcName: fold(implName),
				PassArg:  fold(bp.PassName),
				NoPass:   bp.NoPass,
				Deferred: bp.Deferred,
			},
		}
		if bp.Access == ast.AccessPrivate {
			mth.Access = ir.AccessPrivate
		}
		mth.Loc = bp.Loc
		owner := b.tbl.Symbols.Get(pb.owner)
		if !b.tbl.Declare(owner.Symtab, fold(bp.Name), mth).IsValid() {
			return b.abort(diag.SemaRedefinition, bp.Loc,
				"redefinition of bound procedure %q", bp.Name)
		}
	}
	return nil
}

// checkPassObject verifies the passed-object dummy argument of a bound
// procedure implementation: the named (or first) argument must be of
// the owning type, a parent of it, or a subtype.
func (b *Builder) checkPassObject(owner ir.SymbolID, impl *ir.Symbol, bp *ast.BoundProc) error {
	var argVar *ir.Symbol
	if bp.PassName != "" {
		found := false
		for _, a := range impl.Fn.Args {
			s := b.tbl.Symbols.Get(a.Sym)
			if s != nil && s.Name == fold(bp.PassName) {
				argVar = s
				found = true
				break
			}
		}
		if !found {
			return b.abort(diag.SemaPassArgMissing, bp.Loc,
				"pass argument %q is not a dummy argument of %q", bp.PassName, impl.Name)
		}
	} else {
		if len(impl.Fn.Args) == 0 {
			return b.abort(diag.SemaPassArgMissing, bp.Loc,
				"bound procedure %q has no argument to pass the object in", impl.Name)
		}
		argVar = b.tbl.Symbols.Get(impl.Fn.Args[0].Sym)
	}
	if argVar == nil || argVar.Kind != ir.SymbolVariable || argVar.Var.Type == nil {
		return b.abort(diag.SemaPassArgTypeMismatch, bp.Loc,
			"passed-object argument of %q has no resolvable type", impl.Name)
	}
	ty := argVar.Var.Type.Unwrap()
	if ty.Kind != ir.TStruct {
		return b.abort(diag.SemaPassArgTypeMismatch, bp.Loc,
			"passed-object argument of %q is not of the bound type", impl.Name)
	}
	// Walk the subtype chain from the argument's type up to the owner.
	cur := b.tbl.PastExternal(ty.Decl)
	target := b.tbl.PastExternal(owner)
	for cur.IsValid() {
		if cur == target {
			return nil
		}
		s := b.tbl.Symbols.Get(cur)
		if s == nil || s.Kind != ir.SymbolStruct || !s.Str.Parent.IsValid() {
			break
		}
		cur = b.tbl.PastExternal(s.Str.Parent)
	}
	// The owner may also extend the argument type.
	cur = target
	argDecl := b.tbl.PastExternal(ty.Decl)
	for cur.IsValid() {
		if cur == argDecl {
			return nil
		}
		s := b.tbl.Symbols.Get(cur)
		if s == nil || s.Kind != ir.SymbolStruct || !s.Str.Parent.IsValid() {
			break
		}
		cur = b.tbl.PastExternal(s.Str.Parent)
	}
	return b.abort(diag.SemaPassArgTypeMismatch, bp.Loc,
		"passed-object argument of %q is not of the bound type", impl.Name)
}
