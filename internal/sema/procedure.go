package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
)

// buildProcedure resolves one subroutine or function into a Function
// symbol with its own scope. deftype is Interface for interface-body
// declarations, Implementation otherwise.
func (b *Builder) buildProcedure(p *ast.Procedure, deftype ir.Deftype) error {
	for _, a := range p.Args {
		if a.Name == "" {
			return b.abort(diag.SemaAlternateReturn, a.Loc,
				"alternate returns are not supported")
		}
	}
	if len(p.TempArgs) > 0 && deftype == ir.DeftypeImplementation {
		return b.buildTemplatedProcedure(p)
	}

	folded := fold(p.Name)
	fn := &ir.FunctionData{
		Deftype:    deftype,
		Pure:       p.Pure,
		Elemental:  p.Elemental,
		ModuleProc: p.ModuleProc,
	}
	if p.Bind != nil {
		fn.ABI = ir.ABIBindC
		fn.BindName = p.Bind.Name
	}
	sym := &ir.Symbol{Kind: ir.SymbolFunction, Fn: fn}
	id, err := b.declare(folded, sym, p.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	defer b.leave(scope)
	b.pushUnit(id)
	defer b.popUnit()

	if err := b.applyImplicit(p.Implicit); err != nil {
		return err
	}
	for _, u := range p.Uses {
		if err := b.buildUse(u); err != nil {
			return err
		}
	}

	// Dummy arguments get placeholder variables first, so declarations
	// can retype them in any order.
	for _, a := range p.Args {
		_, err := b.declare(fold(a.Name), &ir.Symbol{
			Kind: ir.SymbolVariable,
			Var:  &ir.VariableData{Intent: ir.IntentUnspecified},
		}, a.Loc)
		if err != nil {
			return err
		}
	}

	if err := b.declareResult(p, id); err != nil {
		return err
	}

	for _, d := range p.Decls {
		if err := b.buildDecl(d); err != nil {
			return err
		}
	}

	if err := b.finishArgs(p, id); err != nil {
		return err
	}

	body, err := b.buildBody(p.Body)
	if err != nil {
		return err
	}
	fnSym := b.tbl.Symbols.Get(id)
	fnSym.Fn.Body = body

	for _, cu := range p.Contains {
		if err := b.buildContained(cu); err != nil {
			return err
		}
	}

	if len(b.unit.entries) > 0 {
		if err := b.synthesizeEntries(p, id); err != nil {
			return err
		}
	}
	return b.closeUnit(p.Loc)
}

// declareResult sets up the function result variable.
func (b *Builder) declareResult(p *ast.Procedure, fnID ir.SymbolID) error {
	if !p.IsFunction {
		return nil
	}
	resName := p.ResultName
	if resName == "" {
		resName = p.Name
	}
	folded := fold(resName)
	v := &ir.Symbol{
		Kind: ir.SymbolVariable,
		Var:  &ir.VariableData{Intent: ir.IntentReturnVar},
	}
	if p.ReturnType != nil {
		ty, err := b.resolveType(p.ReturnType, nil, p.Loc)
		if err != nil {
			return err
		}
		v.Var.Type = ty
	}
	if prev := b.tbl.Lookup(b.scope, folded); prev.IsValid() {
		return b.abort(diag.SemaReturnTypeTwice, p.Loc,
			"result name %q collides with a dummy argument", resName)
	}
	_, err := b.declare(folded, v, p.Loc)
	return err
}

// finishArgs types any still-untyped dummy argument via implicit rules
// and records the argument and result references on the function.
func (b *Builder) finishArgs(p *ast.Procedure, fnID ir.SymbolID) error {
	fn := b.tbl.Symbols.Get(fnID).Fn
	fn.Args = fn.Args[:0]
	for _, a := range p.Args {
		folded := fold(a.Name)
		argID := b.tbl.Lookup(b.scope, folded)
		sym := b.tbl.Symbols.Get(argID)
		if sym.Kind == ir.SymbolVariable && sym.Var.Type == nil {
			ty := b.unit.implicit.typeFor(folded)
			if ty == nil {
				return b.abort(diag.SemaDummyArgNotDefined, a.Loc,
					"dummy argument %q is never typed", a.Name)
			}
			sym.Var.Type = ty
		}
		if sym.Kind == ir.SymbolVariable && sym.Var.Intent == ir.IntentUnspecified {
			sym.Var.Intent = ir.IntentInOut
		}
		var ty *ir.Type
		if sym.Kind == ir.SymbolVariable {
			ty = sym.Var.Type
		}
		fn.Args = append(fn.Args, ir.VarRef(argID, ty, a.Loc))
	}
	if p.IsFunction {
		resName := p.ResultName
		if resName == "" {
			resName = p.Name
		}
		folded := fold(resName)
		resID := b.tbl.Lookup(b.scope, folded)
		res := b.tbl.Symbols.Get(resID)
		if res.Var.Type == nil {
			ty := b.unit.implicit.typeFor(folded)
			if ty == nil {
				return b.abort(diag.SemaNoImplicitType, p.Loc,
					"function result %q has no type", resName)
			}
			res.Var.Type = ty
		}
		fn.Return = ir.VarRef(resID, res.Var.Type, p.Loc)
	}
	return nil
}

// buildProgram resolves the main program unit.
func (b *Builder) buildProgram(p *ast.Program) error {
	folded := fold(p.Name)
	sym := &ir.Symbol{Kind: ir.SymbolProgram}
	id, err := b.declare(folded, sym, p.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	defer b.leave(scope)
	b.pushUnit(id)
	defer b.popUnit()

	if err := b.applyImplicit(p.Implicit); err != nil {
		return err
	}
	for _, u := range p.Uses {
		if err := b.buildUse(u); err != nil {
			return err
		}
	}
	// Procedure-typed entities may name an interface defined in the
	// contains part, so their declarations wait until the contained
	// units exist.
	var deferred []ast.Decl
	for _, d := range p.Decls {
		if ed, ok := d.(*ast.EntityDecl); ok && ed.Type.Base == ast.TypeProcedure {
			deferred = append(deferred, d)
			continue
		}
		if err := b.buildDecl(d); err != nil {
			return err
		}
	}
	for _, cu := range p.Contains {
		if err := b.buildContained(cu); err != nil {
			return err
		}
	}
	for _, d := range deferred {
		if err := b.buildDecl(d); err != nil {
			return err
		}
	}
	if _, err := b.buildBody(p.Body); err != nil {
		return err
	}
	return b.closeUnit(p.Loc)
}

// buildBlockData resolves a block data unit: it may only initialize
// common-block storage.
func (b *Builder) buildBlockData(bd *ast.BlockData) error {
	name := bd.Name
	if name == "" {
		name = "~blockdata"
	}
	folded := fold(name)
	sym := &ir.Symbol{Kind: ir.SymbolProgram}
	id, err := b.declare(folded, sym, bd.Loc)
	if err != nil {
		return err
	}
	scope := b.tbl.NewScope(b.scope, id)
	b.tbl.Symbols.Get(id).Symtab = scope

	b.enter(scope)
	defer b.leave(scope)
	b.pushUnit(id)
	defer b.popUnit()

	for _, d := range bd.Decls {
		if err := b.buildDecl(d); err != nil {
			return err
		}
	}
	_, err = b.buildBody(bd.Body)
	if err != nil {
		return err
	}
	return b.closeUnit(bd.Loc)
}
