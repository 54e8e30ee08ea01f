package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
)

// buildBody lowers the execution part. Only the statement forms the
// symbol-table phase needs are distinguished: entry statements are
// collected for later synthesis, data statements fold values into
// variables, calls and assignments resolve their targets. Everything
// else becomes a Nop placeholder.
func (b *Builder) buildBody(stmts []ast.Stmt) ([]*ir.Stmt, error) {
	out := make([]*ir.Stmt, 0, len(stmts))
	for _, st := range stmts {
		switch st := st.(type) {
		case *ast.Entry:
			b.unit.entries = append(b.unit.entries, st)
			out = append(out, &ir.Stmt{Kind: ir.StNop, Loc: st.Loc})
		case *ast.DataStmt:
			if err := b.buildData(st); err != nil {
				return nil, err
			}
			out = append(out, &ir.Stmt{Kind: ir.StNop, Loc: st.Loc})
		case *ast.Assign:
			s, err := b.buildAssign(st)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case *ast.CallStmt:
			s, err := b.buildCall(st)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case *ast.Opaque:
			out = append(out, &ir.Stmt{Kind: ir.StNop, Loc: st.Span()})
		default:
			out = append(out, &ir.Stmt{Kind: ir.StNop, Loc: st.Span()})
		}
	}
	return out, nil
}

func (b *Builder) buildAssign(st *ast.Assign) (*ir.Stmt, error) {
	// An undeclared scalar target is implicitly declared when typing
	// rules allow it.
	if id, ok := st.Target.(*ast.Ident); ok {
		if !b.tbl.Resolve(b.scope, fold(id.Name)).IsValid() {
			if _, err := b.implicitVariable(id.Name, id.Loc); err != nil {
				return nil, err
			}
		}
	}
	target, err := b.expr(st.Target)
	if err != nil {
		return nil, err
	}
	value, err := b.expr(st.Value)
	if err != nil {
		return nil, err
	}
	return &ir.Stmt{Kind: ir.StAssign, Target: target, Value: value, Loc: st.Loc}, nil
}

func (b *Builder) buildCall(st *ast.CallStmt) (*ir.Stmt, error) {
	folded := fold(st.Name)
	id := b.tbl.Resolve(b.scope, folded)
	if !id.IsValid() {
		// An unseen callee is an implicitly declared external procedure.
		var err error
		id, err = b.declare(folded, &ir.Symbol{
			Kind: ir.SymbolFunction,
			Fn:   &ir.FunctionData{ABI: ir.ABIExternalUndefined, Deftype: ir.DeftypeInterface},
		}, st.Loc)
		if err != nil {
			return nil, err
		}
	} else {
		real := b.tbl.Symbols.Get(b.tbl.PastExternal(id))
		switch real.Kind {
		case ir.SymbolFunction, ir.SymbolGenericProcedure, ir.SymbolExternal:
		default:
			return nil, b.abort(diag.SemaUnresolvedSymbol, st.Loc,
				"%q is not callable", st.Name)
		}
	}
	b.unit.deps.Add(fold(st.Name))
	s := &ir.Stmt{Kind: ir.StCall, Sym: id, Loc: st.Loc}
	for _, a := range st.Args {
		av, err := b.expr(a)
		if err != nil {
			return nil, err
		}
		s.Args = append(s.Args, ir.CallArg{Value: av})
	}
	return s, nil
}

// buildData folds a data statement's values into the named objects.
func (b *Builder) buildData(st *ast.DataStmt) error {
	if len(st.Objects) != len(st.Values) {
		return b.abort(diag.SemaUnresolvedSymbol, st.Loc,
			"data statement has %d objects but %d values", len(st.Objects), len(st.Values))
	}
	for i, name := range st.Objects {
		folded := fold(name)
		id := b.tbl.Resolve(b.scope, folded)
		if !id.IsValid() {
			var err error
			id, err = b.implicitVariable(name, st.Loc)
			if err != nil {
				return err
			}
		}
		sym := b.tbl.Symbols.Get(b.tbl.PastExternal(id))
		if sym.Kind != ir.SymbolVariable {
			return b.abort(diag.SemaUnresolvedSymbol, st.Loc,
				"data object %q is not a variable", name)
		}
		val, err := b.expr(st.Values[i])
		if err != nil {
			return err
		}
		sym.Var.SymbolicValue = val
		sym.Var.Value = val.Value
		if sym.Var.Storage == ir.StorageDefault {
			sym.Var.Storage = ir.StorageSave
		}
		vdeps := ir.NewNameSet()
		ir.CollectTypeDeps(b.tbl, sym.Parent, sym.Var.Type, vdeps)
		ir.CollectExprDeps(b.tbl, sym.Parent, val, vdeps)
		sym.Deps = vdeps.Names()
	}
	return nil
}
