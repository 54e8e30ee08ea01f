package sema

import (
	"fmt"
	"math"

	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/source"
)

// OracleError carries a diagnostic code and span out of an Oracle.
type OracleError struct {
	Code diag.Code
	Span source.Span
	Msg  string
}

func (e *OracleError) Error() string { return e.Msg }

func oracleErrf(code diag.Code, sp source.Span, format string, args ...any) error {
	return &OracleError{Code: code, Span: sp, Msg: fmt.Sprintf(format, args...)}
}

// ConstFolder is the default expression oracle: it resolves names
// through the table and folds arithmetic over literals and parameter
// values. Anything it cannot fold keeps a nil Value.
type ConstFolder struct {
	DefaultIntegerKind int
}

func (f *ConstFolder) intKind() int {
	if f.DefaultIntegerKind == 0 {
		return 4
	}
	return f.DefaultIntegerKind
}

// Expr implements Oracle.
func (f *ConstFolder) Expr(tbl *ir.Table, scope ir.ScopeID, e ast.Expr) (*ir.Expr, error) {
	switch e := e.(type) {
	case *ast.IntLit:
		return ir.IntConst(e.Value, ir.IntegerType(f.intKind()), e.Loc), nil
	case *ast.RealLit:
		return ir.RealConst(e.Value, ir.RealType(4), e.Loc), nil
	case *ast.StrLit:
		t := ir.StringType(1, ir.IntConst(int64(len(e.Value)), ir.IntegerType(f.intKind()), e.Loc))
		return ir.StringConst(e.Value, t, e.Loc), nil
	case *ast.LogicalLit:
		return ir.LogicalConst(e.Value, ir.LogicalType(4), e.Loc), nil
	case *ast.Ident:
		return f.ident(tbl, scope, e)
	case *ast.BinOp:
		return f.binop(tbl, scope, e)
	case *ast.CallExpr:
		return f.call(tbl, scope, e)
	default:
		return nil, oracleErrf(diag.SemaUnresolvedSymbol, e.Span(), "unsupported expression")
	}
}

func (f *ConstFolder) ident(tbl *ir.Table, scope ir.ScopeID, e *ast.Ident) (*ir.Expr, error) {
	id := tbl.Resolve(scope, fold(e.Name))
	if !id.IsValid() {
		return nil, oracleErrf(diag.SemaUnresolvedSymbol, e.Loc, "undeclared name %q", e.Name)
	}
	target := tbl.Symbols.Get(tbl.PastExternal(id))
	out := ir.VarRef(id, nil, e.Loc)
	if target != nil && target.Kind == ir.SymbolVariable && target.Var != nil {
		out.Type = target.Var.Type
		if target.Var.Storage == ir.StorageParameter {
			out.Value = target.Var.Value
		}
	}
	return out, nil
}

func (f *ConstFolder) binop(tbl *ir.Table, scope ir.ScopeID, e *ast.BinOp) (*ir.Expr, error) {
	l, err := f.Expr(tbl, scope, e.L)
	if err != nil {
		return nil, err
	}
	r, err := f.Expr(tbl, scope, e.R)
	if err != nil {
		return nil, err
	}
	out := &ir.Expr{Kind: ir.ExBinOp, Op: ir.BinOpKind(e.Op), L: l, R: r, Type: l.Type, Loc: e.Loc}
	lv, lok := l.ConstInt()
	rv, rok := r.ConstInt()
	if lok && rok {
		if v, ok := foldInt(ir.BinOpKind(e.Op), lv, rv); ok {
			out.Value = ir.IntConst(v, l.Type, e.Loc)
		}
	}
	return out, nil
}

func foldInt(op ir.BinOpKind, l, r int64) (int64, bool) {
	switch op {
	case ir.OpAdd:
		return l + r, true
	case ir.OpSub:
		return l - r, true
	case ir.OpMul:
		return l * r, true
	case ir.OpDiv:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case ir.OpPow:
		if r < 0 {
			return 0, false
		}
		v := math.Pow(float64(l), float64(r))
		return int64(v), true
	}
	return 0, false
}

func (f *ConstFolder) call(tbl *ir.Table, scope ir.ScopeID, e *ast.CallExpr) (*ir.Expr, error) {
	id := tbl.Resolve(scope, fold(e.Name))
	if !id.IsValid() {
		return nil, oracleErrf(diag.SemaUnresolvedSymbol, e.Loc, "undeclared name %q", e.Name)
	}
	out := &ir.Expr{Kind: ir.ExFunctionCall, Sym: id, Loc: e.Loc}
	for _, a := range e.Args {
		av, err := f.Expr(tbl, scope, a)
		if err != nil {
			return nil, err
		}
		out.Args = append(out.Args, ir.CallArg{Value: av})
	}
	target := tbl.Symbols.Get(tbl.PastExternal(id))
	if target != nil && target.Kind == ir.SymbolFunction && target.Fn != nil && target.Fn.Return != nil {
		out.Type = target.Fn.Return.Type
	}
	return out, nil
}
