package verify

import (
	"testing"

	"ferrite/internal/ast"
	"ferrite/internal/config"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
	"ferrite/internal/sema"
)

func build(t *testing.T, units ...ast.ProgramUnit) *ir.Table {
	t.Helper()
	bag := diag.NewBag(64)
	tbl := ir.NewTable(ir.Hints{})
	opts := config.Default()
	opts.ImplicitTyping = true
	b := sema.New(tbl, diag.BagReporter{Bag: bag}, opts, nil, nil)
	if err := b.Build(&ast.TranslationUnit{Units: units}); err != nil {
		t.Fatalf("sema: %v (%v)", err, bag.Items())
	}
	return tbl
}

func runVerify(tbl *ir.Table) (bool, *diag.Bag) {
	bag := diag.NewBag(64)
	ok := Run(tbl, diag.BagReporter{Bag: bag})
	return ok, bag
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestCleanTableVerifies(t *testing.T) {
	tbl := build(t,
		&ast.Module{
			Name: "m",
			Decls: []ast.Decl{
				&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeReal},
					Attrs: ast.DeclAttrs{Parameter: true},
					Items: []ast.Entity{{Name: "pi", Init: &ast.RealLit{Value: 3.14}}}},
				&ast.DerivedType{Name: "point", Members: []*ast.EntityDecl{
					{Type: ast.TypeSpec{Base: ast.TypeReal}, Items: []ast.Entity{{Name: "x"}, {Name: "y"}}},
				}},
			},
			Contains: []ast.ProgramUnit{
				&ast.Procedure{
					Name:       "norm",
					IsFunction: true,
					Args:       []ast.Arg{{Name: "p"}},
					ReturnType: &ast.TypeSpec{Base: ast.TypeReal},
					Decls: []ast.Decl{
						&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeDerived, Name: "point"},
							Attrs: ast.DeclAttrs{Intent: ast.IntentIn},
							Items: []ast.Entity{{Name: "p"}}},
					},
				},
			},
		},
		&ast.Program{
			Name: "main",
			Uses: []*ast.Use{{Module: "m"}},
			Body: []ast.Stmt{
				&ast.Assign{Target: &ast.Ident{Name: "r"}, Value: &ast.RealLit{Value: 1}},
			},
		},
	)
	ok, bag := runVerify(tbl)
	if !ok {
		t.Fatalf("verification failed: %v", bag.Items())
	}
}

func TestScopeCounterDuplicateDetected(t *testing.T) {
	tbl := build(t, &ast.Module{Name: "m"})
	extra := tbl.NewScope(tbl.Root, ir.NoSymbolID)
	tbl.Scopes.Get(extra).Counter = tbl.Scopes.Get(tbl.Root).Counter
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyScopeCounter) {
		t.Fatalf("duplicate counter not flagged: %v", bag.Items())
	}
}

func TestScopeOwnerMismatchDetected(t *testing.T) {
	tbl := build(t, &ast.Module{Name: "m"})
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "m"))
	mod.Symtab = tbl.Root // owner no longer records the scope it owns
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyScopeOwner) {
		t.Fatalf("owner mismatch not flagged: %v", bag.Items())
	}
}

func TestAliasChainDetected(t *testing.T) {
	tbl := build(t,
		&ast.Module{Name: "a", Decls: []ast.Decl{
			&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeInteger}, Items: []ast.Entity{{Name: "x"}}},
		}},
		&ast.Module{Name: "b", Uses: []*ast.Use{{Module: "a"}}},
		&ast.Module{Name: "c", Uses: []*ast.Use{{Module: "b"}}},
	)
	// Corrupt c's alias to point at b's alias instead of the definition.
	bMod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "b"))
	cMod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "c"))
	cAlias := tbl.Symbols.Get(tbl.Lookup(cMod.Symtab, "x"))
	cAlias.Ext.Target = tbl.Lookup(bMod.Symtab, "x")
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyExternalAlias) {
		t.Fatalf("alias chain not flagged: %v", bag.Items())
	}
}

func TestAliasRoundTrip(t *testing.T) {
	tbl := build(t,
		&ast.Module{Name: "a", Decls: []ast.Decl{
			&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeInteger}, Items: []ast.Entity{{Name: "x"}}},
		}},
		&ast.Module{Name: "b", Uses: []*ast.Use{{Module: "a"}}},
	)
	bMod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "b"))
	alias := tbl.Symbols.Get(tbl.Lookup(bMod.Symtab, "x"))
	alias.Ext.OriginalName = "y" // breaks the round trip
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyExternalAlias) {
		t.Fatalf("round-trip breakage not flagged: %v", bag.Items())
	}
}

func TestDependencyChecks(t *testing.T) {
	tbl := build(t, &ast.Module{Name: "m", Decls: []ast.Decl{
		&ast.DerivedType{Name: "point", Members: []*ast.EntityDecl{
			{Type: ast.TypeSpec{Base: ast.TypeReal}, Items: []ast.Entity{{Name: "x"}}},
		}},
		&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeDerived, Name: "point"},
			Items: []ast.Entity{{Name: "origin"}}},
	}})
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "m"))
	origin := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "origin"))

	// Missing.
	saved := origin.Deps
	origin.Deps = nil
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyDependencyMissing) {
		t.Fatalf("missing dependency not flagged: %v", bag.Items())
	}

	// Duplicate.
	origin.Deps = append(append([]string{}, saved...), saved...)
	ok, bag = runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyDependencyDuplicate) {
		t.Fatalf("duplicate dependency not flagged: %v", bag.Items())
	}

	// Extra.
	origin.Deps = append(append([]string{}, saved...), "phantom")
	ok, bag = runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyDependencyExtra) {
		t.Fatalf("extra dependency not flagged: %v", bag.Items())
	}
}

func TestTypeShapeViolations(t *testing.T) {
	tbl := build(t, &ast.Module{Name: "m", Decls: []ast.Decl{
		&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeReal},
			Attrs: ast.DeclAttrs{Dims: []ast.DimSpec{{Lower: &ast.IntLit{Value: 1}, Upper: &ast.IntLit{Value: 8}}}},
			Items: []ast.Entity{{Name: "grid"}}},
	}})
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "m"))
	grid := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "grid"))

	// Nested array.
	grid.Var.Type = ir.ArrayType(ir.ArrayType(ir.RealType(4), []ir.Dimension{{}}), []ir.Dimension{{}})
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyTypeShape) {
		t.Fatalf("nested array not flagged: %v", bag.Items())
	}

	// Zero-dimension array.
	grid.Var.Type = ir.ArrayType(ir.RealType(4), nil)
	ok, bag = runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyTypeShape) {
		t.Fatalf("rank-0 array not flagged: %v", bag.Items())
	}

	// Pointer-wrapped array with explicit shape.
	one := ir.IntConst(1, ir.IntegerType(4), grid.Loc)
	grid.Var.Type = ir.PointerType(ir.ArrayType(ir.RealType(4), []ir.Dimension{{Start: one, Length: one}}))
	ok, bag = runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyTypeShape) {
		t.Fatalf("non-deferred pointer array not flagged: %v", bag.Items())
	}
}

func TestStringLengthRules(t *testing.T) {
	tbl := build(t, &ast.Module{Name: "m", Decls: []ast.Decl{
		&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeCharacter, Len: &ast.IntLit{Value: 16}},
			Items: []ast.Entity{{Name: "label"}}},
	}})
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "m"))
	label := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "label"))

	// Clean expression length verifies.
	if ok, bag := runVerify(tbl); !ok {
		t.Fatalf("clean string rejected: %v", bag.Items())
	}

	// Deferred length with a stored expression.
	label.Var.Type = &ir.Type{Kind: ir.TString, KindBytes: 1, LenKind: ir.DeferredLength,
		Len: ir.IntConst(4, ir.IntegerType(4), label.Loc)}
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyStringLength) {
		t.Fatalf("deferred+expression not flagged: %v", bag.Items())
	}

	// Implicit length outside a cast.
	label.Var.Type = &ir.Type{Kind: ir.TString, KindBytes: 1, LenKind: ir.ImplicitLength}
	ok, bag = runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyStringLength) {
		t.Fatalf("implicit length not flagged: %v", bag.Items())
	}
}

func TestStructAlignment(t *testing.T) {
	tbl := build(t, &ast.Module{Name: "m", Decls: []ast.Decl{
		&ast.DerivedType{Name: "vec", Alignment: &ast.IntLit{Value: 16}, Members: []*ast.EntityDecl{
			{Type: ast.TypeSpec{Base: ast.TypeReal}, Items: []ast.Entity{{Name: "x"}}},
		}},
	}})
	if ok, bag := runVerify(tbl); !ok {
		t.Fatalf("power-of-two alignment rejected: %v", bag.Items())
	}
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "m"))
	vec := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "vec"))
	vec.Str.Alignment = ir.IntConst(24, ir.IntegerType(4), vec.Loc)
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyStructAlignment) {
		t.Fatalf("bad alignment not flagged: %v", bag.Items())
	}
}

func TestEnumClassificationChecked(t *testing.T) {
	tbl := build(t, &ast.Module{Name: "m", Decls: []ast.Decl{
		&ast.EnumDecl{Items: []ast.Enumerator{
			{Name: "a"}, {Name: "b"},
		}},
	}})
	if ok, bag := runVerify(tbl); !ok {
		t.Fatalf("clean enum rejected: %v", bag.Items())
	}
	for i := range tbl.Symbols.Data() {
		s := &tbl.Symbols.Data()[i]
		if s.Kind == ir.SymbolEnum {
			s.Enum.ValueKind = ir.EnumNonInteger
		}
	}
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyEnumValues) {
		t.Fatalf("misclassified enum not flagged: %v", bag.Items())
	}
}

func TestAssignmentRestrictions(t *testing.T) {
	tbl := build(t, &ast.Procedure{
		Name: "s",
		Args: []ast.Arg{{Name: "a"}},
		Decls: []ast.Decl{
			&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeReal},
				Attrs: ast.DeclAttrs{Intent: ast.IntentIn},
				Items: []ast.Entity{{Name: "a"}}},
		},
		Body: []ast.Stmt{
			&ast.Assign{Target: &ast.Ident{Name: "a"}, Value: &ast.RealLit{Value: 0}},
		},
	})
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyIntentInAssigned) {
		t.Fatalf("intent(in) assignment not flagged: %v", bag.Items())
	}
}

func TestRequiredArgumentOmitted(t *testing.T) {
	tbl := build(t,
		&ast.Procedure{
			Name: "callee",
			Args: []ast.Arg{{Name: "a"}, {Name: "b"}},
			Decls: []ast.Decl{
				&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeReal},
					Items: []ast.Entity{{Name: "a"}}},
				&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeReal},
					Attrs: ast.DeclAttrs{Optional: true},
					Items: []ast.Entity{{Name: "b"}}},
			},
		},
		&ast.Procedure{
			Name: "caller",
			Body: []ast.Stmt{
				&ast.CallStmt{Name: "callee", Args: []ast.Expr{&ast.RealLit{Value: 1}}},
			},
		},
	)
	// Omitting the optional argument is fine.
	if ok, bag := runVerify(tbl); !ok {
		t.Fatalf("optional omission rejected: %v", bag.Items())
	}
	// Blank out the required argument at the call site.
	caller := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "caller"))
	caller.Fn.Body[0].Args[0].Value = nil
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyRequiredArgument) {
		t.Fatalf("omitted required argument not flagged: %v", bag.Items())
	}
}

func TestFunctionCallNeedsReturn(t *testing.T) {
	tbl := build(t,
		&ast.Procedure{Name: "act"},
		&ast.Procedure{
			Name: "caller",
			Decls: []ast.Decl{
				&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeReal},
					Items: []ast.Entity{{Name: "x"}}},
			},
			Body: []ast.Stmt{
				&ast.Assign{Target: &ast.Ident{Name: "x"}, Value: &ast.RealLit{Value: 1}},
			},
		},
	)
	// Rewrite the assignment to call the subroutine in expression
	// position.
	caller := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "caller"))
	caller.Fn.Body[0].Value = &ir.Expr{
		Kind: ir.ExFunctionCall,
		Sym:  tbl.Lookup(tbl.Root, "act"),
		Type: ir.RealType(4),
	}
	caller.Deps = append(caller.Deps, "act")
	ok, bag := runVerify(tbl)
	if ok || !hasCode(bag, diag.VerifyCallTarget) {
		t.Fatalf("subroutine in function-call position not flagged: %v", bag.Items())
	}
}
