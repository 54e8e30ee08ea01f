package sema

import (
	"testing"

	"ferrite/internal/ast"
	"ferrite/internal/config"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
)

func testBuilder(t *testing.T, opts config.Options) (*Builder, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(64)
	tbl := ir.NewTable(ir.Hints{})
	b := New(tbl, diag.BagReporter{Bag: bag}, opts, nil, nil)
	return b, bag
}

func intSpec() ast.TypeSpec  { return ast.TypeSpec{Base: ast.TypeInteger} }
func realSpec() ast.TypeSpec { return ast.TypeSpec{Base: ast.TypeReal} }

func entityDecl(spec ast.TypeSpec, attrs ast.DeclAttrs, names ...string) *ast.EntityDecl {
	d := &ast.EntityDecl{Type: spec, Attrs: attrs}
	for _, n := range names {
		d.Items = append(d.Items, ast.Entity{Name: n})
	}
	return d
}

func TestModuleDeclaresVariables(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "Geometry",
			Decls: []ast.Decl{
				entityDecl(intSpec(), ast.DeclAttrs{}, "Sides"),
				entityDecl(realSpec(), ast.DeclAttrs{Parameter: true}, "pi"),
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	modID := tbl.Lookup(tbl.Root, "geometry")
	if !modID.IsValid() {
		t.Fatalf("module not declared under folded name")
	}
	mod := tbl.Symbols.Get(modID)
	if mod.Kind != ir.SymbolModule {
		t.Fatalf("kind = %v, want module", mod.Kind)
	}
	sides := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "sides"))
	if sides == nil || sides.Var.Type.Kind != ir.TInteger {
		t.Fatalf("sides not an integer variable")
	}
	if sides.Var.Storage != ir.StorageSave {
		t.Fatalf("module variable storage = %v, want save", sides.Var.Storage)
	}
	pi := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "pi"))
	if pi.Var.Storage != ir.StorageParameter {
		t.Fatalf("parameter storage = %v", pi.Var.Storage)
	}
}

func TestRedefinitionAborts(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "m",
			Decls: []ast.Decl{
				entityDecl(intSpec(), ast.DeclAttrs{}, "x"),
				entityDecl(realSpec(), ast.DeclAttrs{}, "x"),
			},
		},
	}}
	if err := b.Build(tu); err == nil {
		t.Fatalf("expected abort on redefinition")
	}
	if !bag.HasErrors() {
		t.Fatalf("no error diagnostic recorded")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SemaRedefinition {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing redefinition diagnostic: %v", bag.Items())
	}
}

func TestContinueCompilationSkipsFailedUnit(t *testing.T) {
	opts := config.Default()
	opts.ContinueCompilation = true
	b, _ := testBuilder(t, opts)
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{Name: "bad", Decls: []ast.Decl{
			entityDecl(intSpec(), ast.DeclAttrs{}, "x"),
			entityDecl(intSpec(), ast.DeclAttrs{}, "x"),
		}},
		&ast.Module{Name: "good", Decls: []ast.Decl{
			entityDecl(intSpec(), ast.DeclAttrs{}, "y"),
		}},
	}}
	err := b.Build(tu)
	if err == nil {
		t.Fatalf("expected overall failure")
	}
	tbl := b.Table()
	if !tbl.Lookup(tbl.Root, "good").IsValid() {
		t.Fatalf("later unit was not resolved after earlier abort")
	}
}

func TestImplicitTypingRules(t *testing.T) {
	opts := config.Default()
	opts.ImplicitTyping = true
	b, bag := testBuilder(t, opts)
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Program{
			Name: "main",
			Body: []ast.Stmt{
				&ast.Assign{Target: &ast.Ident{Name: "n"}, Value: &ast.IntLit{Value: 1}},
				&ast.Assign{Target: &ast.Ident{Name: "x"}, Value: &ast.RealLit{Value: 2.5}},
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	prog := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "main"))
	n := tbl.Symbols.Get(tbl.Lookup(prog.Symtab, "n"))
	if n.Var.Type.Kind != ir.TInteger {
		t.Fatalf("n typed %v, want integer", n.Var.Type.Kind)
	}
	x := tbl.Symbols.Get(tbl.Lookup(prog.Symtab, "x"))
	if x.Var.Type.Kind != ir.TReal {
		t.Fatalf("x typed %v, want real", x.Var.Type.Kind)
	}
}

func TestImplicitNoneRejectsUndeclared(t *testing.T) {
	opts := config.Default()
	opts.ImplicitTyping = true
	b, bag := testBuilder(t, opts)
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Program{
			Name:     "main",
			Implicit: []*ast.ImplicitStmt{{None: true}},
			Body: []ast.Stmt{
				&ast.Assign{Target: &ast.Ident{Name: "n"}, Value: &ast.IntLit{Value: 1}},
			},
		},
	}}
	if err := b.Build(tu); err == nil {
		t.Fatalf("expected abort under implicit none")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SemaImplicitTypingDisabled {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing implicit-typing diagnostic: %v", bag.Items())
	}
}

func TestImplicitNoneMustBeAlone(t *testing.T) {
	opts := config.Default()
	opts.ImplicitTyping = true
	b, bag := testBuilder(t, opts)
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Program{
			Name: "main",
			Implicit: []*ast.ImplicitStmt{
				{Specs: []ast.ImplicitSpec{{Type: intSpec(), Ranges: []ast.LetterRange{{Start: 'a', End: 'z'}}}}},
				{None: true},
			},
		},
	}}
	if err := b.Build(tu); err == nil {
		t.Fatalf("expected abort")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SemaImplicitNoneConflict {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing conflict diagnostic: %v", bag.Items())
	}
}

func TestFunctionArgsAndResult(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Procedure{
			Name:       "area",
			IsFunction: true,
			Args:       []ast.Arg{{Name: "w"}, {Name: "h"}},
			ReturnType: &ast.TypeSpec{Base: ast.TypeReal},
			Decls: []ast.Decl{
				entityDecl(realSpec(), ast.DeclAttrs{Intent: ast.IntentIn}, "w", "h"),
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	fn := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "area"))
	if len(fn.Fn.Args) != 2 {
		t.Fatalf("args = %d, want 2", len(fn.Fn.Args))
	}
	w := tbl.Symbols.Get(fn.Fn.Args[0].Sym)
	if w.Var.Intent != ir.IntentIn {
		t.Fatalf("w intent = %v, want in", w.Var.Intent)
	}
	if fn.Fn.Return == nil || fn.Fn.Return.Type.Kind != ir.TReal {
		t.Fatalf("missing or mistyped result")
	}
	res := tbl.Symbols.Get(fn.Fn.Return.Sym)
	if res.Var.Intent != ir.IntentReturnVar {
		t.Fatalf("result intent = %v", res.Var.Intent)
	}
}

func TestAlternateReturnRejected(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Procedure{Name: "s", Args: []ast.Arg{{Name: "a"}, {Name: ""}},
			Decls: []ast.Decl{entityDecl(intSpec(), ast.DeclAttrs{}, "a")}},
	}}
	if err := b.Build(tu); err == nil {
		t.Fatalf("expected abort for alternate return")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SemaAlternateReturn {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing alternate-return diagnostic: %v", bag.Items())
	}
}

func TestProcedureEntityNamesContainedInterface(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Program{
			Name: "main",
			Decls: []ast.Decl{
				&ast.EntityDecl{Type: ast.TypeSpec{Base: ast.TypeProcedure, Name: "f"},
					Items: []ast.Entity{{Name: "p"}}},
			},
			Contains: []ast.ProgramUnit{
				&ast.Procedure{Name: "f", IsFunction: true,
					ReturnType: &ast.TypeSpec{Base: ast.TypeInteger}},
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	prog := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "main"))
	p := tbl.Symbols.Get(tbl.Lookup(prog.Symtab, "p"))
	if p == nil || p.Var == nil || p.Var.Type.Kind != ir.TFunction {
		t.Fatalf("p is not procedure typed")
	}
	if p.Var.Type.RetType == nil || p.Var.Type.RetType.Kind != ir.TInteger {
		t.Fatalf("procedure type did not pick up the interface result")
	}
}

func TestInterfaceShadowedByImplementation(t *testing.T) {
	b, bag := testBuilder(t, config.Default())
	tu := &ast.TranslationUnit{Units: []ast.ProgramUnit{
		&ast.Module{
			Name: "m",
			Decls: []ast.Decl{
				&ast.InterfaceBlock{Kind: ast.InterfaceBare, Bodies: []*ast.Procedure{
					{Name: "f", IsFunction: true, ReturnType: &ast.TypeSpec{Base: ast.TypeInteger}},
				}},
			},
			Contains: []ast.ProgramUnit{
				&ast.Procedure{Name: "f", IsFunction: true, ReturnType: &ast.TypeSpec{Base: ast.TypeInteger}},
			},
		},
	}}
	if err := b.Build(tu); err != nil {
		t.Fatalf("Build: %v (%v)", err, bag.Items())
	}
	tbl := b.Table()
	mod := tbl.Symbols.Get(tbl.Lookup(tbl.Root, "m"))
	f := tbl.Symbols.Get(tbl.Lookup(mod.Symtab, "f"))
	if f.Fn.Deftype != ir.DeftypeImplementation {
		t.Fatalf("implementation did not replace interface declaration")
	}
}
